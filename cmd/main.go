package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"license-auth-server/internal/config"
	"license-auth-server/internal/database"
	"license-auth-server/internal/handler"
	"license-auth-server/internal/middleware"
	"license-auth-server/internal/service"
	"license-auth-server/internal/util"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("加载配置失败:", err)
	}

	util.SetJWTSecret(cfg.JWTSecret)

	// 初始化数据库
	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal(err)
	}

	ledger := service.NewLicenseLedger(db)

	sheetSync, err := service.NewSheetSyncService(
		cfg.SheetSyncEnabled, cfg.SheetCredential, cfg.SpreadsheetID, cfg.SheetName)
	if err != nil {
		log.Fatal("初始化Sheet同步失败:", err)
	}

	handler.Init(db, ledger, sheetSync)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "服务器错误",
			})
		},
	})

	// 中间件
	app.Use(logger.New())
	origins := strings.Join(cfg.CORSOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowCredentials: origins != "*",
	}))
	app.Static("/", "./public")

	// 路由组
	api := app.Group("/api")
	api.Get("/health", handler.HandleHealth)

	// 验证路由
	auth := api.Group("/auth")
	auth.Post("/verify", handler.HandleVerify)
	auth.Post("/validate", handler.HandleValidate)

	// 管理员路由
	admin := api.Group("/admin")
	admin.Post("/login", handler.HandleAdminLogin)

	admin.Use(middleware.Auth(), middleware.AdminOnly(db))
	admin.Post("/generate", handler.HandleGenerate)
	admin.Get("/licenses", handler.HandleListLicenses)
	admin.Put("/licenses/:code/disable", handler.HandleDisableLicense)
	admin.Get("/licenses/:id/usage", handler.HandleLicenseUsage)
	admin.Get("/usage", handler.HandleUsageLogs)
	admin.Get("/statistics", handler.HandleStatistics)
	admin.Post("/change-password", handler.HandleChangePassword)

	// 优雅关闭
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("正在关闭服务器...")
		if err := app.Shutdown(); err != nil {
			log.Println("关闭服务器失败:", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	log.Println("授权验证服务已启动:", cfg.ListenAddr)
	if err := app.Listen(cfg.ListenAddr); err != nil {
		log.Fatal(err)
	}
}
