package handler

import (
	"crypto/md5"
	"encoding/hex"
	"log"
	"strings"
	"time"

	"license-auth-server/internal/model"
	"license-auth-server/internal/service"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var (
	db        *gorm.DB
	ledger    *service.LicenseLedger
	sheetSync *service.SheetSyncService
)

// Init 注入处理器依赖，启动时调用一次
func Init(database *gorm.DB, l *service.LicenseLedger, s *service.SheetSyncService) {
	db = database
	ledger = l
	sheetSync = s
}

// FingerprintFunc 设备指纹推导策略
// 默认对 User-Agent 加客户端IP做md5，调用方可整体替换为更强的方案
var FingerprintFunc = func(c *fiber.Ctx) string {
	sum := md5.Sum([]byte(c.Get("User-Agent") + clientIP(c)))
	return hex.EncodeToString(sum[:])
}

func clientIP(c *fiber.Ctx) string {
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	return c.IP()
}

type VerifyInput struct {
	LicenseCode       string `json:"license_code"`
	DeviceFingerprint string `json:"device_fingerprint"`
}

// HandleVerify 授权码验证接口
func HandleVerify(c *fiber.Ctx) error {
	input := new(VerifyInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "无效的输入数据",
		})
	}

	if input.LicenseCode == "" {
		return c.JSON(fiber.Map{
			"success": false,
			"message": "请输入授权码",
		})
	}

	// 使用提供的设备指纹，或自动生成
	fingerprint := input.DeviceFingerprint
	if fingerprint == "" {
		fingerprint = FingerprintFunc(c)
	}

	result, err := ledger.Verify(input.LicenseCode, fingerprint)
	if err != nil {
		log.Printf("验证授权码错误: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "服务器错误",
		})
	}

	if !result.Valid {
		return c.JSON(fiber.Map{
			"success": false,
			"message": result.Message,
		})
	}

	ledger.RecordUsage(result.LicenseID, model.ActionVerify, clientIP(c), c.Get("User-Agent"))

	return c.JSON(fiber.Map{
		"success":    true,
		"message":    result.Message,
		"token":      result.Token,
		"expires_at": result.ExpiresAt,
	})
}

type ValidateInput struct {
	Token string `json:"token"`
}

// HandleValidate 访问令牌验证接口
func HandleValidate(c *fiber.Ctx) error {
	input := new(ValidateInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "无效的输入数据",
		})
	}

	if input.Token == "" {
		return c.JSON(fiber.Map{
			"success": false,
			"message": "缺少访问令牌",
		})
	}

	result, err := ledger.ValidateToken(input.Token)
	if err != nil {
		log.Printf("验证令牌错误: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "服务器错误",
		})
	}

	if !result.Valid {
		return c.JSON(fiber.Map{
			"success": false,
			"message": result.Message,
		})
	}

	ledger.RecordUsage(result.LicenseID, model.ActionValidate, clientIP(c), c.Get("User-Agent"))

	return c.JSON(fiber.Map{
		"success":    true,
		"message":    result.Message,
		"expires_at": result.ExpiresAt,
	})
}

// HandleHealth 健康检查接口
func HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"message":   "授权验证服务运行正常",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
