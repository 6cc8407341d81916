package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"license-auth-server/internal/config"
	"license-auth-server/internal/model"

	"github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open 打开数据库并完成迁移，返回连接句柄
// 句柄由调用方持有并注入到各服务，不使用全局变量
func Open(cfg *config.Config) (*gorm.DB, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, cfg.DBFile)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}

	if err := migrate(db); err != nil {
		return nil, err
	}

	if err := seedAdmin(db, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return nil, err
	}

	return db, nil
}

func migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.License{},
		&model.UserDevice{},
		&model.UsageLog{},
		&model.AdminUser{},
		&model.LoginLog{},
	)
	if err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	return nil
}

// seedAdmin 首次启动时创建默认管理员账户
func seedAdmin(db *gorm.DB, username, password string) error {
	var count int64
	if err := db.Model(&model.AdminUser{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("生成密码哈希失败: %w", err)
	}

	admin := &model.AdminUser{
		Username:  username,
		Password:  string(hashed),
		Role:      "admin",
		Status:    "active",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	return db.Create(admin).Error
}
