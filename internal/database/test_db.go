package database

import (
	"license-auth-server/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenTest 打开内存数据库，测试用
func OpenTest() *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic("failed to connect test database")
	}

	// 内存库只有一个写入者，连接池收紧到单连接
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	err = db.AutoMigrate(
		&model.License{},
		&model.UserDevice{},
		&model.UsageLog{},
		&model.AdminUser{},
		&model.LoginLog{},
	)
	if err != nil {
		panic("failed to migrate test database")
	}

	return db
}

// CleanTest 关闭测试数据库连接
func CleanTest(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	sqlDB.Close()
}
