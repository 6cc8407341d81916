package service

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"license-auth-server/internal/model"
	"license-auth-server/internal/util"

	"gorm.io/gorm"
)

// ErrDuplicateCode 授权码生成碰撞，重试次数耗尽后返回
var ErrDuplicateCode = errors.New("授权码生成冲突")

// errOverLimit 事务内复查发现绑定数越界，用于触发回滚
var errOverLimit = errors.New("device limit exceeded in transaction")

const (
	codeRetries   = 5
	verifyRetries = 5
)

// LicenseLedger 授权台账，持有数据库句柄并实现全部核心逻辑
// 句柄在构造时注入，测试可替换为内存数据库
type LicenseLedger struct {
	db *gorm.DB
}

func NewLicenseLedger(db *gorm.DB) *LicenseLedger {
	return &LicenseLedger{db: db}
}

// Issue 签发授权码
// name 可为空，maxDevices 默认1台，daysValid 默认365天
func (l *LicenseLedger) Issue(name string, maxDevices, daysValid int) (*model.License, error) {
	if maxDevices < 1 {
		maxDevices = 1
	}
	if daysValid <= 0 {
		daysValid = 365
	}

	for i := 0; i < codeRetries; i++ {
		code, err := util.GenerateLicenseCode()
		if err != nil {
			return nil, err
		}

		license := &model.License{
			Code:       code,
			Name:       name,
			MaxDevices: maxDevices,
			ExpiresAt:  time.Now().AddDate(0, 0, daysValid),
			CreatedAt:  time.Now(),
			Status:     model.LicenseStatusActive,
		}

		err = l.db.Create(license).Error
		if err == nil {
			return license, nil
		}
		// 碰撞概率极低，重新生成即可
		if isUniqueViolation(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrDuplicateCode
}

// Verify 验证授权码并绑定设备，核心状态机
//
// 已绑定的设备总是允许重新验证并轮换令牌，数量上限只挡新设备。
// 指纹查找、数量检查和插入放在同一个事务里，并发验证不会把
// 绑定数顶过 max_devices；事务冲突按 sqlite busy 错误重试。
func (l *LicenseLedger) Verify(code, fingerprint string) (*model.VerifyResult, error) {
	var license model.License
	err := l.db.Where("code = ? AND status = ? AND expires_at > ?",
		code, model.LicenseStatusActive, time.Now()).First(&license).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.VerifyResult{Valid: false, Message: "授权码无效或已过期"}, nil
	}
	if err != nil {
		return nil, err
	}

	var res model.VerifyResult
	err = l.withLockRetry(func() error {
		return l.db.Transaction(func(tx *gorm.DB) error {
			var device model.UserDevice
			err := tx.Where("license_id = ? AND device_fingerprint = ?",
				license.ID, fingerprint).First(&device).Error

			if err == nil {
				// 已绑定设备，轮换令牌
				token, genErr := util.GenerateAccessToken()
				if genErr != nil {
					return genErr
				}
				updates := map[string]interface{}{
					"token":       token,
					"last_active": time.Now(),
				}
				if err := tx.Model(&device).Updates(updates).Error; err != nil {
					return err
				}
				res = model.VerifyResult{
					Valid:     true,
					Message:   "验证成功(已绑定设备)",
					Token:     token,
					ExpiresAt: license.ExpiresAt,
					LicenseID: license.ID,
				}
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			var count int64
			if err := tx.Model(&model.UserDevice{}).
				Where("license_id = ?", license.ID).Count(&count).Error; err != nil {
				return err
			}
			if count >= int64(license.MaxDevices) {
				res = model.VerifyResult{
					Valid:   false,
					Message: fmt.Sprintf("设备数量已达上限(%d台)", license.MaxDevices),
				}
				return nil
			}

			token, genErr := util.GenerateAccessToken()
			if genErr != nil {
				return genErr
			}
			device = model.UserDevice{
				LicenseID:         license.ID,
				DeviceFingerprint: fingerprint,
				Token:             token,
				LastActive:        time.Now(),
				CreatedAt:         time.Now(),
			}
			if err := tx.Create(&device).Error; err != nil {
				return err
			}

			// 插入后复查绑定数，越界则整体回滚
			if err := tx.Model(&model.UserDevice{}).
				Where("license_id = ?", license.ID).Count(&count).Error; err != nil {
				return err
			}
			if count > int64(license.MaxDevices) {
				res = model.VerifyResult{
					Valid:   false,
					Message: fmt.Sprintf("设备数量已达上限(%d台)", license.MaxDevices),
				}
				return errOverLimit
			}

			res = model.VerifyResult{
				Valid:     true,
				Message:   "验证成功(新设备绑定)",
				Token:     token,
				ExpiresAt: license.ExpiresAt,
				LicenseID: license.ID,
			}
			return nil
		})
	})
	if errors.Is(err, errOverLimit) {
		return &res, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ValidateToken 验证访问令牌
// 只读操作，不轮换令牌也不更新活跃时间
func (l *LicenseLedger) ValidateToken(token string) (*model.VerifyResult, error) {
	var row struct {
		LicenseID uint
		ExpiresAt time.Time
	}
	result := l.db.Table("user_devices").
		Select("user_devices.license_id AS license_id, licenses.expires_at AS expires_at").
		Joins("JOIN licenses ON licenses.id = user_devices.license_id").
		Where("user_devices.token = ? AND licenses.status = ? AND licenses.expires_at > ?",
			token, model.LicenseStatusActive, time.Now()).
		Limit(1).Scan(&row)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return &model.VerifyResult{Valid: false, Message: "令牌无效或已过期"}, nil
	}

	return &model.VerifyResult{
		Valid:     true,
		Message:   "令牌有效",
		ExpiresAt: row.ExpiresAt,
		LicenseID: row.LicenseID,
	}, nil
}

// ListLicenses 获取全部授权码及各自的绑定设备数，按创建时间倒序
func (l *LicenseLedger) ListLicenses() ([]model.LicenseWithCount, error) {
	rows := make([]model.LicenseWithCount, 0)
	err := l.db.Table("licenses").
		Select("licenses.id, licenses.code, licenses.name, licenses.max_devices, " +
			"licenses.expires_at, licenses.created_at, licenses.status, " +
			"COUNT(user_devices.id) AS device_count").
		Joins("LEFT JOIN user_devices ON user_devices.license_id = licenses.id").
		Group("licenses.id").
		Order("licenses.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// DisableLicense 停用授权码，用状态位代替删除
func (l *LicenseLedger) DisableLicense(code string) (*model.License, error) {
	var license model.License
	if err := l.db.Where("code = ?", code).First(&license).Error; err != nil {
		return nil, err
	}

	license.Status = model.LicenseStatusDisabled
	if err := l.db.Save(&license).Error; err != nil {
		return nil, err
	}
	return &license, nil
}

// RecordUsage 写使用日志
// 日志写失败不能影响验证主流程，只记录错误
func (l *LicenseLedger) RecordUsage(licenseID uint, action, ip, userAgent string) {
	usage := &model.UsageLog{
		LicenseID: licenseID,
		Action:    action,
		IPAddress: ip,
		UserAgent: userAgent,
		Timestamp: time.Now(),
	}
	if err := l.db.Create(usage).Error; err != nil {
		log.Printf("写使用日志失败: %v", err)
	}
}

// withLockRetry 对 sqlite 写锁冲突做有限次重试
func (l *LicenseLedger) withLockRetry(fn func() error) error {
	var err error
	for i := 0; i < verifyRetries; i++ {
		err = fn()
		if err == nil || !isLockError(err) {
			return err
		}
		time.Sleep(time.Duration(i+1) * 10 * time.Millisecond)
	}
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed")
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "locked") || strings.Contains(msg, "busy")
}
