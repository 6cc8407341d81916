package model

import "time"

// License 授权码记录
// 只有 status 为 active 且未过期的授权码才参与验证
type License struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Code       string    `json:"code" gorm:"uniqueIndex;not null"`
	Name       string    `json:"name" gorm:"default:''"`
	MaxDevices int       `json:"max_devices" gorm:"default:1"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
	Status     string    `json:"status" gorm:"default:'active'"`
}

const (
	LicenseStatusActive   = "active"
	LicenseStatusDisabled = "disabled"
)

// LicenseWithCount 授权码列表项，带已绑定设备数
type LicenseWithCount struct {
	ID          uint      `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	MaxDevices  int       `json:"max_devices"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
	Status      string    `json:"status"`
	DeviceCount int64     `json:"device_count"`
}

// VerifyResult 验证结果，验证失败是正常返回而不是错误
type VerifyResult struct {
	Valid     bool      `json:"valid"`
	Message   string    `json:"message"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	LicenseID uint      `json:"-"`
}
