package model

import "time"

// UserDevice 设备绑定记录，属于一个授权码
// 同一设备指纹可能出现在多个授权码下，不做全局唯一约束
type UserDevice struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	LicenseID         uint      `json:"license_id" gorm:"index"`
	DeviceFingerprint string    `json:"device_fingerprint" gorm:"index"`
	Token             string    `json:"-" gorm:"index"`
	LastActive        time.Time `json:"last_active"`
	CreatedAt         time.Time `json:"created_at"`
}
