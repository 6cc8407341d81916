package model

import "time"

// 使用日志动作类型
const (
	ActionVerify   = "verify"
	ActionValidate = "validate"
)

// UsageLog 使用日志，只写入不回读，供管理端报表查询
type UsageLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	LicenseID uint      `json:"license_id" gorm:"index"`
	Action    string    `json:"action"` // "verify", "validate"
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Timestamp time.Time `json:"timestamp"`
}
