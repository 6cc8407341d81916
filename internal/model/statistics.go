package model

// DailyUsage 每日验证量统计
type DailyUsage struct {
	Date      string `json:"date"`
	Verifies  int    `json:"verifies"`
	Validates int    `json:"validates"`
}

// LicenseStatistics 授权码统计信息
type LicenseStatistics struct {
	TotalLicenses    int64        `json:"total_licenses"`
	ActiveLicenses   int64        `json:"active_licenses"`
	ExpiredLicenses  int64        `json:"expired_licenses"`
	DisabledLicenses int64        `json:"disabled_licenses"`
	BoundDevices     int64        `json:"bound_devices"`
	TotalVerifies    int64        `json:"total_verifies"`
	TotalValidates   int64        `json:"total_validates"`
	DailyUsage       []DailyUsage `json:"daily_usage"`
}
