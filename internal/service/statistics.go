package service

import (
	"time"

	"license-auth-server/internal/model"
)

// Statistics 汇总授权码和使用量统计
func (l *LicenseLedger) Statistics(start, end time.Time) (*model.LicenseStatistics, error) {
	stats := &model.LicenseStatistics{
		DailyUsage: make([]model.DailyUsage, 0),
	}
	now := time.Now()

	if err := l.db.Model(&model.License{}).Count(&stats.TotalLicenses).Error; err != nil {
		return nil, err
	}

	if err := l.db.Model(&model.License{}).
		Where("status = ? AND expires_at > ?", model.LicenseStatusActive, now).
		Count(&stats.ActiveLicenses).Error; err != nil {
		return nil, err
	}

	if err := l.db.Model(&model.License{}).
		Where("expires_at <= ?", now).
		Count(&stats.ExpiredLicenses).Error; err != nil {
		return nil, err
	}

	if err := l.db.Model(&model.License{}).
		Where("status = ?", model.LicenseStatusDisabled).
		Count(&stats.DisabledLicenses).Error; err != nil {
		return nil, err
	}

	if err := l.db.Model(&model.UserDevice{}).Count(&stats.BoundDevices).Error; err != nil {
		return nil, err
	}

	if err := l.db.Model(&model.UsageLog{}).
		Where("action = ?", model.ActionVerify).
		Count(&stats.TotalVerifies).Error; err != nil {
		return nil, err
	}

	if err := l.db.Model(&model.UsageLog{}).
		Where("action = ?", model.ActionValidate).
		Count(&stats.TotalValidates).Error; err != nil {
		return nil, err
	}

	// 区间内按天汇总验证量
	var daily []model.DailyUsage
	err := l.db.Model(&model.UsageLog{}).
		Select("DATE(timestamp) AS date, "+
			"SUM(CASE WHEN action = 'verify' THEN 1 ELSE 0 END) AS verifies, "+
			"SUM(CASE WHEN action = 'validate' THEN 1 ELSE 0 END) AS validates").
		Where("timestamp BETWEEN ? AND ?", start, end).
		Group("DATE(timestamp)").
		Order("date ASC").
		Scan(&daily).Error
	if err != nil {
		return nil, err
	}
	if daily != nil {
		stats.DailyUsage = daily
	}

	return stats, nil
}
