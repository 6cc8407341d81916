package service

import (
	"license-auth-server/internal/model"
)

// UsageLogs 分页查询使用日志，报表用
func (l *LicenseLedger) UsageLogs(page, pageSize int) ([]model.UsageLog, int64, error) {
	var logs []model.UsageLog
	var total int64

	if err := l.db.Model(&model.UsageLog{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := l.db.Order("timestamp DESC").Offset(offset).Limit(pageSize).Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

// LicenseUsageLogs 查询单个授权码最近的使用日志
func (l *LicenseLedger) LicenseUsageLogs(licenseID uint, limit int) ([]model.UsageLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var logs []model.UsageLog
	err := l.db.Where("license_id = ?", licenseID).
		Order("timestamp DESC").Limit(limit).Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}
