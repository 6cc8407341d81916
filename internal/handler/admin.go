package handler

import (
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type GenerateInput struct {
	Name       string `json:"name"`
	MaxDevices int    `json:"max_devices"`
	DaysValid  int    `json:"days_valid"`
}

// HandleGenerate 管理员生成授权码
func HandleGenerate(c *fiber.Ctx) error {
	input := new(GenerateInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "无效的输入数据",
		})
	}

	license, err := ledger.Issue(input.Name, input.MaxDevices, input.DaysValid)
	if err != nil {
		log.Printf("生成授权码错误: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "生成失败",
		})
	}

	if sheetSync != nil {
		lic := *license
		go sheetSync.SyncLicense(&lic, 0)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "授权码生成成功",
		"data": fiber.Map{
			"id":         license.ID,
			"code":       license.Code,
			"expires_at": license.ExpiresAt,
		},
	})
}

// HandleListLicenses 管理员获取所有授权码，带绑定设备数
func HandleListLicenses(c *fiber.Ctx) error {
	licenses, err := ledger.ListLicenses()
	if err != nil {
		log.Printf("获取授权码列表错误: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "获取失败",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    licenses,
	})
}

// HandleDisableLicense 停用授权码
func HandleDisableLicense(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "授权码不能为空",
		})
	}

	license, err := ledger.DisableLicense(code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "授权码不存在",
		})
	}
	if err != nil {
		log.Printf("停用授权码错误: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "停用失败",
		})
	}

	if sheetSync != nil {
		lic := *license
		go sheetSync.SyncLicense(&lic, 0)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "授权码已停用",
		"data":    license,
	})
}

// HandleUsageLogs 分页查询使用日志
func HandleUsageLogs(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "10"))

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}

	logs, total, err := ledger.UsageLogs(page, pageSize)
	if err != nil {
		log.Printf("获取使用日志错误: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "获取使用日志失败",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    logs,
		"total":   total,
		"page":    page,
		"size":    pageSize,
	})
}

// HandleLicenseUsage 查询单个授权码最近的使用日志
func HandleLicenseUsage(c *fiber.Ctx) error {
	licenseID, err := strconv.Atoi(c.Params("id"))
	if err != nil || licenseID < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "无效的授权码ID",
		})
	}

	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	logs, err := ledger.LicenseUsageLogs(uint(licenseID), limit)
	if err != nil {
		log.Printf("查询使用记录错误: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "查询使用记录失败",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    logs,
	})
}

// HandleStatistics 授权码统计信息
func HandleStatistics(c *fiber.Ctx) error {
	var start, end time.Time
	var err error

	if startDate := c.Query("start_date"); startDate != "" {
		start, err = time.Parse("2006-01-02", startDate)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "开始日期格式错误，应为 YYYY-MM-DD",
			})
		}
	} else {
		// 默认为30天前
		start = time.Now().AddDate(0, 0, -30)
	}

	if endDate := c.Query("end_date"); endDate != "" {
		end, err = time.Parse("2006-01-02", endDate)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "结束日期格式错误，应为 YYYY-MM-DD",
			})
		}
		end = end.AddDate(0, 0, 1)
	} else {
		end = time.Now()
	}

	stats, err := ledger.Statistics(start, end)
	if err != nil {
		log.Printf("获取统计信息错误: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "获取统计信息失败",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    stats,
	})
}
