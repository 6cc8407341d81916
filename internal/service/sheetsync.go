package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"license-auth-server/internal/model"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetSyncService 把授权码数据同步到 Google Sheet，供外部报表使用
// 同步失败只影响报表，不影响授权主流程
type SheetSyncService struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
}

func NewSheetSyncService(enableSync bool, credentialPath, spreadsheetID, sheetName string) (*SheetSyncService, error) {
	if !enableSync {
		return nil, nil
	}

	ctx := context.Background()

	// 读取服务账号凭证
	b, err := os.ReadFile(credentialPath)
	if err != nil {
		return nil, err
	}

	creds, err := google.CredentialsFromJSON(ctx, b, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("无法加载凭证: %v", err)
	}

	srv, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, err
	}

	return &SheetSyncService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func licenseRow(license *model.License, deviceCount int64) []interface{} {
	return []interface{}{
		license.Code,
		license.Name,
		license.Status,
		strconv.Itoa(license.MaxDevices),
		strconv.FormatInt(deviceCount, 10),
		license.ExpiresAt.Format(time.RFC3339),
		license.CreatedAt.Format(time.RFC3339),
	}
}

// SyncLicense 按授权码更新或追加一行
func (s *SheetSyncService) SyncLicense(license *model.License, deviceCount int64) error {
	if s == nil {
		return nil
	}

	// 在A列查找该授权码所在行
	rangeToSearch := fmt.Sprintf("%s!A2:A", s.sheetName)
	keyResp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, rangeToSearch).Do()
	if err != nil {
		log.Printf("查询Sheet数据失败: %v", err)
		return fmt.Errorf("查询Sheet数据失败: %v", err)
	}

	var rowIndex int
	found := false
	for i, row := range keyResp.Values {
		if len(row) > 0 && row[0] == license.Code {
			found = true
			rowIndex = i + 2 // +2因为A2开始且数组从0开始
			break
		}
	}

	values := [][]interface{}{licenseRow(license, deviceCount)}

	if found {
		rangeData := fmt.Sprintf("%s!A%d:G%d", s.sheetName, rowIndex, rowIndex)
		_, err = s.service.Spreadsheets.Values.Update(
			s.spreadsheetID,
			rangeData,
			&sheets.ValueRange{Values: values},
		).ValueInputOption("USER_ENTERED").Do()
	} else {
		_, err = s.service.Spreadsheets.Values.Append(
			s.spreadsheetID,
			s.sheetName+"!A2:G",
			&sheets.ValueRange{Values: values},
		).ValueInputOption("USER_ENTERED").Do()
	}

	if err != nil {
		log.Printf("同步到Google Sheet失败: %v", err)
		return fmt.Errorf("同步到Google Sheet失败: %v", err)
	}

	return nil
}

// BatchSyncLicenses 批量追加授权码列表，含绑定设备数
func (s *SheetSyncService) BatchSyncLicenses(rows []model.LicenseWithCount) error {
	if s == nil {
		return nil
	}

	var values [][]interface{}
	for i := range rows {
		license := &model.License{
			Code:       rows[i].Code,
			Name:       rows[i].Name,
			MaxDevices: rows[i].MaxDevices,
			ExpiresAt:  rows[i].ExpiresAt,
			CreatedAt:  rows[i].CreatedAt,
			Status:     rows[i].Status,
		}
		values = append(values, licenseRow(license, rows[i].DeviceCount))
	}

	_, err := s.service.Spreadsheets.Values.Append(
		s.spreadsheetID,
		s.sheetName+"!A2:G",
		&sheets.ValueRange{Values: values},
	).ValueInputOption("USER_ENTERED").Do()
	if err != nil {
		log.Printf("批量同步授权码失败: %v", err)
		return err
	}

	return nil
}
