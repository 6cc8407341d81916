package service

import (
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"license-auth-server/internal/database"
	"license-auth-server/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{5}-[A-Z0-9]{5}-[A-Z0-9]{5}-[A-Z0-9]{5}$`)

func newTestLedger(t *testing.T) *LicenseLedger {
	t.Helper()
	db := database.OpenTest()
	t.Cleanup(func() { database.CleanTest(db) })
	return NewLicenseLedger(db)
}

func TestIssueDefaults(t *testing.T) {
	ledger := newTestLedger(t)

	license, err := ledger.Issue("", 0, 0)
	require.NoError(t, err)

	assert.NotZero(t, license.ID)
	assert.Regexp(t, codePattern, license.Code)
	assert.Equal(t, 1, license.MaxDevices)
	assert.Equal(t, model.LicenseStatusActive, license.Status)

	// 默认有效期365天
	expected := time.Now().AddDate(0, 0, 365)
	assert.WithinDuration(t, expected, license.ExpiresAt, time.Minute)
}

func TestIssueGeneratesDistinctCodes(t *testing.T) {
	ledger := newTestLedger(t)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		license, err := ledger.Issue("test", 1, 30)
		require.NoError(t, err)
		assert.False(t, seen[license.Code])
		seen[license.Code] = true
	}
}

func TestVerifyUnknownCode(t *testing.T) {
	ledger := newTestLedger(t)

	result, err := ledger.Verify("AAAAA-BBBBB-CCCCC-DDDDD", "fp-1")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "授权码无效或已过期", result.Message)

	var count int64
	ledger.db.Model(&model.UserDevice{}).Count(&count)
	assert.Zero(t, count)
}

func TestVerifyExpiredLicense(t *testing.T) {
	ledger := newTestLedger(t)

	license, err := ledger.Issue("expired", 2, 1)
	require.NoError(t, err)

	// 把有效期改到过去
	err = ledger.db.Model(&model.License{}).Where("id = ?", license.ID).
		Update("expires_at", time.Now().Add(-time.Hour)).Error
	require.NoError(t, err)

	result, err := ledger.Verify(license.Code, "fp-1")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "授权码无效或已过期", result.Message)
}

func TestVerifyDisabledLicense(t *testing.T) {
	ledger := newTestLedger(t)

	license, err := ledger.Issue("disabled", 1, 30)
	require.NoError(t, err)

	_, err = ledger.DisableLicense(license.Code)
	require.NoError(t, err)

	result, err := ledger.Verify(license.Code, "fp-1")
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

// 设备绑定状态机的完整流程
func TestVerifyDeviceLifecycle(t *testing.T) {
	ledger := newTestLedger(t)

	license, err := ledger.Issue("team", 2, 1)
	require.NoError(t, err)

	// 设备A首次验证，绑定
	resA, err := ledger.Verify(license.Code, "fp-A")
	require.NoError(t, err)
	assert.True(t, resA.Valid)
	assert.NotEmpty(t, resA.Token)
	assert.Equal(t, "验证成功(新设备绑定)", resA.Message)
	assert.WithinDuration(t, license.ExpiresAt, resA.ExpiresAt, time.Second)

	// 设备B首次验证，绑定，达到上限
	resB, err := ledger.Verify(license.Code, "fp-B")
	require.NoError(t, err)
	assert.True(t, resB.Valid)

	// 设备C被数量上限挡住，且不产生新绑定
	resC, err := ledger.Verify(license.Code, "fp-C")
	require.NoError(t, err)
	assert.False(t, resC.Valid)
	assert.Equal(t, "设备数量已达上限(2台)", resC.Message)
	assert.Empty(t, resC.Token)

	var count int64
	ledger.db.Model(&model.UserDevice{}).Where("license_id = ?", license.ID).Count(&count)
	assert.EqualValues(t, 2, count)

	// 设备A满员后仍可重新验证，令牌轮换
	resA2, err := ledger.Verify(license.Code, "fp-A")
	require.NoError(t, err)
	assert.True(t, resA2.Valid)
	assert.Equal(t, "验证成功(已绑定设备)", resA2.Message)
	assert.NotEqual(t, resA.Token, resA2.Token)

	ledger.db.Model(&model.UserDevice{}).Where("license_id = ?", license.ID).Count(&count)
	assert.EqualValues(t, 2, count)

	// 过期后设备A也不能再验证
	err = ledger.db.Model(&model.License{}).Where("id = ?", license.ID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error
	require.NoError(t, err)

	resA3, err := ledger.Verify(license.Code, "fp-A")
	require.NoError(t, err)
	assert.False(t, resA3.Valid)
}

func TestVerifyTokenRotatesUnderCapacity(t *testing.T) {
	ledger := newTestLedger(t)

	license, err := ledger.Issue("rotate", 3, 30)
	require.NoError(t, err)

	first, err := ledger.Verify(license.Code, "fp-A")
	require.NoError(t, err)
	second, err := ledger.Verify(license.Code, "fp-A")
	require.NoError(t, err)

	assert.True(t, second.Valid)
	assert.NotEqual(t, first.Token, second.Token)

	// 同一指纹只占一个绑定
	var count int64
	ledger.db.Model(&model.UserDevice{}).Where("license_id = ?", license.ID).Count(&count)
	assert.EqualValues(t, 1, count)

	// 旧令牌被覆盖后不再有效
	old, err := ledger.ValidateToken(first.Token)
	require.NoError(t, err)
	assert.False(t, old.Valid)
}

func TestValidateToken(t *testing.T) {
	ledger := newTestLedger(t)

	license, err := ledger.Issue("tokens", 1, 30)
	require.NoError(t, err)

	verified, err := ledger.Verify(license.Code, "fp-A")
	require.NoError(t, err)
	require.True(t, verified.Valid)

	result, err := ledger.ValidateToken(verified.Token)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.WithinDuration(t, license.ExpiresAt, result.ExpiresAt, time.Second)

	// 从未签发过的令牌
	result, err = ledger.ValidateToken("deadbeef")
	require.NoError(t, err)
	assert.False(t, result.Valid)

	// 停用授权码后令牌失效
	_, err = ledger.DisableLicense(license.Code)
	require.NoError(t, err)

	result, err = ledger.ValidateToken(verified.Token)
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestValidateTokenExpiredLicense(t *testing.T) {
	ledger := newTestLedger(t)

	license, err := ledger.Issue("soon", 1, 1)
	require.NoError(t, err)

	verified, err := ledger.Verify(license.Code, "fp-A")
	require.NoError(t, err)

	err = ledger.db.Model(&model.License{}).Where("id = ?", license.ID).
		Update("expires_at", time.Now().Add(-time.Second)).Error
	require.NoError(t, err)

	result, err := ledger.ValidateToken(verified.Token)
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

// 验证不轮换令牌的只读语义
func TestValidateTokenDoesNotRotate(t *testing.T) {
	ledger := newTestLedger(t)

	license, err := ledger.Issue("readonly", 1, 30)
	require.NoError(t, err)

	verified, err := ledger.Verify(license.Code, "fp-A")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		result, err := ledger.ValidateToken(verified.Token)
		require.NoError(t, err)
		assert.True(t, result.Valid)
	}
}

func TestListLicenses(t *testing.T) {
	ledger := newTestLedger(t)

	first, err := ledger.Issue("first", 2, 30)
	require.NoError(t, err)
	second, err := ledger.Issue("second", 1, 30)
	require.NoError(t, err)

	// 拉开创建时间，保证排序可断言
	err = ledger.db.Model(&model.License{}).Where("id = ?", first.ID).
		Update("created_at", time.Now().Add(-time.Hour)).Error
	require.NoError(t, err)

	_, err = ledger.Verify(first.Code, "fp-A")
	require.NoError(t, err)
	_, err = ledger.Verify(first.Code, "fp-B")
	require.NoError(t, err)

	rows, err := ledger.ListLicenses()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// 最新创建的排在前面
	assert.Equal(t, second.Code, rows[0].Code)
	assert.EqualValues(t, 0, rows[0].DeviceCount)
	assert.Equal(t, first.Code, rows[1].Code)
	assert.EqualValues(t, 2, rows[1].DeviceCount)

	// 无写入时重复查询结果稳定
	again, err := ledger.ListLicenses()
	require.NoError(t, err)
	assert.Equal(t, rows, again)
}

// M+K 个设备同时首次验证，绑定数不能超过 M
func TestVerifyConcurrentFirstBindings(t *testing.T) {
	ledger := newTestLedger(t)

	const maxDevices = 3
	const attempts = 8

	license, err := ledger.Issue("concurrent", maxDevices, 30)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*model.VerifyResult, attempts)
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = ledger.Verify(license.Code, fmt.Sprintf("fp-%d", i))
		}(i)
	}
	wg.Wait()

	valid := 0
	for i := 0; i < attempts; i++ {
		require.NoError(t, errs[i])
		if results[i].Valid {
			valid++
		} else {
			assert.Contains(t, results[i].Message, "设备数量已达上限")
		}
	}
	assert.Equal(t, maxDevices, valid)

	var count int64
	ledger.db.Model(&model.UserDevice{}).Where("license_id = ?", license.ID).Count(&count)
	assert.EqualValues(t, maxDevices, count)
}

func TestRecordUsage(t *testing.T) {
	ledger := newTestLedger(t)

	license, err := ledger.Issue("audit", 1, 30)
	require.NoError(t, err)

	ledger.RecordUsage(license.ID, model.ActionVerify, "1.2.3.4", "test-agent")
	ledger.RecordUsage(license.ID, model.ActionValidate, "1.2.3.4", "test-agent")

	var logs []model.UsageLog
	require.NoError(t, ledger.db.Where("license_id = ?", license.ID).Find(&logs).Error)
	require.Len(t, logs, 2)
	assert.Equal(t, model.ActionVerify, logs[0].Action)
	assert.Equal(t, "1.2.3.4", logs[0].IPAddress)
}

// 日志表不可写时只吞掉错误，不影响调用方
func TestRecordUsageSwallowsFailure(t *testing.T) {
	ledger := newTestLedger(t)

	require.NoError(t, ledger.db.Migrator().DropTable(&model.UsageLog{}))

	assert.NotPanics(t, func() {
		ledger.RecordUsage(1, model.ActionVerify, "1.2.3.4", "test-agent")
	})
}

func TestUsageLogsPagination(t *testing.T) {
	ledger := newTestLedger(t)

	license, err := ledger.Issue("paging", 1, 30)
	require.NoError(t, err)

	for i := 0; i < 15; i++ {
		ledger.RecordUsage(license.ID, model.ActionVerify, "1.2.3.4", "agent")
	}

	logs, total, err := ledger.UsageLogs(1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 15, total)
	assert.Len(t, logs, 10)

	logs, _, err = ledger.UsageLogs(2, 10)
	require.NoError(t, err)
	assert.Len(t, logs, 5)
}

func TestStatistics(t *testing.T) {
	ledger := newTestLedger(t)

	active, err := ledger.Issue("active", 2, 30)
	require.NoError(t, err)
	disabled, err := ledger.Issue("disabled", 1, 30)
	require.NoError(t, err)
	_, err = ledger.DisableLicense(disabled.Code)
	require.NoError(t, err)

	_, err = ledger.Verify(active.Code, "fp-A")
	require.NoError(t, err)
	ledger.RecordUsage(active.ID, model.ActionVerify, "1.2.3.4", "agent")
	ledger.RecordUsage(active.ID, model.ActionValidate, "1.2.3.4", "agent")

	stats, err := ledger.Statistics(time.Now().AddDate(0, 0, -1), time.Now().AddDate(0, 0, 1))
	require.NoError(t, err)

	assert.EqualValues(t, 2, stats.TotalLicenses)
	assert.EqualValues(t, 1, stats.ActiveLicenses)
	assert.EqualValues(t, 1, stats.DisabledLicenses)
	assert.EqualValues(t, 1, stats.BoundDevices)
	assert.EqualValues(t, 1, stats.TotalVerifies)
	assert.EqualValues(t, 1, stats.TotalValidates)
	require.Len(t, stats.DailyUsage, 1)
	assert.Equal(t, 1, stats.DailyUsage[0].Verifies)
}
