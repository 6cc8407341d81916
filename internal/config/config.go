package config

import (
	"github.com/kelseyhightower/envconfig"
)

// Config 服务配置，全部来自环境变量
type Config struct {
	ListenAddr  string   `envconfig:"LISTEN_ADDR" default:":3000"`
	DataDir     string   `envconfig:"DATA_DIR" default:"data"`
	DBFile      string   `envconfig:"DB_FILE" default:"license.db"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`

	// 初始管理员账户，首次启动时写入数据库
	AdminUsername string `envconfig:"ADMIN_USERNAME" default:"admin"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD" default:"admin"`

	JWTSecret string `envconfig:"JWT_SECRET" default:"license-auth-secret"`

	// Google Sheets 同步（可选）
	SheetSyncEnabled bool   `envconfig:"SHEET_SYNC_ENABLED" default:"false"`
	SheetCredential  string `envconfig:"SHEET_CREDENTIAL_PATH"`
	SpreadsheetID    string `envconfig:"SPREADSHEET_ID"`
	SheetName        string `envconfig:"SHEET_NAME" default:"licenses"`
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
