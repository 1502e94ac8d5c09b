package config

import (
	"flag"
	"os"
	"path/filepath"
	"regexp"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	// Storage settings
	DatabasePath string `env:"DATABASE_PATH"`
	BackupDir    string `env:"BACKUP_DIR"`

	// Maintenance settings
	BackupIntervalHours  int `env:"BACKUP_INTERVAL_HOURS"`
	BackupRetentionDays  int `env:"BACKUP_RETENTION_DAYS"`
	VersionRetentionDays int `env:"VERSION_RETENTION_DAYS"`

	// Server settings
	BaseURL     string `env:"BASE_URL"`
	AuthSecret  string `env:"AUTH_SECRET"`
	EnableHTTPS bool   `env:"ENABLE_HTTPS"`

	ServerURL string `env:"-"`
}

func NewConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	_ = env.Parse(cfg)

	// flags работают ТОЛЬКО если переменные из env не заданы
	flag.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "путь к файлу SQLite")
	flag.StringVar(&cfg.BackupDir, "backup-dir", cfg.BackupDir, "каталог для бэкапов")
	flag.IntVar(&cfg.BackupIntervalHours, "backup-interval", cfg.BackupIntervalHours, "интервал авто-бэкапа в часах")
	flag.IntVar(&cfg.BackupRetentionDays, "backup-retention", cfg.BackupRetentionDays, "срок хранения бэкапов в днях")
	flag.IntVar(&cfg.VersionRetentionDays, "version-retention", cfg.VersionRetentionDays, "срок хранения автосохранённых версий в днях")
	flag.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "адрес сервера в формате host:port")
	flag.StringVar(&cfg.AuthSecret, "auth-secret", cfg.AuthSecret, "секрет для подписи JWT")
	flag.BoolVar(&cfg.EnableHTTPS, "https", cfg.EnableHTTPS, "enable HTTPS")

	flag.Parse()

	// Defaults
	home, _ := os.UserHomeDir()
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(home, ".mindvault", "mindvault.db")
	}
	if cfg.BackupDir == "" {
		cfg.BackupDir = filepath.Join(filepath.Dir(cfg.DatabasePath), "backups")
	}
	if cfg.BackupIntervalHours <= 0 {
		cfg.BackupIntervalHours = 24
	}
	if cfg.BackupRetentionDays <= 0 {
		cfg.BackupRetentionDays = 30
	}
	if cfg.VersionRetentionDays <= 0 {
		cfg.VersionRetentionDays = 30
	}
	if cfg.AuthSecret == "" {
		cfg.AuthSecret = "dev-secret-key"
	}
	// validate BaseURL: must be in "address:port" (no scheme, no path). Otherwise use default.
	hostPortRe := regexp.MustCompile(`^[A-Za-z0-9\.\-]+:\d{1,5}$`)
	if !hostPortRe.MatchString(cfg.BaseURL) {
		cfg.BaseURL = "localhost:8081"
	}

	if cfg.EnableHTTPS {
		cfg.ServerURL = "https://" + cfg.BaseURL
	} else {
		cfg.ServerURL = "http://" + cfg.BaseURL
	}

	return cfg
}
