package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable overrides.
const (
	EnvConfigPath    = "CONFIG_PATH"
	EnvDBConnection  = "DB_CONNECTION"
	EnvJWTSecret     = "JWT_SECRET"
	EnvJWTExpiry     = "JWT_EXPIRY"
	EnvWebhookSecret = "WEBHOOK_SECRET"
	EnvCronSecret    = "CRON_SECRET"
	EnvRedisAddr     = "REDIS_ADDR"
)

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 30 * 24 * time.Hour

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// ScheduleConfig holds the daily trigger times for the two sweeps. Times are
// "HH:MM" in the configured location; the two sweeps run at distinct times so
// they do not contend on the same records simultaneously.
type ScheduleConfig struct {
	RefreshAt   string `yaml:"refresh-at"`
	LifecycleAt string `yaml:"lifecycle-at"`
	Timezone    string `yaml:"timezone"`
}

// WebhookConfig holds the settlement webhook signing secret.
type WebhookConfig struct {
	Secret string `yaml:"secret"`
}

// LedgerConfig holds tunables for the token ledger.
type LedgerConfig struct {
	BonusValidity time.Duration `yaml:"bonus-validity"`
	SpendLimit    int           `yaml:"spend-limit"` // Spend requests per user per minute; 0 disables.
}

// Config holds resolved application configuration values.
type Config struct {
	ConfigPath string `yaml:"-"`

	DatabaseDSN string `yaml:"database-dsn"`
	Database    struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`

	JWT      JWTConfig      `yaml:"jwt"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Ledger   LedgerConfig   `yaml:"ledger"`

	CronSecret string `yaml:"cron-secret"`
	RedisAddr  string `yaml:"redis-addr"`
	Port       int    `yaml:"port"`
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// Load reads the YAML config file, applies defaults and env overrides. A
// missing file is not an error; env vars can carry the full configuration.
func Load(configPath string) (Config, error) {
	cfg := Config{ConfigPath: ResolveConfigPath(configPath)}

	data, errRead := os.ReadFile(cfg.ConfigPath)
	if errRead == nil {
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", cfg.ConfigPath, errUnmarshal)
		}
	} else if !os.IsNotExist(errRead) {
		return Config{}, fmt.Errorf("config: read %s: %w", cfg.ConfigPath, errRead)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

// DSN returns the resolved database DSN.
func (c *Config) DSN() (string, error) {
	if dsn := strings.TrimSpace(c.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(c.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

func applyEnvOverrides(cfg *Config) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		cfg.DatabaseDSN = dsn
	}
	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		cfg.JWT.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			cfg.JWT.Expiry = expiry
		}
	}
	if secret := strings.TrimSpace(os.Getenv(EnvWebhookSecret)); secret != "" {
		cfg.Webhook.Secret = secret
	}
	if secret := strings.TrimSpace(os.Getenv(EnvCronSecret)); secret != "" {
		cfg.CronSecret = secret
	}
	if addr := strings.TrimSpace(os.Getenv(EnvRedisAddr)); addr != "" {
		cfg.RedisAddr = addr
	}
}

func applyDefaults(cfg *Config) {
	if cfg.JWT.Expiry <= 0 {
		cfg.JWT.Expiry = defaultJWTExpiry
	}
	if strings.TrimSpace(cfg.Schedule.RefreshAt) == "" {
		cfg.Schedule.RefreshAt = "01:00"
	}
	if strings.TrimSpace(cfg.Schedule.LifecycleAt) == "" {
		cfg.Schedule.LifecycleAt = "02:30"
	}
	if strings.TrimSpace(cfg.Schedule.Timezone) == "" {
		cfg.Schedule.Timezone = "UTC"
	}
	if cfg.Ledger.BonusValidity <= 0 {
		cfg.Ledger.BonusValidity = 24 * time.Hour
	}
	if cfg.Ledger.SpendLimit < 0 {
		cfg.Ledger.SpendLimit = 0
	}
	if cfg.Port <= 0 {
		cfg.Port = 8318
	}
}
