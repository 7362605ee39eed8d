package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if errWrite := os.WriteFile(path, []byte(contents), 0o600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "database-dsn: file:test.db\n")

	cfg, errLoad := Load(path)
	if errLoad != nil {
		t.Fatalf("Load: %v", errLoad)
	}
	if cfg.Schedule.RefreshAt != "01:00" || cfg.Schedule.LifecycleAt != "02:30" {
		t.Fatalf("schedule defaults = %q / %q", cfg.Schedule.RefreshAt, cfg.Schedule.LifecycleAt)
	}
	if cfg.Schedule.Timezone != "UTC" {
		t.Fatalf("timezone default = %q", cfg.Schedule.Timezone)
	}
	if cfg.Ledger.BonusValidity != 24*time.Hour {
		t.Fatalf("bonus validity default = %s", cfg.Ledger.BonusValidity)
	}
	if cfg.JWT.Expiry != defaultJWTExpiry {
		t.Fatalf("jwt expiry default = %s", cfg.JWT.Expiry)
	}
	if cfg.Port != 8318 {
		t.Fatalf("port default = %d", cfg.Port)
	}
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	cfg, errLoad := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if errLoad != nil {
		t.Fatalf("Load: %v", errLoad)
	}
	if _, errDSN := cfg.DSN(); !errors.Is(errDSN, ErrMissingDatabaseDSN) {
		t.Fatalf("expected ErrMissingDatabaseDSN, got %v", errDSN)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "database-dsn: file:from-file.db\njwt:\n  secret: from-file\n")

	t.Setenv(EnvDBConnection, "postgres://env/db")
	t.Setenv(EnvJWTSecret, "from-env")
	t.Setenv(EnvWebhookSecret, "hook-secret")
	t.Setenv(EnvCronSecret, "cron-secret")

	cfg, errLoad := Load(path)
	if errLoad != nil {
		t.Fatalf("Load: %v", errLoad)
	}
	dsn, errDSN := cfg.DSN()
	if errDSN != nil || dsn != "postgres://env/db" {
		t.Fatalf("dsn = %q, %v", dsn, errDSN)
	}
	if cfg.JWT.Secret != "from-env" {
		t.Fatalf("jwt secret = %q, want env override", cfg.JWT.Secret)
	}
	if cfg.Webhook.Secret != "hook-secret" || cfg.CronSecret != "cron-secret" {
		t.Fatalf("secrets = %q / %q", cfg.Webhook.Secret, cfg.CronSecret)
	}
}

func TestLoad_FullFile(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: file:nested.db
jwt:
  secret: abc
  expiry: 1h
schedule:
  refresh-at: "03:15"
  lifecycle-at: "04:45"
  timezone: America/New_York
ledger:
  bonus-validity: 48h
  spend-limit: 30
port: 9000
`)

	cfg, errLoad := Load(path)
	if errLoad != nil {
		t.Fatalf("Load: %v", errLoad)
	}
	dsn, _ := cfg.DSN()
	if dsn != "file:nested.db" {
		t.Fatalf("nested dsn = %q", dsn)
	}
	if cfg.JWT.Expiry != time.Hour {
		t.Fatalf("jwt expiry = %s", cfg.JWT.Expiry)
	}
	if cfg.Schedule.RefreshAt != "03:15" || cfg.Schedule.Timezone != "America/New_York" {
		t.Fatalf("schedule = %+v", cfg.Schedule)
	}
	if cfg.Ledger.BonusValidity != 48*time.Hour || cfg.Ledger.SpendLimit != 30 {
		t.Fatalf("ledger = %+v", cfg.Ledger)
	}
	if cfg.Port != 9000 {
		t.Fatalf("port = %d", cfg.Port)
	}
}
