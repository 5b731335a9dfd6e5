// Package config loads the coin ledger service configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no -config flag is given.
const DefaultConfigPath = "config.yaml"

// Environment overrides.
const (
	EnvDSN       = "COINLEDGER_DSN"
	EnvJWTSecret = "COINLEDGER_JWT_SECRET"
	EnvConfig    = "COINLEDGER_CONFIG"
)

// AppConfig is the full service configuration.
type AppConfig struct {
	Database    DatabaseConfig    `yaml:"database"`
	Server      ServerConfig      `yaml:"server"`
	JWT         JWTConfig         `yaml:"jwt"`
	Logging     LoggingConfig     `yaml:"logging"`
	Limits      LimitsConfig      `yaml:"limits"`
	Fraud       FraudConfig       `yaml:"fraud"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
}

// DatabaseConfig selects the datastore.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // postgres:// URL or SQLite path.
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// JWTConfig holds the token verification secret.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// LoggingConfig configures logrus output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // "text" or "json".
	File       string `yaml:"file"`   // Empty logs to stdout.
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// LimitsConfig holds the rolling cap defaults.
type LimitsConfig struct {
	DailyEarn     int64 `yaml:"daily_earn"`
	MonthlyRedeem int64 `yaml:"monthly_redeem"`
}

// FraudConfig holds the redemption risk scoring defaults.
type FraudConfig struct {
	DuplicateWindow    time.Duration `yaml:"duplicate_window"`
	RapidWindow        time.Duration `yaml:"rapid_window"`
	DailyRedeemLimit   int64         `yaml:"daily_redeem_limit"`
	WeeklyRedeemLimit  int64         `yaml:"weekly_redeem_limit"`
	MonthlyRedeemLimit int64         `yaml:"monthly_redeem_limit"`
	DailyWeight        int           `yaml:"daily_weight"`
	WeeklyWeight       int           `yaml:"weekly_weight"`
	MonthlyWeight      int           `yaml:"monthly_weight"`
	RapidWeight        int           `yaml:"rapid_weight"`
	ReviewScore        int           `yaml:"review_score"`
	FraudulentScore    int           `yaml:"fraudulent_score"`
	BlockScore         int           `yaml:"block_score"`
}

// IdempotencyConfig controls how long idempotency keys are retained.
type IdempotencyConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// Default returns the configuration used when no file is present.
func Default() AppConfig {
	return AppConfig{
		Database: DatabaseConfig{DSN: "data/coinledger.db"},
		Server:   ServerConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Logging:  LoggingConfig{Level: "info", Format: "text", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 30},
		Limits:   LimitsConfig{DailyEarn: 500, MonthlyRedeem: 1000},
		Fraud: FraudConfig{
			DuplicateWindow:    time.Hour,
			RapidWindow:        5 * time.Minute,
			DailyRedeemLimit:   500,
			WeeklyRedeemLimit:  750,
			MonthlyRedeemLimit: 1000,
			DailyWeight:        30,
			WeeklyWeight:       20,
			MonthlyWeight:      15,
			RapidWeight:        25,
			ReviewScore:        20,
			FraudulentScore:    40,
			BlockScore:         50,
		},
		Idempotency: IdempotencyConfig{TTL: 24 * time.Hour},
	}
}

// ResolveConfigPath picks the config path from the flag value, environment, or default.
func ResolveConfigPath(flagValue string) string {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(EnvConfig)); p != "" {
		return p
	}
	return DefaultConfigPath
}

// Load reads the YAML file at path over the defaults. A missing file yields the defaults.
func Load(path string) (AppConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	if dsn := strings.TrimSpace(os.Getenv(EnvDSN)); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		cfg.JWT.Secret = secret
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the ledger cannot run with.
func (c AppConfig) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("config: database.dsn is required")
	}
	if c.Limits.DailyEarn <= 0 || c.Limits.MonthlyRedeem <= 0 {
		return fmt.Errorf("config: limits must be positive")
	}
	if c.Fraud.ReviewScore > c.Fraud.FraudulentScore || c.Fraud.FraudulentScore > c.Fraud.BlockScore {
		return fmt.Errorf("config: fraud scores must satisfy review <= fraudulent <= block")
	}
	if c.Idempotency.TTL < 0 {
		return fmt.Errorf("config: idempotency.ttl must not be negative")
	}
	return nil
}
