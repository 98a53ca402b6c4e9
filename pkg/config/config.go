package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Application settings
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"log"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// Server settings
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// Logging settings
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type SyncConfig struct {
	WindowDays       int           `mapstructure:"window_days"`
	AccountDelay     time.Duration `mapstructure:"account_delay"`
	HourlyCallBudget int           `mapstructure:"hourly_call_budget"`
	BatchSize        int           `mapstructure:"batch_size"`
	AccountIDs       []string      `mapstructure:"account_ids"`
}

type UpstreamConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIVersion        string        `mapstructure:"api_version"`
	AccessToken       string        `mapstructure:"access_token"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	PageLimit         int           `mapstructure:"page_limit"`
}

// DatabaseConfig selects the fact store. An empty DSN keeps everything in
// memory.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig enables the shared call budget when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

var defaults = map[string]any{
	"server.port":                  "8080",
	"server.mode":                  "release",
	"log.level":                    "info",
	"sync.window_days":             3,
	"sync.account_delay":           "2s",
	"sync.hourly_call_budget":      200,
	"sync.batch_size":              500,
	"sync.account_ids":             "",
	"upstream.base_url":            "https://graph.facebook.com",
	"upstream.api_version":         "v19.0",
	"upstream.access_token":        "",
	"upstream.timeout":             "30s",
	"upstream.requests_per_second": 5.0,
	"upstream.page_limit":          500,
	"database.dsn":                 "",
	"database.max_open_conns":      10,
	"database.max_idle_conns":      5,
	"database.conn_max_lifetime":   "30m",
	"redis.addr":                   "",
	"redis.password":               "",
	"redis.db":                     0,
}

// Load reads .env (if present), an optional config.yaml, then environment
// variables. Environment keys are the upper-cased dotted key with dots
// replaced by underscores, e.g. SYNC_WINDOW_DAYS.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Sync.AccountIDs = normalizeIDs(cfg.Sync.AccountIDs)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the sync cannot run with.
func (c *Config) Validate() error {
	if c.Sync.WindowDays < 1 {
		return fmt.Errorf("sync.window_days must be at least 1, got %d", c.Sync.WindowDays)
	}
	if c.Sync.HourlyCallBudget < 1 {
		return fmt.Errorf("sync.hourly_call_budget must be at least 1, got %d", c.Sync.HourlyCallBudget)
	}
	if c.Sync.BatchSize < 1 {
		return fmt.Errorf("sync.batch_size must be at least 1, got %d", c.Sync.BatchSize)
	}
	if c.Sync.AccountDelay < 0 {
		return fmt.Errorf("sync.account_delay must not be negative")
	}
	return nil
}

// normalizeIDs accepts comma separated values and strips the act_ prefix.
func normalizeIDs(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			out = append(out, strings.TrimPrefix(strings.TrimSpace(part), "act_"))
		}
	}
	return lo.Uniq(lo.Compact(out))
}
