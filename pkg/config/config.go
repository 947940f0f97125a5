// Package config provides configuration loading and validation utilities.
package config

import (
	"fmt"
	"time"
)

// Config holds the full runtime configuration.
type Config struct {
	AppEnv string `mapstructure:"-"`

	Bot       BotConfig       `mapstructure:"bot"`
	Server    ServerConfig    `mapstructure:"server"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Quote     QuoteConfig     `mapstructure:"quote"`
	GasOracle GasOracleConfig `mapstructure:"gas_oracle"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// BotConfig configures the Telegram transport.
type BotConfig struct {
	Token   string        `mapstructure:"token" validate:"required"`
	Mode    string        `mapstructure:"mode" validate:"oneof=polling webhook"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ServerConfig configures the auxiliary HTTP server (health, metrics).
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// PostgresConfig configures the PostgreSQL connection.
type PostgresConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     string `mapstructure:"port" validate:"required"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
	DBName   string `mapstructure:"db_name" validate:"required"`
	SSLMode  string `mapstructure:"ssl_mode"`

	MigrationsDir string `mapstructure:"migrations_dir"`
}

// DSN returns the PostgreSQL connection string.
func (c PostgresConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, sslMode,
	)
}

// RedisConfig configures the Redis connection shared by state storage,
// caches, locks, and the job queue.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr" validate:"required"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// ChainConfig configures the blockchain connection and wallet custody.
type ChainConfig struct {
	RPCURL  string `mapstructure:"rpc_url" validate:"required,url"`
	ChainID int64  `mapstructure:"chain_id" validate:"required,gt=0"`
	// WalletEncryptionKey is hex for 32 bytes of AES key material.
	WalletEncryptionKey string `mapstructure:"wallet_encryption_key" validate:"required,len=64,hexadecimal"`

	ReceiptPollInterval time.Duration `mapstructure:"receipt_poll_interval"`
	ReceiptTimeout      time.Duration `mapstructure:"receipt_timeout"`
}

// QuoteConfig configures the swap aggregator client.
type QuoteConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
	Debug   bool          `mapstructure:"debug"`
}

// GasOracleConfig configures the gas price oracle client.
type GasOracleConfig struct {
	BaseURL  string        `mapstructure:"base_url" validate:"required,url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// RateLimitRule defines a single limit over a time window.
type RateLimitRule struct {
	Limit  int    `mapstructure:"limit"`
	Window string `mapstructure:"window"`
}

// RateLimitCommands holds per-command limits.
type RateLimitCommands struct {
	Buy      RateLimitRule `mapstructure:"buy"`
	Sell     RateLimitRule `mapstructure:"sell"`
	Withdraw RateLimitRule `mapstructure:"withdraw"`
}

// RateLimitConfig configures request throttling.
type RateLimitConfig struct {
	Global    RateLimitRule     `mapstructure:"global"`
	PerUser   RateLimitRule     `mapstructure:"per_user"`
	Commands  RateLimitCommands `mapstructure:"commands"`
	Whitelist []int64           `mapstructure:"whitelist"`
}

// JobsConfig configures the background worker and scheduler.
type JobsConfig struct {
	Enabled          bool           `mapstructure:"enabled"`
	Concurrency      int            `mapstructure:"concurrency"`
	Queues           map[string]int `mapstructure:"queues"`
	GasRefreshCron   string         `mapstructure:"gas_refresh_cron"`
	MetadataWarmCron string         `mapstructure:"metadata_warm_cron"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// LoggerFileConfig configures log file rotation.
type LoggerFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// LoggerConfig configures structured logging.
type LoggerConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format" validate:"omitempty,oneof=json text"`
	File   LoggerFileConfig `mapstructure:"file"`
}
