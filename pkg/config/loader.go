package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from the environment-specific YAML file plus
// environment variable overrides, validates it, and returns the result.
func Load() (*Config, *viper.Viper, error) {
	// Local env files are optional.
	_ = godotenv.Load(".env.local", ".env")

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	v.SetConfigFile(fmt.Sprintf("./configs/%s.yaml", env))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.AppEnv = env

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, v, nil
}

// Watch re-reads the config file on change and delivers the parsed
// result to onChange. Parse or validation failures keep the previous
// configuration.
func Watch(v *viper.Viper, log *slog.Logger, onChange func(*Config)) {
	if v == nil || onChange == nil {
		return
	}
	if log == nil {
		log = slog.Default()
	}

	v.OnConfigChange(func(event fsnotify.Event) {
		log.Info("config file changed", slog.String("file", event.Name))

		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			log.Error("failed to reload config", slog.Any("error", err))
			return
		}

		validate := validator.New(validator.WithRequiredStructEnabled())
		if err := validate.Struct(cfg); err != nil {
			log.Error("reloaded config is invalid, keeping previous", slog.Any("error", err))
			return
		}

		onChange(&cfg)
	})
	v.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.mode", "polling")
	v.SetDefault("bot.timeout", "10s")
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.migrations_dir", "migrations")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("quote.timeout", "10s")
	v.SetDefault("gas_oracle.timeout", "5s")
	v.SetDefault("gas_oracle.cache_ttl", "30s")
	v.SetDefault("chain.receipt_poll_interval", "2s")
	v.SetDefault("chain.receipt_timeout", "2m")
	v.SetDefault("rate_limit.per_user.limit", 20)
	v.SetDefault("rate_limit.per_user.window", "1m")
	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.concurrency", 10)
	v.SetDefault("jobs.gas_refresh_cron", "* * * * *")
	v.SetDefault("jobs.metadata_warm_cron", "0 * * * *")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}
