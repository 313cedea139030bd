// Package config loads typed configuration from environment variables and an
// optional config file, with TIDYROUND_ prefixed overrides.
package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SchedulerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	GenerateCron  string        `mapstructure:"generate_cron"`
	ReconcileCron string        `mapstructure:"reconcile_cron"`
	RetryEvery    time.Duration `mapstructure:"retry_every"`
	JobLockTTL    time.Duration `mapstructure:"job_lock_ttl"`
	SharedSecret  string        `mapstructure:"shared_secret"`
}

type ServiceConfig struct {
	Timezone           string        `mapstructure:"timezone"`
	DefaultServiceHour int           `mapstructure:"default_service_hour"`
	MinBeforePhotos    int           `mapstructure:"min_before_photos"`
	MinAfterPhotos     int           `mapstructure:"min_after_photos"`
	ItemTimeout        time.Duration `mapstructure:"item_timeout"`
}

type EarningsConfig struct {
	PlatformCutBps int64 `mapstructure:"platform_cut_bps"`
	CadenceDivisor int64 `mapstructure:"cadence_divisor"`
}

type PayoutConfig struct {
	MinimumAmountCents int64 `mapstructure:"minimum_amount_cents"`
	ToleranceCents     int64 `mapstructure:"tolerance_cents"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

type GatewayConfig struct {
	Provider string        `mapstructure:"provider"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type NotificationConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type Config struct {
	HTTP         HTTPConfig         `mapstructure:"http"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Service      ServiceConfig      `mapstructure:"service"`
	Earnings     EarningsConfig     `mapstructure:"earnings"`
	Payout       PayoutConfig       `mapstructure:"payout"`
	Retry        RetryConfig        `mapstructure:"retry"`
	Gateway      GatewayConfig      `mapstructure:"gateway"`
	Notification NotificationConfig `mapstructure:"notification"`
	Log          LogConfig          `mapstructure:"log"`
}

func Load() (Config, error) {
	// Optional .env for local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TIDYROUND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName("tidyround")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/tidyround")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=tidyround dbname=tidyround sslmode=disable")

	// Every key needs a default: AutomaticEnv only resolves keys viper
	// already knows about, so an env-only key without one is invisible to
	// Unmarshal.
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.generate_cron", "0 5 * * 1")
	v.SetDefault("scheduler.reconcile_cron", "30 4 * * *")
	v.SetDefault("scheduler.retry_every", 5*time.Minute)
	v.SetDefault("scheduler.job_lock_ttl", 10*time.Minute)
	v.SetDefault("scheduler.shared_secret", "")

	v.SetDefault("service.timezone", "America/New_York")
	v.SetDefault("service.default_service_hour", 7)
	v.SetDefault("service.min_before_photos", 4)
	v.SetDefault("service.min_after_photos", 4)
	v.SetDefault("service.item_timeout", 15*time.Second)

	v.SetDefault("earnings.platform_cut_bps", 2500)
	v.SetDefault("earnings.cadence_divisor", 4)

	v.SetDefault("payout.minimum_amount_cents", 50)
	v.SetDefault("payout.tolerance_cents", 1)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.backoff", 24*time.Hour)

	v.SetDefault("gateway.provider", "sandbox")
	v.SetDefault("gateway.api_key", "")
	v.SetDefault("gateway.base_url", "")
	v.SetDefault("gateway.timeout", 12*time.Second)

	v.SetDefault("notification.webhook_url", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}
