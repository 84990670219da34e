package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every setting the ledger reads from the environment.
type Config struct {
	Port        string   `env:"PORT" envDefault:"8080"`
	Env         string   `env:"ENV" envDefault:"development"`
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	MongoURI    string `env:"MONGO_URI"`
	DBName      string `env:"DB_NAME" envDefault:"barrim_ledger"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"mongo"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret string `env:"JWT_SECRET,required"`

	DefaultCurrency   string        `env:"DEFAULT_CURRENCY" envDefault:"USD"`
	PayableHoldDays   int           `env:"PAYABLE_HOLD_DAYS" envDefault:"14"`
	PromotionSchedule string        `env:"PROMOTION_SCHEDULE" envDefault:"@every 1h"`
	PayoutLockTTL     time.Duration `env:"PAYOUT_LOCK_TTL" envDefault:"30s"`
	RateLimitRPS      float64       `env:"RATE_LIMIT_RPS" envDefault:"20"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM"`

	WhishBaseURL    string `env:"WHISH_BASE_URL"`
	WhishChannel    string `env:"WHISH_CHANNEL"`
	WhishSecret     string `env:"WHISH_SECRET"`
	WhishWebsiteURL string `env:"WHISH_WEBSITE_URL"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// DotEnvLoaded reports whether Load found a .env file.
	DotEnvLoaded bool
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	dotEnvErr := godotenv.Load()
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	cfg.DotEnvLoaded = dotEnvErr == nil
	return cfg, nil
}

// Parse builds the configuration from the process environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.StoreDriver != "mongo" && cfg.StoreDriver != "memory" {
		return nil, fmt.Errorf("STORE_DRIVER must be mongo or memory, got %q", cfg.StoreDriver)
	}
	if cfg.StoreDriver == "mongo" && cfg.MongoURI == "" {
		return nil, fmt.Errorf("MONGO_URI is required when STORE_DRIVER=mongo")
	}
	if cfg.PayableHoldDays < 0 {
		return nil, fmt.Errorf("PAYABLE_HOLD_DAYS must not be negative")
	}
	return &cfg, nil
}

func (c *Config) HoldPeriod() time.Duration {
	return time.Duration(c.PayableHoldDays) * 24 * time.Hour
}

func (c *Config) Development() bool {
	return c.Env == "development" || c.Env == "dev"
}
