package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port                string   `mapstructure:"PORT"`
	Env                 string   `mapstructure:"ENV"`
	DatabaseURL         string   `mapstructure:"DATABASE_URL"`
	DBMaxConns          int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32    `mapstructure:"DB_MIN_CONNS"`
	DefaultClinic       string   `mapstructure:"DEFAULT_CLINIC"`
	CORSOrigins         []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS        float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst      int      `mapstructure:"RATE_LIMIT_BURST"`
	ExpiryDispensaryDays int     `mapstructure:"EXPIRY_DISPENSARY_DAYS"`
	ExpiryAdvisoryDays   int     `mapstructure:"EXPIRY_ADVISORY_DAYS"`
	LowStockThreshold    int     `mapstructure:"LOW_STOCK_THRESHOLD"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	// Two distinct expiry windows: the short one drives the dispensary list,
	// the long one drives the clinic-wide advisory banner.
	v.SetDefault("EXPIRY_DISPENSARY_DAYS", 7)
	v.SetDefault("EXPIRY_ADVISORY_DAYS", 30)
	v.SetDefault("LOW_STOCK_THRESHOLD", 10)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("DEFAULT_CLINIC")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("EXPIRY_DISPENSARY_DAYS")
	v.BindEnv("EXPIRY_ADVISORY_DAYS")
	v.BindEnv("LOW_STOCK_THRESHOLD")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: Requests without X-Clinic-ID fall back to DEFAULT_CLINIC.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.ExpiryDispensaryDays <= 0 {
		return fmt.Errorf("EXPIRY_DISPENSARY_DAYS must be positive, got %d", c.ExpiryDispensaryDays)
	}
	if c.ExpiryAdvisoryDays <= 0 {
		return fmt.Errorf("EXPIRY_ADVISORY_DAYS must be positive, got %d", c.ExpiryAdvisoryDays)
	}
	if c.LowStockThreshold < 0 {
		return fmt.Errorf("LOW_STOCK_THRESHOLD must not be negative, got %d", c.LowStockThreshold)
	}
	if c.IsProduction() && c.DefaultClinic != "" {
		return fmt.Errorf("DEFAULT_CLINIC must not be set in production; clinic id comes from the caller")
	}
	return nil
}
