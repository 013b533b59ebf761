// Package config loads the application settings from the environment with
// viper. Database and logger settings keep their own ConfigFromEnv helpers.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/revenue"
)

// Config holds all configuration for the application.
type Config struct {
	HTTPAddr            string        `mapstructure:"HTTP_ADDR"`
	JWTSecret           string        `mapstructure:"JWT_SECRET"`
	JWTIssuer           string        `mapstructure:"JWT_ISSUER"`
	JWTTTL              time.Duration `mapstructure:"JWT_TTL"`
	PlatformAdminUserID int64         `mapstructure:"PLATFORM_ADMIN_USER_ID"`
	RevenueUnitAmount   string        `mapstructure:"REVENUE_UNIT_AMOUNT"`
	RevenueAdminShare   string        `mapstructure:"REVENUE_ADMIN_SHARE"`
	EnsureSchema        bool          `mapstructure:"ENSURE_SCHEMA"`
}

var keys = []string{
	"HTTP_ADDR",
	"JWT_SECRET",
	"JWT_ISSUER",
	"JWT_TTL",
	"PLATFORM_ADMIN_USER_ID",
	"REVENUE_UNIT_AMOUNT",
	"REVENUE_ADMIN_SHARE",
	"ENSURE_SCHEMA",
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_ADDR", "0.0.0.0:8431")
	v.SetDefault("JWT_ISSUER", "pitchfork-integrity")
	v.SetDefault("JWT_TTL", "15m")
	v.SetDefault("PLATFORM_ADMIN_USER_ID", 0)
	v.SetDefault("REVENUE_UNIT_AMOUNT", "0.01")
	v.SetDefault("REVENUE_ADMIN_SHARE", "0.70")
	v.SetDefault("ENSURE_SCHEMA", true)
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.JWTTTL <= 0 {
		return nil, errors.New("JWT_TTL must be positive")
	}
	if _, err := cfg.Revenue(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Revenue builds the revenue split parameters.
func (c *Config) Revenue() (revenue.Config, error) {
	unit, err := decimal.NewFromString(c.RevenueUnitAmount)
	if err != nil {
		return revenue.Config{}, fmt.Errorf("REVENUE_UNIT_AMOUNT: %w", err)
	}
	share, err := decimal.NewFromString(c.RevenueAdminShare)
	if err != nil {
		return revenue.Config{}, fmt.Errorf("REVENUE_ADMIN_SHARE: %w", err)
	}
	return revenue.Config{AdminUserID: c.PlatformAdminUserID, UnitAmount: unit, AdminShare: share}, nil
}
