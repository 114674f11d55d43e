// Package config loads runtime configuration from an optional env/yaml file
// and SUPPLY_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/warp/supply-engine/fulfillment"
	"github.com/warp/supply-engine/ledger"
)

// EnvPrefix is prepended to every key when read from the environment,
// e.g. HTTP_PORT is SUPPLY_HTTP_PORT.
const EnvPrefix = "SUPPLY"

// Config holds all runtime configuration. Keys in a config file are the
// mapstructure names below, without the prefix.
type Config struct {
	// Server
	Port int    `mapstructure:"HTTP_PORT"`
	Env  string `mapstructure:"APP_ENV"` // development | production

	// Logging
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Storage
	DBPath   string `mapstructure:"DB_PATH"`
	RedisURL string `mapstructure:"REDIS_URL"` // empty: in-process lock

	// Seeding
	StartDate         string  `mapstructure:"START_DATE"`
	StartingCash      string  `mapstructure:"STARTING_CASH"`
	InventorySeed     int64   `mapstructure:"INVENTORY_SEED"`
	InventoryCoverage float64 `mapstructure:"INVENTORY_COVERAGE"`
	CatalogFile       string  `mapstructure:"CATALOG_FILE"` // .csv or .xlsx; empty: built-in sample
	QuotesFile        string  `mapstructure:"QUOTES_FILE"`  // .csv

	// Pricing
	DefaultUnitPrice string `mapstructure:"DEFAULT_UNIT_PRICE"`
	BulkThreshold    int64  `mapstructure:"BULK_THRESHOLD"`
	BulkDiscountRate string `mapstructure:"BULK_DISCOUNT_RATE"`
	QuoteSearchLimit int    `mapstructure:"QUOTE_SEARCH_LIMIT"`

	// Orders
	RestockOnShortage bool `mapstructure:"RESTOCK_ON_SHORTAGE"`

	// Replenishment
	ReplenishEnabled  bool          `mapstructure:"REPLENISH_ENABLED"`
	ReplenishInterval time.Duration `mapstructure:"REPLENISH_INTERVAL"`

	startDate        ledger.Date
	startingCash     decimal.Decimal
	defaultUnitPrice decimal.Decimal
	bulkDiscountRate decimal.Decimal
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_PATH", "supply.db")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("START_DATE", "2025-01-01")
	v.SetDefault("STARTING_CASH", "50000")
	v.SetDefault("INVENTORY_SEED", 137)
	v.SetDefault("INVENTORY_COVERAGE", 0.4)
	v.SetDefault("CATALOG_FILE", "")
	v.SetDefault("QUOTES_FILE", "")
	v.SetDefault("DEFAULT_UNIT_PRICE", "1.00")
	v.SetDefault("BULK_THRESHOLD", 100)
	v.SetDefault("BULK_DISCOUNT_RATE", "0.10")
	v.SetDefault("QUOTE_SEARCH_LIMIT", 5)
	v.SetDefault("RESTOCK_ON_SHORTAGE", false)
	v.SetDefault("REPLENISH_ENABLED", false)
	v.SetDefault("REPLENISH_INTERVAL", time.Hour)
}

// Load reads configuration. With an empty path an optional ./.env file is
// used; a missing file is not an error. An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(".env")
		v.SetConfigType("env")
		v.AddConfigPath(".")
		_ = v.ReadInConfig()
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var err error
	if c.startDate, err = ledger.ParseDate(c.StartDate); err != nil {
		return fmt.Errorf("START_DATE: %w", err)
	}
	if c.startingCash, err = parseMoney("STARTING_CASH", c.StartingCash); err != nil {
		return err
	}
	if c.defaultUnitPrice, err = parseMoney("DEFAULT_UNIT_PRICE", c.DefaultUnitPrice); err != nil {
		return err
	}
	if c.bulkDiscountRate, err = parseMoney("BULK_DISCOUNT_RATE", c.BulkDiscountRate); err != nil {
		return err
	}
	if c.bulkDiscountRate.GreaterThan(decimal.NewFromInt(1)) {
		return &ledger.ValidationError{Field: "BULK_DISCOUNT_RATE", Message: "must be between 0 and 1"}
	}
	if c.BulkThreshold <= 0 {
		return &ledger.ValidationError{Field: "BULK_THRESHOLD", Message: "must be positive"}
	}
	if c.QuoteSearchLimit <= 0 {
		return &ledger.ValidationError{Field: "QUOTE_SEARCH_LIMIT", Message: "must be positive"}
	}
	if c.InventoryCoverage < 0 || c.InventoryCoverage > 1 {
		return &ledger.ValidationError{Field: "INVENTORY_COVERAGE", Message: "must be between 0 and 1"}
	}
	if c.ReplenishEnabled && c.ReplenishInterval <= 0 {
		return &ledger.ValidationError{Field: "REPLENISH_INTERVAL", Message: "must be positive"}
	}
	return nil
}

func parseMoney(key, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return decimal.Zero, &ledger.ValidationError{Field: key, Message: "must be a non-negative decimal"}
	}
	return d, nil
}

// =============================================================================
// TYPED ACCESSORS
// =============================================================================

func (c *Config) LedgerStart() ledger.Date     { return c.startDate }
func (c *Config) OpeningCash() decimal.Decimal { return c.startingCash }

func (c *Config) Pricing() fulfillment.PricingPolicy {
	return fulfillment.PricingPolicy{
		DefaultUnitPrice: c.defaultUnitPrice,
		BulkThreshold:    c.BulkThreshold,
		BulkDiscountRate: c.bulkDiscountRate,
		SearchLimit:      c.QuoteSearchLimit,
	}
}

func (c *Config) Orders() fulfillment.OrderPolicy {
	return fulfillment.OrderPolicy{RestockOnShortage: c.RestockOnShortage}
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
