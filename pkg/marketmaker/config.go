package marketmaker

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the market maker service.
type Config struct {
	// Engine connection settings
	ServerAddr     string
	RequestTimeout time.Duration

	// Market settings
	BookID         string // e.g. "ETH-USD"
	ExternalSymbol string // e.g. "ETHUSDT"
	PriceSourceURL string // e.g. "https://api.binance.com"

	// Market making parameters
	NumLevels         int
	BaseSpreadPercent float64
	PriceStepPercent  float64
	OrderSize         int64
	UpdateInterval    time.Duration

	// HTTP client settings
	HTTPTimeout time.Duration
	MaxRetries  int
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("BOOKD_SERVER_ADDR", "http://localhost:8080")
	v.SetDefault("REQUEST_TIMEOUT_SECONDS", 5)
	v.SetDefault("BOOK_ID", "ETH-USD")
	v.SetDefault("EXTERNAL_SYMBOL", "ETHUSDT")
	v.SetDefault("PRICE_SOURCE_URL", "https://api.binance.com")
	v.SetDefault("NUM_LEVELS", 3)
	v.SetDefault("BASE_SPREAD_PERCENT", 0.1)
	v.SetDefault("PRICE_STEP_PERCENT", 0.05)
	v.SetDefault("ORDER_SIZE", 1)
	v.SetDefault("UPDATE_INTERVAL_SECONDS", 10)
	v.SetDefault("HTTP_TIMEOUT_SECONDS", 5)
	v.SetDefault("MAX_RETRIES", 3)

	v.AutomaticEnv()

	cfg := &Config{
		ServerAddr:        v.GetString("BOOKD_SERVER_ADDR"),
		RequestTimeout:    time.Duration(v.GetInt("REQUEST_TIMEOUT_SECONDS")) * time.Second,
		BookID:            v.GetString("BOOK_ID"),
		ExternalSymbol:    v.GetString("EXTERNAL_SYMBOL"),
		PriceSourceURL:    v.GetString("PRICE_SOURCE_URL"),
		NumLevels:         v.GetInt("NUM_LEVELS"),
		BaseSpreadPercent: v.GetFloat64("BASE_SPREAD_PERCENT"),
		PriceStepPercent:  v.GetFloat64("PRICE_STEP_PERCENT"),
		OrderSize:         v.GetInt64("ORDER_SIZE"),
		UpdateInterval:    time.Duration(v.GetInt("UPDATE_INTERVAL_SECONDS")) * time.Second,
		HTTPTimeout:       time.Duration(v.GetInt("HTTP_TIMEOUT_SECONDS")) * time.Second,
		MaxRetries:        v.GetInt("MAX_RETRIES"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.ServerAddr == "" {
		return fmt.Errorf("BOOKD_SERVER_ADDR must not be empty")
	}
	if cfg.BookID == "" {
		return fmt.Errorf("BOOK_ID must not be empty")
	}
	if cfg.ExternalSymbol == "" {
		return fmt.Errorf("EXTERNAL_SYMBOL must not be empty")
	}
	if cfg.PriceSourceURL == "" {
		return fmt.Errorf("PRICE_SOURCE_URL must not be empty")
	}
	if cfg.NumLevels <= 0 {
		return fmt.Errorf("NUM_LEVELS must be positive")
	}
	if cfg.BaseSpreadPercent <= 0 {
		return fmt.Errorf("BASE_SPREAD_PERCENT must be positive")
	}
	if cfg.PriceStepPercent <= 0 {
		return fmt.Errorf("PRICE_STEP_PERCENT must be positive")
	}
	if cfg.OrderSize <= 0 {
		return fmt.Errorf("ORDER_SIZE must be positive")
	}
	if cfg.UpdateInterval <= 0 {
		return fmt.Errorf("UPDATE_INTERVAL_SECONDS must be positive")
	}
	return nil
}
