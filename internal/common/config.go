// Package common provides shared utilities for Folio
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Folio
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Clients     ClientsConfig `toml:"clients"`
	CostBasis   CostBasisConfig `toml:"costbasis"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Binance BinanceConfig `toml:"binance"`
	Pluggy  PluggyConfig  `toml:"pluggy"`
	Rates   RatesConfig   `toml:"rates"`
}

// BinanceConfig holds exchange API configuration
type BinanceConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *BinanceConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// PluggyConfig holds open-banking aggregator configuration
type PluggyConfig struct {
	BaseURL      string   `toml:"base_url"`
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	ItemIDs      []string `toml:"item_ids"` // connected bank items to aggregate
	Timeout      string   `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *PluggyConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// RatesConfig holds FX rate service configuration
type RatesConfig struct {
	BaseURL  string `toml:"base_url"`
	CacheTTL string `toml:"cache_ttl"`
	Timeout  string `toml:"timeout"`
}

// GetCacheTTL parses and returns the rate cache TTL
func (c *RatesConfig) GetCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// GetTimeout parses and returns the timeout duration
func (c *RatesConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// CostBasisConfig holds the cost-basis computation options.
// QuoteAssets is the reference-quote list used to enumerate candidate
// trading pairs for an asset; LookbackDays bounds conversion history.
type CostBasisConfig struct {
	ReferenceCurrency string   `toml:"reference_currency"`
	QuoteAssets       []string `toml:"quote_assets"`
	LookbackDays      int      `toml:"lookback_days"`
	Concurrency       int      `toml:"concurrency"`
}

// GetLookback returns the transaction history lookback window.
func (c *CostBasisConfig) GetLookback() time.Duration {
	days := c.LookbackDays
	if days <= 0 {
		days = 90
	}
	return time.Duration(days) * 24 * time.Hour
}

// GetConcurrency returns the bounded per-asset concurrency for batch runs.
func (c *CostBasisConfig) GetConcurrency() int {
	if c.Concurrency <= 0 {
		return 4
	}
	return c.Concurrency
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Clients: ClientsConfig{
			Binance: BinanceConfig{
				BaseURL:   "https://api.binance.com",
				RateLimit: 10,
				Timeout:   "30s",
			},
			Pluggy: PluggyConfig{
				BaseURL: "https://api.pluggy.ai",
				Timeout: "30s",
			},
			Rates: RatesConfig{
				BaseURL:  "https://api.exchangerate-api.com/v4",
				CacheTTL: "5m",
				Timeout:  "10s",
			},
		},
		CostBasis: CostBasisConfig{
			ReferenceCurrency: "USD",
			QuoteAssets:       []string{"USDT", "USDC", "BUSD", "ETH", "BNB"},
			LookbackDays:      90,
			Concurrency:       4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if config.CostBasis.ReferenceCurrency == "" {
		config.CostBasis.ReferenceCurrency = "USD"
	}
	config.CostBasis.ReferenceCurrency = strings.ToUpper(config.CostBasis.ReferenceCurrency)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FOLIO_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("FOLIO_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("FOLIO_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("FOLIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if v := os.Getenv("FOLIO_BINANCE_API_KEY"); v != "" {
		config.Clients.Binance.APIKey = v
	}
	if v := os.Getenv("FOLIO_BINANCE_API_SECRET"); v != "" {
		config.Clients.Binance.APISecret = v
	}
	if v := os.Getenv("FOLIO_PLUGGY_CLIENT_ID"); v != "" {
		config.Clients.Pluggy.ClientID = v
	}
	if v := os.Getenv("FOLIO_PLUGGY_CLIENT_SECRET"); v != "" {
		config.Clients.Pluggy.ClientSecret = v
	}
	if v := os.Getenv("FOLIO_REFERENCE_CURRENCY"); v != "" {
		config.CostBasis.ReferenceCurrency = strings.ToUpper(v)
	}
}
