package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	if config.Environment != "development" {
		t.Errorf("environment = %q, want development", config.Environment)
	}
	if config.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", config.Server.Port)
	}
	if config.CostBasis.ReferenceCurrency != "USD" {
		t.Errorf("reference currency = %q, want USD", config.CostBasis.ReferenceCurrency)
	}
	if len(config.CostBasis.QuoteAssets) == 0 {
		t.Error("quote assets should not be empty")
	}
	if got := config.CostBasis.GetLookback(); got != 90*24*time.Hour {
		t.Errorf("lookback = %v, want 90 days", got)
	}
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "folio.toml")
	content := `
environment = "production"

[server]
host = "127.0.0.1"
port = 9090

[costbasis]
reference_currency = "brl"
lookback_days = 30

[clients.binance]
api_key = "file-key"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Environment != "production" {
		t.Errorf("environment = %q, want production", config.Environment)
	}
	if config.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", config.Server.Port)
	}
	// Reference currency is normalized to upper case.
	if config.CostBasis.ReferenceCurrency != "BRL" {
		t.Errorf("reference currency = %q, want BRL", config.CostBasis.ReferenceCurrency)
	}
	if config.CostBasis.LookbackDays != 30 {
		t.Errorf("lookback days = %d, want 30", config.CostBasis.LookbackDays)
	}
	if config.Clients.Binance.APIKey != "file-key" {
		t.Errorf("api key = %q, want file-key", config.Clients.Binance.APIKey)
	}
	// Defaults survive for keys the file does not set.
	if config.Clients.Binance.BaseURL != "https://api.binance.com" {
		t.Errorf("base url = %q", config.Clients.Binance.BaseURL)
	}
}

func TestLoadConfig_MissingFileSkipped(t *testing.T) {
	config, err := LoadConfig("/nonexistent/folio.toml")
	if err != nil {
		t.Fatalf("missing file should be skipped, got: %v", err)
	}
	if config.Server.Port != 8080 {
		t.Errorf("port = %d, want default 8080", config.Server.Port)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("FOLIO_ENV", "staging")
	t.Setenv("FOLIO_PORT", "7070")
	t.Setenv("FOLIO_BINANCE_API_KEY", "env-key")
	t.Setenv("FOLIO_REFERENCE_CURRENCY", "eur")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Environment != "staging" {
		t.Errorf("environment = %q, want staging", config.Environment)
	}
	if config.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", config.Server.Port)
	}
	if config.Clients.Binance.APIKey != "env-key" {
		t.Errorf("api key = %q, want env-key", config.Clients.Binance.APIKey)
	}
	if config.CostBasis.ReferenceCurrency != "EUR" {
		t.Errorf("reference currency = %q, want EUR", config.CostBasis.ReferenceCurrency)
	}
}

func TestLoadConfig_InvalidPortIgnored(t *testing.T) {
	t.Setenv("FOLIO_PORT", "not-a-number")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.Server.Port != 8080 {
		t.Errorf("port = %d, want default 8080", config.Server.Port)
	}
}

func TestDurationGetters(t *testing.T) {
	binance := BinanceConfig{Timeout: "45s"}
	if got := binance.GetTimeout(); got != 45*time.Second {
		t.Errorf("binance timeout = %v, want 45s", got)
	}

	broken := BinanceConfig{Timeout: "garbage"}
	if got := broken.GetTimeout(); got != 30*time.Second {
		t.Errorf("fallback timeout = %v, want 30s", got)
	}

	rates := RatesConfig{CacheTTL: "2m"}
	if got := rates.GetCacheTTL(); got != 2*time.Minute {
		t.Errorf("cache ttl = %v, want 2m", got)
	}

	cb := CostBasisConfig{}
	if got := cb.GetConcurrency(); got != 4 {
		t.Errorf("concurrency = %d, want default 4", got)
	}
}
