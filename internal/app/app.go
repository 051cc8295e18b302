// Package app wires configuration, clients, and services together.
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rpaiva/folio/internal/clients/binance"
	"github.com/rpaiva/folio/internal/clients/fxrates"
	"github.com/rpaiva/folio/internal/clients/pluggy"
	"github.com/rpaiva/folio/internal/common"
	"github.com/rpaiva/folio/internal/interfaces"
	"github.com/rpaiva/folio/internal/services/costbasis"
	"github.com/rpaiva/folio/internal/services/portfolio"
)

// App holds all initialized services and clients. It is the shared core
// used by cmd/folio-server.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	ExchangeClient   interfaces.ExchangeClient
	BankingClient    interfaces.BankingClient
	RatesClient      interfaces.RatesClient
	CostBasisService interfaces.CostBasisService
	PortfolioService interfaces.PortfolioService
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, logging, clients, and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	if configPath == "" {
		configPath = os.Getenv("FOLIO_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "folio.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/folio.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	if config.Clients.Binance.APIKey == "" {
		logger.Warn().Msg("Binance API key not configured - exchange data will be unavailable")
	}
	if config.Clients.Pluggy.ClientID == "" {
		logger.Warn().Msg("Pluggy credentials not configured - banking data will be unavailable")
	}

	ratesClient := fxrates.NewClient(
		fxrates.WithBaseURL(config.Clients.Rates.BaseURL),
		fxrates.WithCacheTTL(config.Clients.Rates.GetCacheTTL()),
		fxrates.WithTimeout(config.Clients.Rates.GetTimeout()),
		fxrates.WithLogger(logger),
	)

	exchangeClient := binance.NewClient(
		config.Clients.Binance.APIKey,
		config.Clients.Binance.APISecret,
		binance.WithBaseURL(config.Clients.Binance.BaseURL),
		binance.WithRateLimit(config.Clients.Binance.RateLimit),
		binance.WithTimeout(config.Clients.Binance.GetTimeout()),
		binance.WithLogger(logger),
	)

	bankingClient := pluggy.NewClient(
		config.Clients.Pluggy.ClientID,
		config.Clients.Pluggy.ClientSecret,
		pluggy.WithBaseURL(config.Clients.Pluggy.BaseURL),
		pluggy.WithTimeout(config.Clients.Pluggy.GetTimeout()),
		pluggy.WithLogger(logger),
	)

	costBasisService := costbasis.NewService(exchangeClient, ratesClient, config.CostBasis, logger)
	portfolioService := portfolio.NewService(exchangeClient, bankingClient, costBasisService, config.CostBasis, config.Clients.Pluggy.ItemIDs, logger)

	logger.Info().
		Str("environment", config.Environment).
		Str("reference_currency", config.CostBasis.ReferenceCurrency).
		Msg("App initialized")

	return &App{
		Config:           config,
		Logger:           logger,
		ExchangeClient:   exchangeClient,
		BankingClient:    bankingClient,
		RatesClient:      ratesClient,
		CostBasisService: costBasisService,
		PortfolioService: portfolioService,
	}, nil
}
