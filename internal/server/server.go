package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rpaiva/folio/internal/common"
	"github.com/rpaiva/folio/internal/interfaces"
)

// Server wraps the HTTP server and the services it exposes.
type Server struct {
	portfolio interfaces.PortfolioService
	costBasis interfaces.CostBasisService
	logger    *common.Logger
	server    *http.Server
}

// NewServer creates a new REST API server.
func NewServer(
	portfolio interfaces.PortfolioService,
	costBasis interfaces.CostBasisService,
	cfg common.ServerConfig,
	logger *common.Logger,
) *Server {
	s := &Server{
		portfolio: portfolio,
		costBasis: costBasis,
		logger:    logger,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      applyMiddleware(mux, logger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/portfolio/report", s.handlePortfolioReport)
	mux.HandleFunc("/api/portfolio/bank/report", s.handleBankReport)
	mux.HandleFunc("/api/portfolio/asset/", s.handleAssetCostBasis)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server (blocking).
func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.server.Addr).
		Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
