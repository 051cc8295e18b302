package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rpaiva/folio/internal/common"
	"github.com/rpaiva/folio/internal/models"
)

// handleHealth returns server liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleVersion returns build version info.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"full":    common.GetFullVersion(),
	})
}

// handlePortfolioReport computes the full exchange portfolio report:
// per-asset cost basis, profit/loss, rankings, and aggregate totals.
func (s *Server) handlePortfolioReport(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	report, err := s.portfolio.ComputeExchangeReport(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, models.ErrAuthenticationFailed):
			WriteError(w, http.StatusBadGateway, "Authentication with data source failed")
		case errors.Is(err, models.ErrEmptySnapshot):
			WriteError(w, http.StatusNotFound, "No holdings found")
		default:
			s.logger.Error().Err(err).Msg("Portfolio report failed")
			WriteError(w, http.StatusInternalServerError, "Failed to compute portfolio report")
		}
		return
	}

	WriteJSON(w, http.StatusOK, report)
}

// handleBankReport computes the valuation report over investments held
// at the connected bank items.
func (s *Server) handleBankReport(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	report, err := s.portfolio.ComputeBankReport(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, models.ErrAuthenticationFailed):
			WriteError(w, http.StatusBadGateway, "Authentication with data source failed")
		case errors.Is(err, models.ErrEmptySnapshot):
			WriteError(w, http.StatusNotFound, "No bank investments found")
		default:
			s.logger.Error().Err(err).Msg("Bank report failed")
			WriteError(w, http.StatusInternalServerError, "Failed to compute bank report")
		}
		return
	}

	WriteJSON(w, http.StatusOK, report)
}

// handleAssetCostBasis computes the cost basis for one asset.
// Route: /api/portfolio/asset/{symbol}/costbasis?quantity=1.5
func (s *Server) handleAssetCostBasis(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	symbol := strings.ToUpper(PathParam(r, "/api/portfolio/asset/", "/costbasis"))
	if symbol == "" {
		WriteError(w, http.StatusBadRequest, "Asset symbol is required")
		return
	}

	quantity := decimal.Zero
	if q := r.URL.Query().Get("quantity"); q != "" {
		parsed, err := decimal.NewFromString(q)
		if err != nil || parsed.IsNegative() {
			WriteError(w, http.StatusBadRequest, "Invalid quantity")
			return
		}
		quantity = parsed
	}

	result, err := s.costBasis.ComputeCostBasis(r.Context(), symbol, quantity)
	if err != nil {
		if errors.Is(err, models.ErrAuthenticationFailed) {
			WriteError(w, http.StatusBadGateway, "Authentication with data source failed")
			return
		}
		s.logger.Error().Err(err).Str("asset", symbol).Msg("Cost basis computation failed")
		WriteError(w, http.StatusInternalServerError, "Failed to compute cost basis")
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
