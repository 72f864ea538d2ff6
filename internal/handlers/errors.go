// Package handlers exposes the engine's services as JSON endpoints.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/diewo77/go-contracts/internal/httpx"
	"github.com/diewo77/go-contracts/internal/numbering"
	"github.com/diewo77/go-contracts/internal/services"
	"github.com/diewo77/go-contracts/internal/signing/provider"
	"github.com/diewo77/go-contracts/internal/tenant"
	"github.com/diewo77/go-contracts/internal/validation"
)

// writeError maps service errors to HTTP responses.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var verr *validation.Error
	var perr *provider.Error
	switch {
	case errors.As(err, &verr):
		httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", verr.Violations)
	case errors.Is(err, services.ErrNotFound):
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	case errors.Is(err, services.ErrConflict):
		httpx.JSONError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, numbering.ErrAllocationExhausted):
		w.Header().Set("Retry-After", "1")
		httpx.JSONError(w, http.StatusServiceUnavailable, "retryable", "document number allocation contended, retry")
	case errors.As(err, &perr):
		log.Warn("provider call failed", "path", r.URL.Path, "error", err)
		httpx.JSONError(w, http.StatusBadGateway, "provider_error", map[string]any{
			"provider":    perr.Provider,
			"status_code": perr.StatusCode,
			"retryable":   !perr.Permanent,
		})
	default:
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

// companyID reads the tenant resolved by tenant.Middleware. Routes are
// wrapped in RequireCompany, so a missing id is a wiring bug.
func companyID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, ok := tenant.CompanyIDFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
	}
	return id, ok
}

func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return 0, false
	}
	return id, true
}
