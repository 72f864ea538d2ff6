package handlers

import (
	"log/slog"
	"net/http"

	"github.com/diewo77/go-contracts/internal/httpx"
	"github.com/diewo77/go-contracts/internal/services"
)

type CompanyHandler struct {
	companies *services.CompanyService
	log       *slog.Logger
}

func NewCompanyHandler(companies *services.CompanyService, log *slog.Logger) *CompanyHandler {
	return &CompanyHandler{companies: companies, log: log}
}

// Get handles GET /company.
func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request) {
	cid, ok := companyID(w, r)
	if !ok {
		return
	}
	c, err := h.companies.Get(r.Context(), cid)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

// UpdatePricing handles PUT /company/pricing.
func (h *CompanyHandler) UpdatePricing(w http.ResponseWriter, r *http.Request) {
	cid, ok := companyID(w, r)
	if !ok {
		return
	}
	var req services.PricingSettings
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	c, err := h.companies.UpdatePricing(r.Context(), cid, req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

type numberingRequest struct {
	NextDocumentNumber int64 `json:"next_document_number"`
}

// UpdateNumbering handles PUT /company/numbering.
func (h *CompanyHandler) UpdateNumbering(w http.ResponseWriter, r *http.Request) {
	cid, ok := companyID(w, r)
	if !ok {
		return
	}
	var req numberingRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	next, err := h.companies.SetNextDocumentNumber(r.Context(), cid, req.NextDocumentNumber)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, numberingRequest{NextDocumentNumber: next})
}
