package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/diewo77/go-contracts/internal/httpx"
	"github.com/diewo77/go-contracts/internal/models"
	"github.com/diewo77/go-contracts/internal/services"
	"github.com/diewo77/go-contracts/internal/signing/provider"
)

type DocumentHandler struct {
	docs    *services.DocumentService
	signing *services.SigningService
	log     *slog.Logger
}

func NewDocumentHandler(docs *services.DocumentService, signing *services.SigningService, log *slog.Logger) *DocumentHandler {
	return &DocumentHandler{docs: docs, signing: signing, log: log}
}

type generateRequest struct {
	DocumentType models.DocumentType `json:"document_type"`
}

// Generate handles POST /projects/{id}/documents.
func (h *DocumentHandler) Generate(w http.ResponseWriter, r *http.Request) {
	cid, ok := companyID(w, r)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req generateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	view, err := h.docs.Generate(r.Context(), cid, projectID, req.DocumentType)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, view)
}

// Get handles GET /documents/{id}.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	cid, ok := companyID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	view, err := h.docs.Get(r.Context(), cid, id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

// Send handles POST /documents/{id}/send.
func (h *DocumentHandler) Send(w http.ResponseWriter, r *http.Request) {
	cid, ok := companyID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.signing.SendForSignature(r.Context(), cid, id)
	var perr *provider.Error
	if errors.As(err, &perr) {
		h.providerFailure(w, r, cid, id, perr)
		return
	}
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

// Refresh handles POST /documents/{id}/refresh.
func (h *DocumentHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cid, ok := companyID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.signing.RefreshStatus(r.Context(), cid, id)
	var perr *provider.Error
	if errors.As(err, &perr) {
		h.providerFailure(w, r, cid, id, perr)
		return
	}
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

// RetrySigner handles POST /documents/{id}/retry-signer.
func (h *DocumentHandler) RetrySigner(w http.ResponseWriter, r *http.Request) {
	cid, ok := companyID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	err := h.signing.RetryCompanySigner(r.Context(), cid, id)
	var perr *provider.Error
	if errors.As(err, &perr) {
		h.providerFailure(w, r, cid, id, perr)
		return
	}
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	view, err := h.docs.Get(r.Context(), cid, id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

// providerFailure answers 502 with the document's last known status, which
// the failed call did not change.
func (h *DocumentHandler) providerFailure(w http.ResponseWriter, r *http.Request, cid, id uint, perr *provider.Error) {
	h.log.Warn("provider call failed", "document_id", id, "error", perr)
	details := map[string]any{
		"provider":    perr.Provider,
		"status_code": perr.StatusCode,
		"retryable":   !perr.Permanent,
	}
	if view, err := h.docs.Get(r.Context(), cid, id); err == nil {
		details["document_status"] = view.Status
	}
	httpx.JSONError(w, http.StatusBadGateway, "provider_error", details)
}
