package handlers

import (
	"log/slog"
	"net/http"

	"github.com/diewo77/go-contracts/internal/httpx"
	"github.com/diewo77/go-contracts/internal/services"
)

type CostItemHandler struct {
	items *services.CostItemService
	log   *slog.Logger
}

func NewCostItemHandler(items *services.CostItemService, log *slog.Logger) *CostItemHandler {
	return &CostItemHandler{items: items, log: log}
}

// Update handles PATCH /cost-items/{id}.
func (h *CostItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	cid, ok := companyID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch services.CostItemPatch
	if err := httpx.Decode(r, &patch); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	item, err := h.items.Update(r.Context(), cid, id, patch)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

// Delete handles DELETE /cost-items/{id}.
func (h *CostItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	cid, ok := companyID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.items.Delete(r.Context(), cid, id); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
