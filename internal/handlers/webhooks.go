package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/diewo77/go-contracts/internal/httpx"
	"github.com/diewo77/go-contracts/internal/services"
	"github.com/diewo77/go-contracts/internal/signing/provider"
)

const maxWebhookBytes = 1 << 20

type WebhookHandler struct {
	signing *services.SigningService
	log     *slog.Logger
}

func NewWebhookHandler(signing *services.SigningService, log *slog.Logger) *WebhookHandler {
	return &WebhookHandler{signing: signing, log: log}
}

// Signing handles POST /webhooks/signing/{provider}. Providers retry on
// anything but 2xx, so every delivery is acknowledged; the outcome is only
// reported in the body.
func (h *WebhookHandler) Signing(w http.ResponseWriter, r *http.Request) {
	kind, err := provider.ParseKind(r.PathValue("provider"))
	if err != nil {
		h.log.Warn("webhook for unknown provider", "provider", r.PathValue("provider"))
		httpx.JSON(w, http.StatusOK, map[string]string{"outcome": "unknown_provider"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		h.log.Warn("reading webhook body failed", "provider", kind, "error", err)
		httpx.JSON(w, http.StatusOK, map[string]string{"outcome": "unreadable"})
		return
	}
	outcome := h.signing.HandleWebhook(r.Context(), kind, r.Header, body)
	httpx.JSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
}
