package handlers

import "net/http"

// Middleware wraps a handler, e.g. with tenant checks.
type Middleware func(http.Handler) http.Handler

func (h *DocumentHandler) Register(mux *http.ServeMux, protect Middleware) {
	mux.Handle("POST /projects/{id}/documents", protect(http.HandlerFunc(h.Generate)))
	mux.Handle("GET /documents/{id}", protect(http.HandlerFunc(h.Get)))
	mux.Handle("POST /documents/{id}/send", protect(http.HandlerFunc(h.Send)))
	mux.Handle("POST /documents/{id}/refresh", protect(http.HandlerFunc(h.Refresh)))
	mux.Handle("POST /documents/{id}/retry-signer", protect(http.HandlerFunc(h.RetrySigner)))
}

func (h *CompanyHandler) Register(mux *http.ServeMux, protect Middleware) {
	mux.Handle("GET /company", protect(http.HandlerFunc(h.Get)))
	mux.Handle("PUT /company/pricing", protect(http.HandlerFunc(h.UpdatePricing)))
	mux.Handle("PUT /company/numbering", protect(http.HandlerFunc(h.UpdateNumbering)))
}

func (h *CostItemHandler) Register(mux *http.ServeMux, protect Middleware) {
	mux.Handle("PATCH /cost-items/{id}", protect(http.HandlerFunc(h.Update)))
	mux.Handle("DELETE /cost-items/{id}", protect(http.HandlerFunc(h.Delete)))
}

// Register mounts the webhook endpoint. Providers carry no session, so it
// is never wrapped.
func (h *WebhookHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/signing/{provider}", h.Signing)
}
