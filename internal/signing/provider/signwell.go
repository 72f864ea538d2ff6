package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SignWell speaks the SignWell documents API with an API key.
type SignWell struct {
	client   *client
	topology Topology
}

func (s *SignWell) Kind() Kind         { return KindSignWell }
func (s *SignWell) Topology() Topology { return s.topology }

type signWellRecipient struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	SigningOrder int    `json:"signing_order,omitempty"`
}

type signWellDocument struct {
	Name              string              `json:"name"`
	Subject           string              `json:"subject,omitempty"`
	Message           string              `json:"message,omitempty"`
	Draft             bool                `json:"draft"`
	ApplySigningOrder bool                `json:"apply_signing_order"`
	Recipients        []signWellRecipient `json:"recipients"`
	Metadata          map[string]string   `json:"metadata,omitempty"`
}

func toSignWellRecipient(s Signer) signWellRecipient {
	return signWellRecipient{
		ID:           strconv.Itoa(s.RoutingOrder),
		Name:         s.Name,
		Email:        s.Email,
		SigningOrder: s.RoutingOrder,
	}
}

func (s *SignWell) CreateSigningRequest(ctx context.Context, req SigningRequest) (string, error) {
	doc := signWellDocument{
		Name:              req.Title,
		Subject:           req.Title,
		Message:           req.Message,
		ApplySigningOrder: len(req.Signers) > 1,
		Metadata:          map[string]string{"document_id": strconv.FormatUint(uint64(req.DocumentID), 10)},
	}
	for k, v := range req.Metadata {
		doc.Metadata[k] = v
	}
	for _, signer := range req.Signers {
		doc.Recipients = append(doc.Recipients, toSignWellRecipient(signer))
	}

	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := s.client.do(ctx, "create", http.MethodPost, "/api/v1/documents", doc, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &Error{Provider: KindSignWell, Op: "create", Permanent: true, Err: fmt.Errorf("response without id")}
	}
	return out.ID, nil
}

func (s *SignWell) AddSigner(ctx context.Context, documentID string, signer Signer) error {
	body := map[string]any{"recipients": []signWellRecipient{toSignWellRecipient(signer)}}
	path := "/api/v1/documents/" + url.PathEscape(documentID) + "/recipients"
	return s.client.do(ctx, "add_signer", http.MethodPost, path, body, nil)
}

func (s *SignWell) GetStatus(ctx context.Context, documentID string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := s.client.do(ctx, "get_status", http.MethodGet, "/api/v1/documents/"+url.PathEscape(documentID), nil, &out); err != nil {
		return "", err
	}
	return strings.ToLower(out.Status), nil
}

type signWellWebhook struct {
	Event struct {
		Type string `json:"type"`
		Time int64  `json:"time"`
		Hash string `json:"hash"`
	} `json:"event"`
	Data struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
		Recipient *struct {
			Email string `json:"email"`
		} `json:"recipient,omitempty"`
	} `json:"data"`
}

func parseSignWell(body []byte) (Event, error) {
	var p signWellWebhook
	if err := json.Unmarshal(body, &p); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p.Event.Type == "" {
		return Event{}, fmt.Errorf("%w: missing event.type", ErrMalformedPayload)
	}
	ev := Event{
		Provider:           KindSignWell,
		Name:               p.Event.Type,
		ProviderDocumentID: p.Data.Object.ID,
	}
	if p.Data.Recipient != nil {
		ev.SignerEmail = p.Data.Recipient.Email
	}
	if p.Event.Time > 0 {
		ev.OccurredAt = time.Unix(p.Event.Time, 0).UTC()
	}
	return ev, nil
}

// verifySignWell checks event.hash = hex(HMAC-SHA256(secret, "type@time")).
func verifySignWell(secret string, _ http.Header, body []byte) error {
	var p signWellWebhook
	if err := json.Unmarshal(body, &p); err != nil || p.Event.Hash == "" {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(p.Event.Type + "@" + strconv.FormatInt(p.Event.Time, 10)))
	want := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(strings.ToLower(p.Event.Hash)), []byte(want)) {
		return ErrInvalidSignature
	}
	return nil
}
