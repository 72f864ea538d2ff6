package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DocuSign speaks the envelope API. Webhooks arrive from DocuSign Connect.
type DocuSign struct {
	client    *client
	accountID string
	topology  Topology
}

func (d *DocuSign) Kind() Kind         { return KindDocuSign }
func (d *DocuSign) Topology() Topology { return d.topology }

type docuSignSigner struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	RecipientID  string `json:"recipientId"`
	RoutingOrder string `json:"routingOrder"`
	RoleName     string `json:"roleName,omitempty"`
}

type docuSignTextField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type docuSignEnvelope struct {
	EmailSubject string `json:"emailSubject"`
	EmailBlurb   string `json:"emailBlurb,omitempty"`
	Status       string `json:"status"`
	Recipients   struct {
		Signers []docuSignSigner `json:"signers"`
	} `json:"recipients"`
	CustomFields struct {
		TextCustomFields []docuSignTextField `json:"textCustomFields"`
	} `json:"customFields"`
}

func (d *DocuSign) envelopesPath() string {
	return "/v2.1/accounts/" + url.PathEscape(d.accountID) + "/envelopes"
}

func toDocuSignSigner(s Signer) docuSignSigner {
	order := strconv.Itoa(s.RoutingOrder)
	return docuSignSigner{
		Email:        s.Email,
		Name:         s.Name,
		RecipientID:  order,
		RoutingOrder: order,
		RoleName:     string(s.Role),
	}
}

func (d *DocuSign) CreateSigningRequest(ctx context.Context, req SigningRequest) (string, error) {
	var env docuSignEnvelope
	env.EmailSubject = req.Title
	env.EmailBlurb = req.Message
	env.Status = "sent"
	for _, s := range req.Signers {
		env.Recipients.Signers = append(env.Recipients.Signers, toDocuSignSigner(s))
	}
	env.CustomFields.TextCustomFields = append(env.CustomFields.TextCustomFields,
		docuSignTextField{Name: "document_id", Value: strconv.FormatUint(uint64(req.DocumentID), 10)})
	for k, v := range req.Metadata {
		env.CustomFields.TextCustomFields = append(env.CustomFields.TextCustomFields, docuSignTextField{Name: k, Value: v})
	}

	var out struct {
		EnvelopeID string `json:"envelopeId"`
		Status     string `json:"status"`
	}
	if err := d.client.do(ctx, "create", http.MethodPost, d.envelopesPath(), env, &out); err != nil {
		return "", err
	}
	if out.EnvelopeID == "" {
		return "", &Error{Provider: KindDocuSign, Op: "create", Permanent: true, Err: fmt.Errorf("response without envelopeId")}
	}
	return out.EnvelopeID, nil
}

func (d *DocuSign) AddSigner(ctx context.Context, envelopeID string, s Signer) error {
	body := map[string]any{"signers": []docuSignSigner{toDocuSignSigner(s)}}
	path := d.envelopesPath() + "/" + url.PathEscape(envelopeID) + "/recipients"
	return d.client.do(ctx, "add_signer", http.MethodPost, path, body, nil)
}

func (d *DocuSign) GetStatus(ctx context.Context, envelopeID string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	path := d.envelopesPath() + "/" + url.PathEscape(envelopeID)
	if err := d.client.do(ctx, "get_status", http.MethodGet, path, nil, &out); err != nil {
		return "", err
	}
	return strings.ToLower(out.Status), nil
}

// docuSignConnect is the Connect JSON (SIM) payload.
type docuSignConnect struct {
	Event             string `json:"event"`
	GeneratedDateTime string `json:"generatedDateTime"`
	Data              struct {
		EnvelopeID  string `json:"envelopeId"`
		RecipientID string `json:"recipientId"`
		Email       string `json:"email"`
	} `json:"data"`
}

func parseDocuSign(body []byte) (Event, error) {
	var p docuSignConnect
	if err := json.Unmarshal(body, &p); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p.Event == "" {
		return Event{}, fmt.Errorf("%w: missing event", ErrMalformedPayload)
	}
	ev := Event{
		Provider:           KindDocuSign,
		Name:               p.Event,
		ProviderDocumentID: p.Data.EnvelopeID,
		SignerEmail:        p.Data.Email,
	}
	if t, err := time.Parse(time.RFC3339Nano, p.GeneratedDateTime); err == nil {
		ev.OccurredAt = t
	}
	return ev, nil
}

// verifyDocuSign checks the Connect HMAC: base64(HMAC-SHA256(secret, body))
// in X-DocuSign-Signature-1.
func verifyDocuSign(secret string, header http.Header, body []byte) error {
	got := header.Get("X-DocuSign-Signature-1")
	if got == "" {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(got), []byte(want)) {
		return ErrInvalidSignature
	}
	return nil
}
