// Package provider talks to e-signature providers.
//
// Each provider kind has its own request dialect and webhook payload shape.
// Both are translated to the shared types here so the rest of the engine
// never sees provider-specific JSON.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/diewo77/go-contracts/internal/metrics"
)

// Kind identifies a signing provider.
type Kind string

const (
	KindDocuSign Kind = "docusign"
	KindSignWell Kind = "signwell"
)

// Topology describes how the company signer joins a two-party request.
type Topology string

const (
	// TopologyGated declares both signers up front; the company signer is
	// held back by routing order until the customer signs.
	TopologyGated Topology = "gated"
	// TopologyAddOnSign sends to the customer only; the company signer is
	// added once the customer has signed.
	TopologyAddOnSign Topology = "add_on_sign"
)

// SignerRole tells the customer and the company representative apart.
type SignerRole string

const (
	RoleCustomer SignerRole = "customer"
	RoleCompany  SignerRole = "company"
)

type Signer struct {
	Role         SignerRole
	Name         string
	Email        string
	RoutingOrder int
}

// SigningRequest is what the engine asks a provider to send.
type SigningRequest struct {
	DocumentID uint
	Title      string
	Message    string
	Signers    []Signer
	Metadata   map[string]string
}

// Event is a provider webhook reduced to what the engine needs.
type Event struct {
	Provider           Kind
	Name               string
	ProviderDocumentID string
	SignerEmail        string
	OccurredAt         time.Time
}

// Provider is a signing provider client.
type Provider interface {
	Kind() Kind
	Topology() Topology
	CreateSigningRequest(ctx context.Context, req SigningRequest) (string, error)
	AddSigner(ctx context.Context, providerDocumentID string, s Signer) error
	// GetStatus returns the provider's own status name for a document.
	GetStatus(ctx context.Context, providerDocumentID string) (string, error)
}

// Config configures a provider client.
type Config struct {
	Kind     Kind
	BaseURL  string
	TokenURL string
	// ClientID and ClientSecret are OAuth client credentials. For API key
	// providers ClientSecret holds the key.
	ClientID     string
	ClientSecret string
	AccountID    string
	Topology     Topology
	Timeout      time.Duration
	MaxRetries   int
	Backoff      time.Duration
}

// New returns the provider client for cfg.Kind.
func New(cfg Config, tokens TokenCache, logger *slog.Logger, m *metrics.Metrics) (Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Kind {
	case KindDocuSign:
		if cfg.Topology == "" {
			cfg.Topology = TopologyGated
		}
		return &DocuSign{client: newClient(cfg, authOAuth, tokens, logger, m), accountID: cfg.AccountID, topology: cfg.Topology}, nil
	case KindSignWell:
		if cfg.Topology == "" {
			cfg.Topology = TopologyAddOnSign
		}
		return &SignWell{client: newClient(cfg, authAPIKey, tokens, logger, m), topology: cfg.Topology}, nil
	default:
		return nil, fmt.Errorf("provider: unknown kind %q", cfg.Kind)
	}
}
