package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/diewo77/go-contracts/internal/metrics"
	"github.com/diewo77/go-contracts/internal/models"
	"github.com/diewo77/go-contracts/internal/signing"
	"github.com/diewo77/go-contracts/internal/signing/provider"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SendResult is returned once a document has been handed to the provider.
type SendResult struct {
	DocumentID         uint                  `json:"document_id"`
	ProviderDocumentID string                `json:"provider_document_id"`
	Status             models.DocumentStatus `json:"status"`
}

// StatusResult reports what a status update did to a document.
type StatusResult struct {
	DocumentID uint                    `json:"document_id"`
	Status     models.DocumentStatus   `json:"status"`
	Outcome    models.SignatureOutcome `json:"outcome"`
}

// SigningService moves documents through the signature lifecycle.
type SigningService struct {
	db            *gorm.DB
	provider      provider.Provider
	webhookSecret string
	logger        *slog.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

func NewSigningService(db *gorm.DB, p provider.Provider, webhookSecret string, logger *slog.Logger, m *metrics.Metrics) *SigningService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SigningService{
		db:            db,
		provider:      p,
		webhookSecret: webhookSecret,
		logger:        logger,
		metrics:       m,
		now:           time.Now,
	}
}

func (s *SigningService) load(ctx context.Context, companyID, documentID uint) (*models.Document, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).Where("id = ? AND company_id = ?", documentID, companyID).First(&doc).Error
	if err != nil {
		return nil, notFound(err, "document")
	}
	return &doc, nil
}

// SendForSignature creates the provider request for a draft document and
// moves it to sent. Signers are validated before the provider is called; a
// provider failure leaves the document untouched.
func (s *SigningService) SendForSignature(ctx context.Context, companyID, documentID uint) (*SendResult, error) {
	doc, err := s.load(ctx, companyID, documentID)
	if err != nil {
		return nil, err
	}
	if !signing.CanSend(doc.Status) {
		return nil, conflictf("document %d is %s", doc.ID, doc.Status)
	}

	signers, err := signing.PlanSigners(doc)
	if err != nil {
		return nil, err
	}
	initial, deferred := signing.Split(signers, s.provider.Topology())

	req := provider.SigningRequest{
		DocumentID: doc.ID,
		Title:      doc.DisplayNumber(),
		Message:    fmt.Sprintf("Please review and sign %s.", doc.DisplayNumber()),
		Signers:    initial,
		Metadata: map[string]string{
			"document_id": strconv.FormatUint(uint64(doc.ID), 10),
			"company_id":  strconv.FormatUint(uint64(doc.CompanyID), 10),
		},
	}
	providerID, err := s.provider.CreateSigningRequest(ctx, req)
	if err != nil {
		s.logger.Error("signing request failed", "document_id", doc.ID, "provider", s.provider.Kind(), "error", err)
		return nil, err
	}

	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ? AND status = ?", doc.ID, models.DocumentStatusDraft).
		Updates(map[string]any{
			"status":               models.DocumentStatusSent,
			"provider":             string(s.provider.Kind()),
			"provider_document_id": providerID,
			"company_signer_added": deferred == nil,
			"sent_at":              now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("mark document %d sent: %w", doc.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		s.logger.Warn("document left draft while sending; provider request orphaned",
			"document_id", doc.ID, "provider_document_id", providerID)
		return nil, conflictf("document %d was sent concurrently", doc.ID)
	}

	s.logger.Info("document sent for signature",
		"document_id", doc.ID, "provider", s.provider.Kind(), "provider_document_id", providerID,
		"signers", len(initial), "deferred_signer", deferred != nil)
	return &SendResult{DocumentID: doc.ID, ProviderDocumentID: providerID, Status: models.DocumentStatusSent}, nil
}

// HandleWebhook verifies, parses and applies one provider notification. It
// never fails: anomalies are logged, counted and recorded, and the caller
// acknowledges the delivery regardless.
func (s *SigningService) HandleWebhook(ctx context.Context, kind provider.Kind, header http.Header, body []byte) models.SignatureOutcome {
	ev := &models.SignatureEvent{
		Provider:      string(kind),
		CorrelationID: uuid.NewString(),
	}
	if json.Valid(body) {
		ev.Payload = datatypes.JSON(body)
	}
	log := s.logger.With("provider", kind, "correlation_id", ev.CorrelationID)

	if err := provider.VerifyWebhook(kind, s.webhookSecret, header, body); err != nil {
		log.Warn("webhook signature rejected", "error", err)
		return s.finish(ctx, ev, models.OutcomeRejectedSignature)
	}

	event, err := provider.ParseWebhook(kind, body)
	if err != nil {
		log.Warn("webhook payload rejected", "error", err)
		return s.finish(ctx, ev, models.OutcomeError)
	}
	ev.EventName = event.Name
	ev.ProviderDocumentID = event.ProviderDocumentID
	ev.SignerEmail = event.SignerEmail

	status, ok := signing.MapEvent(event.Name)
	if !ok {
		log.Info("webhook event ignored", "event", event.Name, "provider_document_id", event.ProviderDocumentID)
		return s.finish(ctx, ev, models.OutcomeUnknownEvent)
	}
	ev.MappedStatus = status

	at := event.OccurredAt
	if at.IsZero() {
		at = s.now()
	}
	result, err := s.apply(ctx, kind, event.ProviderDocumentID, status, event.Name, at, ev)
	if err != nil {
		log.Error("webhook apply failed", "event", event.Name, "provider_document_id", event.ProviderDocumentID, "error", err)
		return s.finish(ctx, ev, models.OutcomeError)
	}
	log.Info("webhook processed", "event", event.Name, "document_id", result.DocumentID,
		"status", result.Status, "outcome", result.Outcome)
	return result.Outcome
}

// RefreshStatus polls the provider for a sent document and applies the
// answer through the same rules as a webhook.
func (s *SigningService) RefreshStatus(ctx context.Context, companyID, documentID uint) (*StatusResult, error) {
	doc, err := s.load(ctx, companyID, documentID)
	if err != nil {
		return nil, err
	}
	if doc.ProviderDocumentID == nil || doc.Provider == "" {
		return nil, conflictf("document %d has not been sent", doc.ID)
	}
	if doc.Provider != string(s.provider.Kind()) {
		return nil, conflictf("document %d was sent with %s", doc.ID, doc.Provider)
	}

	name, err := s.provider.GetStatus(ctx, *doc.ProviderDocumentID)
	if err != nil {
		return nil, err
	}
	ev := &models.SignatureEvent{
		Provider:           doc.Provider,
		EventName:          name,
		ProviderDocumentID: *doc.ProviderDocumentID,
		DocumentID:         &doc.ID,
		CorrelationID:      uuid.NewString(),
	}
	status, ok := signing.MapEvent(name)
	if !ok {
		outcome := s.finish(ctx, ev, models.OutcomeUnknownEvent)
		return &StatusResult{DocumentID: doc.ID, Status: doc.Status, Outcome: outcome}, nil
	}
	ev.MappedStatus = status
	return s.apply(ctx, s.provider.Kind(), *doc.ProviderDocumentID, status, name, s.now(), ev)
}

// RetryCompanySigner adds the deferred company signer of a signed document
// when the earlier attempt failed. It is a no-op once the signer is in.
func (s *SigningService) RetryCompanySigner(ctx context.Context, companyID, documentID uint) error {
	doc, err := s.load(ctx, companyID, documentID)
	if err != nil {
		return err
	}
	if doc.CompanySignerAdded {
		return nil
	}
	if doc.Status != models.DocumentStatusSigned {
		return conflictf("document %d is %s", doc.ID, doc.Status)
	}
	return s.addCompanySigner(ctx, doc)
}

// apply locks the document behind a provider reference and offers it status.
// The audit row is written in the same transaction.
func (s *SigningService) apply(ctx context.Context, kind provider.Kind, providerDocumentID string, status models.DocumentStatus, name string, at time.Time, ev *models.SignatureEvent) (*StatusResult, error) {
	var result StatusResult
	var needsSigner *models.Document

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc models.Document
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("provider = ? AND provider_document_id = ?", string(kind), providerDocumentID).
			First(&doc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result.Outcome = models.OutcomeUnmatched
			ev.Outcome = result.Outcome
			return tx.Create(ev).Error
		}
		if err != nil {
			return err
		}
		ev.DocumentID = &doc.ID
		result.DocumentID = doc.ID

		// Until the deferred company signer is in, the provider's document only
		// holds the customer, so its completion means the customer signed.
		target := status
		if target == models.DocumentStatusCompleted && !doc.CompanySignerAdded {
			s.logger.Info("completion before company signer, holding at signed",
				"document_id", doc.ID, "provider_event", name)
			target = models.DocumentStatusSigned
		}

		decision := signing.Advance(doc.Status, target)
		switch decision {
		case signing.Apply:
			doc.MarkStatus(target, at)
			doc.LastProviderStatus = name
			if err := tx.Select("Status", "LastProviderStatus", "SentAt", "DeliveredAt",
				"SignedAt", "CompletedAt", "DeclinedAt", "VoidedAt").Save(&doc).Error; err != nil {
				return err
			}
			result.Outcome = models.OutcomeApplied
		case signing.Duplicate:
			result.Outcome = models.OutcomeDuplicate
		default:
			result.Outcome = models.OutcomeRegressive
		}
		if target == models.DocumentStatusSigned && doc.Status == models.DocumentStatusSigned && !doc.CompanySignerAdded {
			needsSigner = &doc
		}
		result.Status = doc.Status
		ev.Outcome = result.Outcome
		return tx.Create(ev).Error
	})
	if err != nil {
		return nil, err
	}
	s.metrics.WebhookEvent(string(kind), string(result.Outcome))

	// The provider is called after commit so the row lock is not held across
	// the network. A failure leaves company_signer_added false for a retry.
	if needsSigner != nil {
		if err := s.addCompanySigner(ctx, needsSigner); err != nil {
			s.logger.Error("adding company signer failed", "document_id", needsSigner.ID, "error", err)
		}
	}
	return &result, nil
}

func (s *SigningService) addCompanySigner(ctx context.Context, doc *models.Document) error {
	signers, err := signing.PlanSigners(doc)
	if err != nil {
		return err
	}
	_, deferred := signing.Split(signers, s.provider.Topology())
	if deferred != nil {
		if doc.ProviderDocumentID == nil {
			return conflictf("document %d has no provider reference", doc.ID)
		}
		if err := s.provider.AddSigner(ctx, *doc.ProviderDocumentID, *deferred); err != nil {
			return err
		}
	}
	err = s.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ?", doc.ID).
		Update("company_signer_added", true).Error
	if err != nil {
		return fmt.Errorf("mark company signer added on document %d: %w", doc.ID, err)
	}
	doc.CompanySignerAdded = true
	s.logger.Info("company signer added", "document_id", doc.ID, "needed", deferred != nil)
	return nil
}

// finish records an event that never reached a document and counts it.
func (s *SigningService) finish(ctx context.Context, ev *models.SignatureEvent, outcome models.SignatureOutcome) models.SignatureOutcome {
	ev.ID = 0
	ev.Outcome = outcome
	if err := s.db.WithContext(ctx).Create(ev).Error; err != nil {
		s.logger.Error("recording signature event failed", "correlation_id", ev.CorrelationID, "error", err)
	}
	s.metrics.WebhookEvent(ev.Provider, string(outcome))
	return outcome
}
