package models

import (
	"time"

	"gorm.io/datatypes"
)

// SignatureOutcome records what happened to an incoming provider event.
type SignatureOutcome string

const (
	OutcomeApplied           SignatureOutcome = "applied"
	OutcomeDuplicate         SignatureOutcome = "duplicate"
	OutcomeRegressive        SignatureOutcome = "regressive"
	OutcomeUnknownEvent      SignatureOutcome = "unknown_event"
	OutcomeUnmatched         SignatureOutcome = "unmatched"
	OutcomeRejectedSignature SignatureOutcome = "rejected_signature"
	OutcomeError             SignatureOutcome = "error"
)

// SignatureEvent is an audit row for every webhook delivery and status poll.
type SignatureEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Provider           string `gorm:"size:30;not null" json:"provider"`
	EventName          string `gorm:"size:100" json:"event_name"`
	ProviderDocumentID string `gorm:"size:255;index" json:"provider_document_id,omitempty"`
	DocumentID         *uint  `gorm:"index" json:"document_id,omitempty"`
	CorrelationID      string `gorm:"size:36" json:"correlation_id"`

	// SignerEmail is the recipient the provider attributes the event to.
	SignerEmail string `gorm:"size:255" json:"signer_email,omitempty"`

	MappedStatus DocumentStatus   `gorm:"size:20" json:"mapped_status,omitempty"`
	Outcome      SignatureOutcome `gorm:"size:30;not null" json:"outcome"`

	Payload datatypes.JSON `json:"payload,omitempty"`
}
