package signing

import (
	"strings"

	"github.com/diewo77/go-contracts/internal/models"
)

// statusByEvent maps provider event names and polled status names to
// document statuses. Names of every provider share one table; they do not
// collide.
var statusByEvent = map[string]models.DocumentStatus{
	// DocuSign Connect
	"envelope-sent":       models.DocumentStatusSent,
	"envelope-delivered":  models.DocumentStatusDelivered,
	"recipient-completed": models.DocumentStatusSigned,
	"envelope-completed":  models.DocumentStatusCompleted,
	"envelope-declined":   models.DocumentStatusDeclined,
	"recipient-declined":  models.DocumentStatusDeclined,
	"envelope-voided":     models.DocumentStatusVoided,

	// SignWell
	"document_sent":      models.DocumentStatusSent,
	"document_viewed":    models.DocumentStatusDelivered,
	"document_signed":    models.DocumentStatusSigned,
	"document_completed": models.DocumentStatusCompleted,
	"document_declined":  models.DocumentStatusDeclined,
	"document_canceled":  models.DocumentStatusVoided,
	"document_expired":   models.DocumentStatusVoided,

	// Polled statuses
	"sent":      models.DocumentStatusSent,
	"pending":   models.DocumentStatusSent,
	"delivered": models.DocumentStatusDelivered,
	"viewed":    models.DocumentStatusDelivered,
	"signed":    models.DocumentStatusSigned,
	"completed": models.DocumentStatusCompleted,
	"declined":  models.DocumentStatusDeclined,
	"voided":    models.DocumentStatusVoided,
	"canceled":  models.DocumentStatusVoided,
	"expired":   models.DocumentStatusVoided,
}

// MapEvent returns the document status for a provider event name. Unknown
// and verification-only events report false and must not change anything.
func MapEvent(name string) (models.DocumentStatus, bool) {
	s, ok := statusByEvent[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}
