// Package signing holds the signature state machine, signer planning and the
// mapping from provider events to document statuses.
package signing

import "github.com/diewo77/go-contracts/internal/models"

// Decision is the outcome of offering a new status to a document.
type Decision int

const (
	// Apply means the document moves to the offered status.
	Apply Decision = iota
	// Duplicate means the document is already in that status.
	Duplicate
	// Regressive means the offered status is behind the current one, or the
	// document is terminal.
	Regressive
	// Invalid means the transition is never allowed from a webhook, e.g. on
	// a draft or back to draft.
	Invalid
)

func (d Decision) String() string {
	switch d {
	case Apply:
		return "apply"
	case Duplicate:
		return "duplicate"
	case Regressive:
		return "regressive"
	default:
		return "invalid"
	}
}

var rank = map[models.DocumentStatus]int{
	models.DocumentStatusDraft:     0,
	models.DocumentStatusSent:      1,
	models.DocumentStatusDelivered: 2,
	models.DocumentStatusSigned:    3,
	models.DocumentStatusCompleted: 4,
}

// IsTerminal reports whether no further transition can happen.
func IsTerminal(s models.DocumentStatus) bool {
	switch s {
	case models.DocumentStatusCompleted, models.DocumentStatusDeclined, models.DocumentStatusVoided:
		return true
	}
	return false
}

// CanSend reports whether a document in status s may be sent for signature.
func CanSend(s models.DocumentStatus) bool {
	return s == models.DocumentStatusDraft || s == ""
}

// Advance decides whether a provider-reported status moves a document
// currently in status current. Progress only goes forward; declined and
// voided end any non-terminal document; terminal documents never change.
func Advance(current, target models.DocumentStatus) Decision {
	if CanSend(current) {
		return Invalid
	}
	if target == current {
		return Duplicate
	}
	if IsTerminal(current) {
		return Regressive
	}

	switch target {
	case models.DocumentStatusDeclined, models.DocumentStatusVoided:
		return Apply
	case models.DocumentStatusDraft, "":
		return Invalid
	}

	to, ok := rank[target]
	if !ok {
		return Invalid
	}
	if to > rank[current] {
		return Apply
	}
	return Regressive
}
