package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DocumentType distinguishes contracts, proposals and change orders.
type DocumentType string

const (
	DocumentTypeContract    DocumentType = "contract"
	DocumentTypeProposal    DocumentType = "proposal"
	DocumentTypeChangeOrder DocumentType = "change_order"
)

// Valid reports whether t is a known document type.
func (t DocumentType) Valid() bool {
	switch t {
	case DocumentTypeContract, DocumentTypeProposal, DocumentTypeChangeOrder:
		return true
	}
	return false
}

func (t DocumentType) prefix() string {
	switch t {
	case DocumentTypeProposal:
		return "PRO"
	case DocumentTypeChangeOrder:
		return "CO"
	default:
		return "CON"
	}
}

// DocumentStatus is the signature lifecycle state of a document.
type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "draft"
	DocumentStatusSent      DocumentStatus = "sent"
	DocumentStatusDelivered DocumentStatus = "delivered"
	DocumentStatusSigned    DocumentStatus = "signed"
	DocumentStatusCompleted DocumentStatus = "completed"
	DocumentStatusDeclined  DocumentStatus = "declined"
	DocumentStatusVoided    DocumentStatus = "voided"
)

// Document is a numbered contract, proposal or change order.
type Document struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CompanyID uint `gorm:"not null;uniqueIndex:idx_documents_company_number,priority:1" json:"company_id"`
	// DocumentNumber is unique per company once assigned.
	DocumentNumber *int64 `gorm:"uniqueIndex:idx_documents_company_number,priority:2" json:"document_number"`

	ProjectID    uint           `gorm:"index;not null" json:"project_id"`
	DocumentType DocumentType   `gorm:"size:20;not null" json:"document_type"`
	Status       DocumentStatus `gorm:"size:20;not null;default:'draft';index" json:"status"`

	CustomerName       string `gorm:"size:255" json:"customer_name"`
	CustomerEmail      string `gorm:"size:255" json:"customer_email"`
	CompanySignerName  string `gorm:"size:255" json:"company_signer_name,omitempty"`
	CompanySignerEmail string `gorm:"size:255" json:"company_signer_email,omitempty"`

	Provider           string  `gorm:"size:30;uniqueIndex:idx_documents_provider_ref,priority:1" json:"provider,omitempty"`
	ProviderDocumentID *string `gorm:"size:255;uniqueIndex:idx_documents_provider_ref,priority:2" json:"provider_document_id,omitempty"`
	CompanySignerAdded bool    `gorm:"not null;default:false" json:"company_signer_added"`
	LastProviderStatus string  `gorm:"size:50" json:"last_provider_status,omitempty"`

	Total decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`

	SentAt      *time.Time `json:"sent_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	SignedAt    *time.Time `json:"signed_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DeclinedAt  *time.Time `json:"declined_at,omitempty"`
	VoidedAt    *time.Time `json:"voided_at,omitempty"`

	Milestones []Milestone `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"-"`
}

// DisplayNumber formats the document number, e.g. CON-00042.
func (d *Document) DisplayNumber() string {
	if d.DocumentNumber == nil {
		return ""
	}
	return fmt.Sprintf("%s-%05d", d.DocumentType.prefix(), *d.DocumentNumber)
}

// IsDraft returns true while the document has not been sent.
func (d *Document) IsDraft() bool {
	return d.Status == DocumentStatusDraft || d.Status == ""
}

// MarkStatus sets the status and stamps the matching timestamp.
func (d *Document) MarkStatus(status DocumentStatus, at time.Time) {
	d.Status = status
	switch status {
	case DocumentStatusSent:
		d.SentAt = &at
	case DocumentStatusDelivered:
		d.DeliveredAt = &at
	case DocumentStatusSigned:
		d.SignedAt = &at
	case DocumentStatusCompleted:
		d.CompletedAt = &at
	case DocumentStatusDeclined:
		d.DeclinedAt = &at
	case DocumentStatusVoided:
		d.VoidedAt = &at
	}
}

// MilestoneType classifies a milestone by its origin.
type MilestoneType string

const (
	MilestoneTypeInitialFee      MilestoneType = "initial_fee"
	MilestoneTypeSubcontractor   MilestoneType = "subcontractor"
	MilestoneTypeEquipment       MilestoneType = "equipment"
	MilestoneTypeMaterials       MilestoneType = "materials"
	MilestoneTypeAdditional      MilestoneType = "additional"
	MilestoneTypeFinalInspection MilestoneType = "final_inspection"
	MilestoneTypeChangeOrderItem MilestoneType = "change_order_item"
	MilestoneTypeCustom          MilestoneType = "custom"
)

// Milestone is a priced payment line on a document. Prices are snapshots:
// editing the source cost item later does not change them.
type Milestone struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	DocumentID uint `gorm:"index;not null" json:"document_id"`
	ProjectID  uint `gorm:"index;not null" json:"project_id"`

	Type        MilestoneType `gorm:"size:30;not null" json:"type"`
	Name        string        `gorm:"size:255;not null" json:"name"`
	Description string        `gorm:"type:text" json:"description,omitempty"`

	Cost          decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"cost"`
	CustomerPrice decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"customer_price"`
	FlatPrice     decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"flat_price"`
	MarkupPercent decimal.Decimal     `gorm:"type:decimal(7,3);not null" json:"markup_percent"`
	SortOrder     int                 `gorm:"not null" json:"sort_order"`
	Placeholder   bool                `gorm:"not null;default:false" json:"placeholder"`

	// SourceItemID is a weak reference: deleting the cost item nulls it.
	SourceItemID *uint         `gorm:"index" json:"source_item_id,omitempty"`
	SourceItem   *CostLineItem `gorm:"foreignKey:SourceItemID;constraint:OnDelete:SET NULL" json:"-"`
}

// CustomerMilestone is the customer-facing view of a milestone.
type CustomerMilestone struct {
	Type        MilestoneType   `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	SortOrder   int             `json:"sort_order"`
	Placeholder bool            `json:"placeholder,omitempty"`
}

// CustomerView drops cost and markup.
func (m Milestone) CustomerView() CustomerMilestone {
	return CustomerMilestone{
		Type:        m.Type,
		Name:        m.Name,
		Description: m.Description,
		Price:       m.CustomerPrice,
		SortOrder:   m.SortOrder,
		Placeholder: m.Placeholder,
	}
}

// CustomerViews maps ms to their customer views, preserving order.
func CustomerViews(ms []Milestone) []CustomerMilestone {
	out := make([]CustomerMilestone, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.CustomerView())
	}
	return out
}

// SumPrices totals the customer prices of ms.
func SumPrices(ms []Milestone) decimal.Decimal {
	total := decimal.Zero
	for _, m := range ms {
		total = total.Add(m.CustomerPrice)
	}
	return total
}
