package models

import (
	"time"

	"github.com/diewo77/go-contracts/internal/pricing"
	"github.com/shopspring/decimal"
)

// Company is a tenant: a contracting business with its pricing defaults and
// document counter.
type Company struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name  string `gorm:"size:255;not null" json:"name"`
	Email string `gorm:"size:255" json:"email,omitempty"`

	// Company representative who countersigns documents.
	SignerName  string `gorm:"size:255" json:"signer_name,omitempty"`
	SignerEmail string `gorm:"size:255" json:"signer_email,omitempty"`

	// Global fallback markup.
	DefaultMarkupPercent decimal.NullDecimal `gorm:"type:decimal(7,3)" json:"default_markup_percent"`

	DefaultSubcontractorFeeMarkupPercent decimal.NullDecimal `gorm:"type:decimal(7,3)" json:"default_subcontractor_fee_markup_percent"`
	DefaultSubcontractorFeeMin           decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"default_subcontractor_fee_min"`
	DefaultSubcontractorFeeMax           decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"default_subcontractor_fee_max"`

	DefaultEquipmentMarkupPercent decimal.NullDecimal `gorm:"type:decimal(7,3)" json:"default_equipment_markup_percent"`
	DefaultEquipmentMin           decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"default_equipment_min"`
	DefaultEquipmentMax           decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"default_equipment_max"`

	DefaultMaterialsMarkupPercent decimal.NullDecimal `gorm:"type:decimal(7,3)" json:"default_materials_markup_percent"`
	DefaultMaterialsMin           decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"default_materials_min"`
	DefaultMaterialsMax           decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"default_materials_max"`

	DefaultAdditionalExpenseMarkupPercent decimal.NullDecimal `gorm:"type:decimal(7,3)" json:"default_additional_expense_markup_percent"`
	DefaultAdditionalExpenseMin           decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"default_additional_expense_min"`
	DefaultAdditionalExpenseMax           decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"default_additional_expense_max"`

	// Milestone auto-include flags for contracts and proposals.
	AutoIncludeInitialFee         bool `gorm:"not null;default:false" json:"auto_include_initial_fee"`
	AutoIncludeSubcontractorFees  bool `gorm:"not null;default:false" json:"auto_include_subcontractor_fees"`
	AutoIncludeEquipmentMaterials bool `gorm:"not null;default:false" json:"auto_include_equipment_materials"`
	AutoIncludeAdditionalExpenses bool `gorm:"not null;default:false" json:"auto_include_additional_expenses"`

	InitialFee            decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"initial_fee"`
	FinalInspectionFee    decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"final_inspection_fee"`
	ChangeOrderInitialFee decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"change_order_initial_fee"`

	// NextDocumentNumber is only moved forward, by the allocator or by a
	// settings update.
	NextDocumentNumber int64 `gorm:"not null;default:1" json:"next_document_number"`
}

// PricingDefaults returns the company's pricing configuration.
func (c *Company) PricingDefaults() pricing.CompanyDefaults {
	return pricing.CompanyDefaults{
		MarkupPercent: c.DefaultMarkupPercent,
		Categories: map[pricing.Category]pricing.Override{
			pricing.CategorySubcontractorFee: {
				MarkupPercent: c.DefaultSubcontractorFeeMarkupPercent,
				Min:           c.DefaultSubcontractorFeeMin,
				Max:           c.DefaultSubcontractorFeeMax,
			},
			pricing.CategoryEquipment: {
				MarkupPercent: c.DefaultEquipmentMarkupPercent,
				Min:           c.DefaultEquipmentMin,
				Max:           c.DefaultEquipmentMax,
			},
			pricing.CategoryMaterials: {
				MarkupPercent: c.DefaultMaterialsMarkupPercent,
				Min:           c.DefaultMaterialsMin,
				Max:           c.DefaultMaterialsMax,
			},
			pricing.CategoryAdditionalExpense: {
				MarkupPercent: c.DefaultAdditionalExpenseMarkupPercent,
				Min:           c.DefaultAdditionalExpenseMin,
				Max:           c.DefaultAdditionalExpenseMax,
			},
		},
	}
}

// SetCategoryDefaults writes o into the columns for category.
func (c *Company) SetCategoryDefaults(category pricing.Category, o pricing.Override) {
	switch category {
	case pricing.CategorySubcontractorFee:
		c.DefaultSubcontractorFeeMarkupPercent, c.DefaultSubcontractorFeeMin, c.DefaultSubcontractorFeeMax = o.MarkupPercent, o.Min, o.Max
	case pricing.CategoryEquipment:
		c.DefaultEquipmentMarkupPercent, c.DefaultEquipmentMin, c.DefaultEquipmentMax = o.MarkupPercent, o.Min, o.Max
	case pricing.CategoryMaterials:
		c.DefaultMaterialsMarkupPercent, c.DefaultMaterialsMin, c.DefaultMaterialsMax = o.MarkupPercent, o.Min, o.Max
	case pricing.CategoryAdditionalExpense:
		c.DefaultAdditionalExpenseMarkupPercent, c.DefaultAdditionalExpenseMin, c.DefaultAdditionalExpenseMax = o.MarkupPercent, o.Min, o.Max
	}
}
