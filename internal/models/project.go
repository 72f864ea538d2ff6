package models

import (
	"time"

	"github.com/diewo77/go-contracts/internal/pricing"
	"github.com/shopspring/decimal"
)

// ProjectStatus is the project lifecycle. It is independent of the status of
// any document generated for the project.
type ProjectStatus string

const (
	ProjectStatusLead      ProjectStatus = "lead"
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusOnHold    ProjectStatus = "on_hold"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusCancelled ProjectStatus = "cancelled"
)

// Project is a unit of work for one customer.
type Project struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CompanyID uint     `gorm:"index;not null" json:"company_id"`
	Company   *Company `gorm:"foreignKey:CompanyID" json:"-"`

	Name          string        `gorm:"size:255;not null" json:"name"`
	CustomerName  string        `gorm:"size:255" json:"customer_name"`
	CustomerEmail string        `gorm:"size:255" json:"customer_email"`
	Status        ProjectStatus `gorm:"size:20;not null;default:'active'" json:"status"`

	// Per-project overrides of company fees and aggregate milestone prices.
	InitialFee              decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"initial_fee"`
	FinalInspectionFee      decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"final_inspection_fee"`
	EquipmentMaterialsPrice decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"equipment_materials_price"`
	AdditionalExpensesPrice decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"additional_expenses_price"`

	CostItems []CostLineItem `gorm:"foreignKey:ProjectID" json:"cost_items,omitempty"`
}

// CostLineItem is an internal cost record. Its cost never reaches the customer.
type CostLineItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectID uint             `gorm:"index;not null" json:"project_id"`
	Category  pricing.Category `gorm:"size:30;not null;index" json:"category"`

	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	Quantity      decimal.NullDecimal `gorm:"type:decimal(12,3)" json:"quantity"`
	UnitCost      decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"unit_cost"`
	Cost          decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"cost"`
	CustomerPrice decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"customer_price"`
	MarkupPercent decimal.NullDecimal `gorm:"type:decimal(7,3)" json:"markup_percent"`
	MinPrice      decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"min_price"`
	MaxPrice      decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"max_price"`
}

// ComputeCost sets Cost to Quantity x UnitCost when a unit cost is given.
// A missing quantity counts as one.
func (c *CostLineItem) ComputeCost() {
	if !c.UnitCost.Valid {
		return
	}
	qty := decimal.NewFromInt(1)
	if c.Quantity.Valid {
		qty = c.Quantity.Decimal
	}
	c.Cost = decimal.NewNullDecimal(qty.Mul(c.UnitCost.Decimal).Round(2))
}

// Override returns the item-level pricing knobs.
func (c *CostLineItem) Override() pricing.Override {
	return pricing.Override{MarkupPercent: c.MarkupPercent, Min: c.MinPrice, Max: c.MaxPrice}
}

// Priced reports whether the item carries a price or a positive cost.
func (c *CostLineItem) Priced() bool {
	if c.CustomerPrice.Valid {
		return true
	}
	return c.Cost.Valid && c.Cost.Decimal.IsPositive()
}

// ChangeOrderItem is a user-authored line of a change order. It has no link
// to cost line items.
type ChangeOrderItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectID uint `gorm:"index;not null" json:"project_id"`
	// DocumentID is set once the item has been placed on a change order.
	DocumentID *uint `gorm:"index" json:"document_id,omitempty"`

	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	Position    int    `gorm:"default:0" json:"position"`

	Cost          decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"cost"`
	CustomerPrice decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"customer_price"`
	MarkupPercent decimal.NullDecimal `gorm:"type:decimal(7,3)" json:"markup_percent"`
}
