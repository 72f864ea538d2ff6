package pricing

import "github.com/shopspring/decimal"

// Category groups cost line items that share company pricing defaults.
type Category string

const (
	CategorySubcontractorFee  Category = "subcontractor_fee"
	CategoryEquipment         Category = "equipment"
	CategoryMaterials         Category = "materials"
	CategoryAdditionalExpense Category = "additional_expense"
)

// Categories lists every known category in display order.
var Categories = []Category{
	CategorySubcontractorFee,
	CategoryEquipment,
	CategoryMaterials,
	CategoryAdditionalExpense,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Override is a set of optional pricing knobs. It is used both for per-item
// overrides and for a company's per-category defaults.
type Override struct {
	MarkupPercent decimal.NullDecimal
	Min           decimal.NullDecimal
	Max           decimal.NullDecimal
}

// CompanyDefaults is the pricing configuration of one company.
type CompanyDefaults struct {
	// MarkupPercent is the global fallback markup.
	MarkupPercent decimal.NullDecimal
	Categories    map[Category]Override
}

// Defaults is the fully resolved configuration for one line.
type Defaults struct {
	MarkupPercent decimal.Decimal
	Min           decimal.NullDecimal
	Max           decimal.NullDecimal
}

// ResolveDefaults picks markup and bounds for a line of the given category.
// Each field falls back independently: item override, then the company's
// category default, then the company's global markup (markup only), then
// zero markup with no bounds.
func ResolveDefaults(company CompanyDefaults, category Category, item Override) Defaults {
	cat := company.Categories[category]

	var d Defaults
	switch {
	case item.MarkupPercent.Valid:
		d.MarkupPercent = item.MarkupPercent.Decimal
	case cat.MarkupPercent.Valid:
		d.MarkupPercent = cat.MarkupPercent.Decimal
	case company.MarkupPercent.Valid:
		d.MarkupPercent = company.MarkupPercent.Decimal
	default:
		d.MarkupPercent = decimal.Zero
	}
	d.Min = firstValid(item.Min, cat.Min)
	d.Max = firstValid(item.Max, cat.Max)
	return d
}

// Input builds a pricing Input for the given cost and optional flat price.
func (d Defaults) Input(cost, flat decimal.NullDecimal) Input {
	return Input{
		Cost:          cost,
		FlatPrice:     flat,
		MarkupPercent: d.MarkupPercent,
		Min:           d.Min,
		Max:           d.Max,
	}
}

func firstValid(values ...decimal.NullDecimal) decimal.NullDecimal {
	for _, v := range values {
		if v.Valid {
			return v
		}
	}
	return decimal.NullDecimal{}
}
