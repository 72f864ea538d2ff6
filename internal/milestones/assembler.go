// Package milestones builds the payment schedule of a document.
//
// Assemble is a pure transform from company settings, project overrides and
// cost records to unsaved milestones. Persisting them is the caller's job.
package milestones

import (
	"errors"
	"fmt"

	"github.com/diewo77/go-contracts/internal/models"
	"github.com/diewo77/go-contracts/internal/pricing"
	"github.com/diewo77/go-contracts/internal/validation"
	"github.com/shopspring/decimal"
)

// Milestone names shown to customers.
const (
	NameInitialFee         = "Initial Fee"
	NameEquipmentMaterials = "Equipment & Materials"
	NameAdditionalExpenses = "Additional Expenses"
	NameFinalInspection    = "Final Inspection"
	NameBalanceTBD         = "Balance To Be Determined"
)

// Input is everything Assemble reads.
type Input struct {
	DocumentType models.DocumentType
	Company      *models.Company
	Project      *models.Project
	// CostItems are the project's cost records, in display order.
	CostItems []models.CostLineItem
	// ChangeOrderItems are the pending items for a change order.
	ChangeOrderItems []models.ChangeOrderItem
}

// Assemble returns the ordered milestones for in, or a *validation.Error.
func Assemble(in Input) ([]models.Milestone, error) {
	if in.Company == nil || in.Project == nil {
		return nil, errors.New("milestones: company and project are required")
	}
	b := &builder{in: in, defaults: in.Company.PricingDefaults(), v: validation.Violations{}}

	switch in.DocumentType {
	case models.DocumentTypeContract, models.DocumentTypeProposal:
		b.contract()
	case models.DocumentTypeChangeOrder:
		b.changeOrder()
	default:
		b.v["document_type"] = "invalid"
	}
	if err := b.v.Err(); err != nil {
		return nil, err
	}
	return b.out, nil
}

type builder struct {
	in       Input
	defaults pricing.CompanyDefaults
	v        validation.Violations
	out      []models.Milestone
}

func (b *builder) add(m models.Milestone) {
	m.ProjectID = b.in.Project.ID
	m.SortOrder = len(b.out) + 1
	b.out = append(b.out, m)
}

func (b *builder) contract() {
	c, p := b.in.Company, b.in.Project

	if c.AutoIncludeInitialFee {
		fee := firstValid(p.InitialFee, c.InitialFee)
		if !fee.Valid {
			b.v["initial_fee"] = "required"
		} else {
			b.add(fixed(models.MilestoneTypeInitialFee, NameInitialFee, fee))
		}
	}

	if c.AutoIncludeSubcontractorFees {
		b.subcontractors(b.itemsIn(pricing.CategorySubcontractorFee))
	}

	if c.AutoIncludeEquipmentMaterials {
		b.aggregate("equipment_materials", models.MilestoneTypeEquipment, NameEquipmentMaterials,
			p.EquipmentMaterialsPrice, b.itemsIn(pricing.CategoryEquipment, pricing.CategoryMaterials))
	}

	if c.AutoIncludeAdditionalExpenses {
		b.aggregate("additional_expenses", models.MilestoneTypeAdditional, NameAdditionalExpenses,
			p.AdditionalExpensesPrice, b.itemsIn(pricing.CategoryAdditionalExpense))
	}

	final := firstValid(p.FinalInspectionFee, c.FinalInspectionFee)
	if !final.Valid {
		final = decimal.NewNullDecimal(decimal.Zero)
	}
	b.add(fixed(models.MilestoneTypeFinalInspection, NameFinalInspection, final))
}

func (b *builder) subcontractors(items []models.CostLineItem) {
	if !anyPriced(items) {
		b.v["subcontractor_fees"] = "no_priced_items"
		return
	}
	for _, item := range items {
		defs := pricing.ResolveDefaults(b.defaults, item.Category, item.Override())
		price, err := pricing.Resolve(defs.Input(item.Cost, item.CustomerPrice))
		if err != nil {
			b.boundsViolation(item.ID, err)
			continue
		}
		id := item.ID
		b.add(models.Milestone{
			Type:          models.MilestoneTypeSubcontractor,
			Name:          item.Name,
			Description:   item.Description,
			Cost:          orZero(item.Cost),
			CustomerPrice: price,
			FlatPrice:     item.CustomerPrice,
			MarkupPercent: defs.MarkupPercent,
			SourceItemID:  &id,
		})
	}
}

// aggregate adds one milestone summing items, or priced at override when the
// project carries one.
func (b *builder) aggregate(field string, typ models.MilestoneType, name string, override decimal.NullDecimal, items []models.CostLineItem) {
	cost := decimal.Zero
	for _, item := range items {
		cost = cost.Add(orZero(item.Cost))
	}

	if override.Valid {
		b.add(models.Milestone{
			Type:          typ,
			Name:          name,
			Cost:          cost,
			CustomerPrice: override.Decimal,
			FlatPrice:     override,
			MarkupPercent: effectiveMarkup(cost, override.Decimal),
		})
		return
	}
	if !anyPriced(items) {
		b.v[field] = "no_priced_items"
		return
	}

	price := decimal.Zero
	for _, item := range items {
		defs := pricing.ResolveDefaults(b.defaults, item.Category, item.Override())
		p, err := pricing.Resolve(defs.Input(item.Cost, item.CustomerPrice))
		if err != nil {
			b.boundsViolation(item.ID, err)
			return
		}
		price = price.Add(p)
	}
	b.add(models.Milestone{
		Type:          typ,
		Name:          name,
		Cost:          cost,
		CustomerPrice: price,
		MarkupPercent: effectiveMarkup(cost, price),
	})
}

func (b *builder) changeOrder() {
	if len(b.in.ChangeOrderItems) == 0 {
		b.v["change_order_items"] = "required"
		return
	}

	initial := b.in.Company.ChangeOrderInitialFee
	if !initial.Valid {
		initial = decimal.NewNullDecimal(decimal.Zero)
	}
	first := fixed(models.MilestoneTypeInitialFee, NameInitialFee, initial)
	first.Placeholder = true
	b.add(first)

	global := pricing.CompanyDefaults{MarkupPercent: b.defaults.MarkupPercent}
	for i, item := range b.in.ChangeOrderItems {
		validation.Required(fmt.Sprintf("change_order_items.%d.name", i), item.Name, b.v)
		defs := pricing.ResolveDefaults(global, "", pricing.Override{MarkupPercent: item.MarkupPercent})
		price, err := pricing.Resolve(defs.Input(item.Cost, item.CustomerPrice))
		if err != nil {
			b.v[fmt.Sprintf("change_order_items.%d", i)] = "invalid_bounds"
			continue
		}
		b.add(models.Milestone{
			Type:          models.MilestoneTypeChangeOrderItem,
			Name:          item.Name,
			Description:   item.Description,
			Cost:          orZero(item.Cost),
			CustomerPrice: price,
			FlatPrice:     item.CustomerPrice,
			MarkupPercent: defs.MarkupPercent,
		})
	}

	b.add(models.Milestone{
		Type:          models.MilestoneTypeCustom,
		Name:          NameBalanceTBD,
		CustomerPrice: decimal.Zero,
		Placeholder:   true,
	})
}

func (b *builder) itemsIn(categories ...pricing.Category) []models.CostLineItem {
	var out []models.CostLineItem
	for _, item := range b.in.CostItems {
		for _, c := range categories {
			if item.Category == c {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

func (b *builder) boundsViolation(itemID uint, err error) {
	code := "invalid"
	if errors.Is(err, pricing.ErrInvalidBounds) {
		code = "invalid_bounds"
	}
	b.v[fmt.Sprintf("cost_items.%d", itemID)] = code
}

func fixed(typ models.MilestoneType, name string, price decimal.NullDecimal) models.Milestone {
	return models.Milestone{
		Type:          typ,
		Name:          name,
		CustomerPrice: price.Decimal,
		FlatPrice:     price,
	}
}

func anyPriced(items []models.CostLineItem) bool {
	for i := range items {
		if items[i].Priced() {
			return true
		}
	}
	return false
}

// effectiveMarkup is the percent that turns cost into price, zero without cost.
func effectiveMarkup(cost, price decimal.Decimal) decimal.Decimal {
	if !cost.IsPositive() {
		return decimal.Zero
	}
	return price.Div(cost).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100)).Round(3)
}

func orZero(v decimal.NullDecimal) decimal.Decimal {
	if v.Valid {
		return v.Decimal
	}
	return decimal.Zero
}

func firstValid(values ...decimal.NullDecimal) decimal.NullDecimal {
	for _, v := range values {
		if v.Valid {
			return v
		}
	}
	return decimal.NullDecimal{}
}
