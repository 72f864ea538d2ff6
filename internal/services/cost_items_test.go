package services

import (
	"context"
	"errors"
	"testing"

	"github.com/diewo77/go-contracts/internal/models"
	"github.com/diewo77/go-contracts/internal/pricing"
	"github.com/diewo77/go-contracts/internal/signing/provider"
	"github.com/diewo77/go-contracts/internal/validation"
	"github.com/shopspring/decimal"
)

func ptr[T any](v T) *T { return &v }

func TestCostItemUpdate(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	svc := NewCostItemService(db, discardLogger())
	ctx := context.Background()

	item, err := svc.Update(ctx, f.company.ID, f.items[2].ID, CostItemPatch{
		Name:     ptr("Scissor lift"),
		Quantity: ptr(pricing.Money("3")),
		UnitCost: ptr(pricing.Money("75")),
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if item.Name != "Scissor lift" || !item.Cost.Decimal.Equal(decimal.NewFromInt(225)) {
		t.Errorf("item = %s cost %v", item.Name, item.Cost)
	}

	// A draft document does not freeze its sources.
	generate(t, db, f, models.DocumentTypeContract)
	if _, err := svc.Update(ctx, f.company.ID, f.items[0].ID, CostItemPatch{Cost: ptr(pricing.Money("900"))}); err != nil {
		t.Errorf("update behind a draft: %v", err)
	}

	_, err = svc.Update(ctx, f.company.ID, f.items[0].ID, CostItemPatch{MinPrice: ptr(pricing.Money("500")), MaxPrice: ptr(pricing.Money("100"))})
	var verr *validation.Error
	if !errors.As(err, &verr) || verr.Violations["min_price"] != "exceeds_max" {
		t.Errorf("bad bounds: err = %v", err)
	}

	other := &models.Company{Name: "Other"}
	db.Create(other)
	if _, err := svc.Update(ctx, other.ID, f.items[0].ID, CostItemPatch{Name: ptr("x")}); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign item: err = %v", err)
	}
}

func TestCostItemUpdate_NegativeMarkup(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	svc := NewCostItemService(db, discardLogger())
	ctx := context.Background()

	item, err := svc.Update(ctx, f.company.ID, f.items[0].ID, CostItemPatch{MarkupPercent: ptr(pricing.Money("-10"))})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !item.MarkupPercent.Decimal.Equal(decimal.NewFromInt(-10)) {
		t.Errorf("markup = %v", item.MarkupPercent)
	}
	view := generate(t, db, f, models.DocumentTypeContract)
	if got := view.Milestones[1]; got.Name != "Electrical" || !got.Price.Equal(decimal.NewFromInt(900)) {
		t.Errorf("Electrical = %s %s, want 900", got.Name, got.Price)
	}

	_, err = svc.Update(ctx, f.company.ID, f.items[0].ID, CostItemPatch{MarkupPercent: ptr(pricing.Money("-101"))})
	var verr *validation.Error
	if !errors.As(err, &verr) || verr.Violations["markup_percent"] != "out_of_range" {
		t.Errorf("markup below -100: err = %v", err)
	}
}

func TestCostItemUpdate_FrozenBySentDocument(t *testing.T) {
	db := setupTestDB(t)
	p := newFakeProvider(provider.TopologyGated)
	f, _ := sentDocument(t, db, p)
	svc := NewCostItemService(db, discardLogger())

	_, err := svc.Update(context.Background(), f.company.ID, f.items[0].ID, CostItemPatch{Cost: ptr(pricing.Money("1"))})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
	// Aggregated items have no milestone link and stay editable.
	if _, err := svc.Update(context.Background(), f.company.ID, f.items[2].ID, CostItemPatch{Cost: ptr(pricing.Money("1"))}); err != nil {
		t.Errorf("aggregated item: %v", err)
	}
}

func TestCostItemDelete_DetachesMilestones(t *testing.T) {
	db := setupTestDB(t)
	p := newFakeProvider(provider.TopologyGated)
	f, res := sentDocument(t, db, p)
	svc := NewCostItemService(db, discardLogger())

	if err := svc.Delete(context.Background(), f.company.ID, f.items[0].ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	var count int64
	db.Model(&models.CostLineItem{}).Where("id = ?", f.items[0].ID).Count(&count)
	if count != 0 {
		t.Error("cost item still present")
	}

	var ms []models.Milestone
	db.Where("document_id = ?", res.DocumentID).Order("sort_order").Find(&ms)
	if len(ms) != 6 {
		t.Fatalf("milestones = %d, want 6", len(ms))
	}
	if ms[1].SourceItemID != nil {
		t.Errorf("milestone still points at %d", *ms[1].SourceItemID)
	}
	if ms[1].Name != "Electrical" || !ms[1].CustomerPrice.Equal(decimal.NewFromInt(1300)) {
		t.Errorf("snapshot changed: %s %s", ms[1].Name, ms[1].CustomerPrice)
	}

	if err := svc.Delete(context.Background(), f.company.ID, f.items[0].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: err = %v", err)
	}
}
