package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/diewo77/go-contracts/internal/models"
	"github.com/diewo77/go-contracts/internal/validation"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CostItemPatch carries the fields of a partial cost item update. Absent
// fields leave the item alone.
type CostItemPatch struct {
	Name          *string              `json:"name"`
	Description   *string              `json:"description"`
	Quantity      *decimal.NullDecimal `json:"quantity"`
	UnitCost      *decimal.NullDecimal `json:"unit_cost"`
	Cost          *decimal.NullDecimal `json:"cost"`
	CustomerPrice *decimal.NullDecimal `json:"customer_price"`
	MarkupPercent *decimal.NullDecimal `json:"markup_percent"`
	MinPrice      *decimal.NullDecimal `json:"min_price"`
	MaxPrice      *decimal.NullDecimal `json:"max_price"`
}

func (p CostItemPatch) apply(item *models.CostLineItem) {
	if p.Name != nil {
		item.Name = *p.Name
	}
	if p.Description != nil {
		item.Description = *p.Description
	}
	for _, f := range []struct {
		src *decimal.NullDecimal
		dst *decimal.NullDecimal
	}{
		{p.Quantity, &item.Quantity},
		{p.UnitCost, &item.UnitCost},
		{p.Cost, &item.Cost},
		{p.CustomerPrice, &item.CustomerPrice},
		{p.MarkupPercent, &item.MarkupPercent},
		{p.MinPrice, &item.MinPrice},
		{p.MaxPrice, &item.MaxPrice},
	} {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
	item.ComputeCost()
}

func validateCostItem(item *models.CostLineItem) error {
	v := validation.Violations{}
	validation.Required("name", item.Name, v)
	validation.NonNegative("quantity", item.Quantity, v)
	validation.NonNegative("unit_cost", item.UnitCost, v)
	validation.NonNegative("cost", item.Cost, v)
	validation.NonNegative("customer_price", item.CustomerPrice, v)
	validation.NonNegative("min_price", item.MinPrice, v)
	validation.NonNegative("max_price", item.MaxPrice, v)
	validation.MinMax("min_price", item.MinPrice, item.MaxPrice, v)
	validateMarkup("markup_percent", item.MarkupPercent, v)
	return v.Err()
}

// CostItemService edits cost records. Milestones already on a sent document
// are snapshots, so the items behind them are frozen.
type CostItemService struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewCostItemService(db *gorm.DB, logger *slog.Logger) *CostItemService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CostItemService{db: db, logger: logger}
}

// lockItem loads the item of companyID under a row lock.
func lockItem(tx *gorm.DB, companyID, itemID uint) (*models.CostLineItem, error) {
	var item models.CostLineItem
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND project_id IN (?)", itemID,
			tx.Model(&models.Project{}).Select("id").Where("company_id = ?", companyID)).
		First(&item).Error
	if err != nil {
		return nil, notFound(err, "cost item")
	}
	return &item, nil
}

// frozen reports whether a milestone of a non-draft document points at item.
func frozen(tx *gorm.DB, itemID uint) (bool, error) {
	var n int64
	err := tx.Model(&models.Milestone{}).
		Joins("JOIN documents ON documents.id = milestones.document_id").
		Where("milestones.source_item_id = ? AND documents.status <> ?", itemID, models.DocumentStatusDraft).
		Count(&n).Error
	return n > 0, err
}

// Update applies patch unless the item is frozen.
func (s *CostItemService) Update(ctx context.Context, companyID, itemID uint, patch CostItemPatch) (*models.CostLineItem, error) {
	var item *models.CostLineItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if item, err = lockItem(tx, companyID, itemID); err != nil {
			return err
		}
		locked, err := frozen(tx, itemID)
		if err != nil {
			return fmt.Errorf("check cost item %d references: %w", itemID, err)
		}
		if locked {
			return conflictf("cost item %d is on a sent document", itemID)
		}

		patch.apply(item)
		if err := validateCostItem(item); err != nil {
			return err
		}
		return tx.Select("Name", "Description", "Quantity", "UnitCost", "Cost",
			"CustomerPrice", "MarkupPercent", "MinPrice", "MaxPrice").Save(item).Error
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("cost item updated", "company_id", companyID, "cost_item_id", itemID)
	return item, nil
}

// Delete removes the item. Milestones keep their snapshot and lose the link.
func (s *CostItemService) Delete(ctx context.Context, companyID, itemID uint) error {
	var detached int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockItem(tx, companyID, itemID); err != nil {
			return err
		}
		res := tx.Model(&models.Milestone{}).
			Where("source_item_id = ?", itemID).
			Update("source_item_id", nil)
		if res.Error != nil {
			return fmt.Errorf("detach milestones from cost item %d: %w", itemID, res.Error)
		}
		detached = res.RowsAffected
		return tx.Delete(&models.CostLineItem{}, itemID).Error
	})
	if err != nil {
		return err
	}
	s.logger.Info("cost item deleted", "company_id", companyID, "cost_item_id", itemID, "detached_milestones", detached)
	return nil
}
