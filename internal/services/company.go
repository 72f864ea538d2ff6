package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/diewo77/go-contracts/internal/models"
	"github.com/diewo77/go-contracts/internal/pricing"
	"github.com/diewo77/go-contracts/internal/validation"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Negative markup is a discount; below -100% the price would go negative.
var (
	minMarkupPercent = decimal.NewFromInt(-100)
	maxMarkupPercent = decimal.NewFromInt(1000)
)

// CategorySettings are the defaults of one cost category.
type CategorySettings struct {
	MarkupPercent decimal.NullDecimal `json:"markup_percent"`
	Min           decimal.NullDecimal `json:"min"`
	Max           decimal.NullDecimal `json:"max"`
}

// PricingSettings replaces a company's pricing configuration as a whole.
type PricingSettings struct {
	DefaultMarkupPercent decimal.NullDecimal                   `json:"default_markup_percent"`
	Categories           map[pricing.Category]CategorySettings `json:"categories"`

	AutoIncludeInitialFee         bool `json:"auto_include_initial_fee"`
	AutoIncludeSubcontractorFees  bool `json:"auto_include_subcontractor_fees"`
	AutoIncludeEquipmentMaterials bool `json:"auto_include_equipment_materials"`
	AutoIncludeAdditionalExpenses bool `json:"auto_include_additional_expenses"`

	InitialFee            decimal.NullDecimal `json:"initial_fee"`
	FinalInspectionFee    decimal.NullDecimal `json:"final_inspection_fee"`
	ChangeOrderInitialFee decimal.NullDecimal `json:"change_order_initial_fee"`

	SignerName  string `json:"signer_name"`
	SignerEmail string `json:"signer_email"`
}

// Validate returns a *validation.Error listing every bad field.
func (p PricingSettings) Validate() error {
	v := validation.Violations{}
	validateMarkup("default_markup_percent", p.DefaultMarkupPercent, v)
	for cat, cs := range p.Categories {
		prefix := "categories." + string(cat)
		if !cat.Valid() {
			v[prefix] = "unknown_category"
			continue
		}
		validateMarkup(prefix+".markup_percent", cs.MarkupPercent, v)
		validation.NonNegative(prefix+".min", cs.Min, v)
		validation.NonNegative(prefix+".max", cs.Max, v)
		validation.MinMax(prefix+".min", cs.Min, cs.Max, v)
	}
	validation.NonNegative("initial_fee", p.InitialFee, v)
	validation.NonNegative("final_inspection_fee", p.FinalInspectionFee, v)
	validation.NonNegative("change_order_initial_fee", p.ChangeOrderInitialFee, v)
	if p.SignerEmail != "" {
		validation.Email("signer_email", p.SignerEmail, v)
	}
	return v.Err()
}

func validateMarkup(field string, val decimal.NullDecimal, v validation.Violations) {
	validation.Range(field, val, minMarkupPercent, maxMarkupPercent, v)
}

// Columns written by UpdatePricing. next_document_number is not one of them.
var pricingColumns = []string{
	"SignerName", "SignerEmail", "DefaultMarkupPercent",
	"DefaultSubcontractorFeeMarkupPercent", "DefaultSubcontractorFeeMin", "DefaultSubcontractorFeeMax",
	"DefaultEquipmentMarkupPercent", "DefaultEquipmentMin", "DefaultEquipmentMax",
	"DefaultMaterialsMarkupPercent", "DefaultMaterialsMin", "DefaultMaterialsMax",
	"DefaultAdditionalExpenseMarkupPercent", "DefaultAdditionalExpenseMin", "DefaultAdditionalExpenseMax",
	"AutoIncludeInitialFee", "AutoIncludeSubcontractorFees", "AutoIncludeEquipmentMaterials", "AutoIncludeAdditionalExpenses",
	"InitialFee", "FinalInspectionFee", "ChangeOrderInitialFee",
}

type CompanyService struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewCompanyService(db *gorm.DB, logger *slog.Logger) *CompanyService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompanyService{db: db, logger: logger}
}

func (s *CompanyService) Get(ctx context.Context, companyID uint) (*models.Company, error) {
	var c models.Company
	if err := s.db.WithContext(ctx).First(&c, companyID).Error; err != nil {
		return nil, notFound(err, "company")
	}
	return &c, nil
}

// UpdatePricing validates and stores p. Existing documents keep their
// snapshotted prices.
func (s *CompanyService) UpdatePricing(ctx context.Context, companyID uint, p PricingSettings) (*models.Company, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	c, err := s.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}

	c.SignerName = p.SignerName
	c.SignerEmail = p.SignerEmail
	c.DefaultMarkupPercent = p.DefaultMarkupPercent
	for _, cat := range pricing.Categories {
		cs := p.Categories[cat]
		c.SetCategoryDefaults(cat, pricing.Override{MarkupPercent: cs.MarkupPercent, Min: cs.Min, Max: cs.Max})
	}
	c.AutoIncludeInitialFee = p.AutoIncludeInitialFee
	c.AutoIncludeSubcontractorFees = p.AutoIncludeSubcontractorFees
	c.AutoIncludeEquipmentMaterials = p.AutoIncludeEquipmentMaterials
	c.AutoIncludeAdditionalExpenses = p.AutoIncludeAdditionalExpenses
	c.InitialFee = p.InitialFee
	c.FinalInspectionFee = p.FinalInspectionFee
	c.ChangeOrderInitialFee = p.ChangeOrderInitialFee

	if err := s.db.WithContext(ctx).Model(c).Select(pricingColumns).Updates(c).Error; err != nil {
		return nil, fmt.Errorf("update company %d pricing: %w", companyID, err)
	}
	s.logger.Info("company pricing updated", "company_id", companyID)
	return c, nil
}

// SetNextDocumentNumber moves the counter forward to next. Lowering it would
// hand out numbers twice and is rejected.
func (s *CompanyService) SetNextDocumentNumber(ctx context.Context, companyID uint, next int64) (int64, error) {
	if next < 1 {
		return 0, validation.Violations{"next_document_number": "out_of_range"}.Err()
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Company
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "next_document_number").
			First(&c, companyID).Error
		if err != nil {
			return notFound(err, "company")
		}
		if next < c.NextDocumentNumber {
			return validation.Violations{"next_document_number": "must_not_decrease"}.Err()
		}
		if next == c.NextDocumentNumber {
			return nil
		}
		return tx.Model(&models.Company{}).Where("id = ?", companyID).
			Update("next_document_number", next).Error
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("document counter raised", "company_id", companyID, "next_document_number", next)
	return next, nil
}
