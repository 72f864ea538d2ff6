package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/diewo77/go-contracts/internal/metrics"
	"github.com/diewo77/go-contracts/internal/milestones"
	"github.com/diewo77/go-contracts/internal/models"
	"github.com/diewo77/go-contracts/internal/numbering"
	"github.com/diewo77/go-contracts/internal/validation"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DocumentView is a document as shown to the company and its customer.
// Milestones carry prices only.
type DocumentView struct {
	ID                 uint                       `json:"document_id"`
	ProjectID          uint                       `json:"project_id"`
	DocumentNumber     *int64                     `json:"document_number"`
	DisplayNumber      string                     `json:"display_number"`
	DocumentType       models.DocumentType        `json:"document_type"`
	Status             models.DocumentStatus      `json:"status"`
	CustomerName       string                     `json:"customer_name"`
	CustomerEmail      string                     `json:"customer_email"`
	Provider           string                     `json:"provider,omitempty"`
	ProviderDocumentID *string                    `json:"provider_document_id,omitempty"`
	CompanySignerAdded bool                       `json:"company_signer_added"`
	Total              decimal.Decimal            `json:"total"`
	SentAt             *time.Time                 `json:"sent_at,omitempty"`
	SignedAt           *time.Time                 `json:"signed_at,omitempty"`
	CompletedAt        *time.Time                 `json:"completed_at,omitempty"`
	Milestones         []models.CustomerMilestone `json:"milestones"`
}

func newDocumentView(doc *models.Document, ms []models.Milestone) *DocumentView {
	return &DocumentView{
		ID:                 doc.ID,
		ProjectID:          doc.ProjectID,
		DocumentNumber:     doc.DocumentNumber,
		DisplayNumber:      doc.DisplayNumber(),
		DocumentType:       doc.DocumentType,
		Status:             doc.Status,
		CustomerName:       doc.CustomerName,
		CustomerEmail:      doc.CustomerEmail,
		Provider:           doc.Provider,
		ProviderDocumentID: doc.ProviderDocumentID,
		CompanySignerAdded: doc.CompanySignerAdded,
		Total:              doc.Total,
		SentAt:             doc.SentAt,
		SignedAt:           doc.SignedAt,
		CompletedAt:        doc.CompletedAt,
		Milestones:         models.CustomerViews(ms),
	}
}

type DocumentService struct {
	db      *gorm.DB
	numbers *numbering.Allocator
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewDocumentService(db *gorm.DB, numbers *numbering.Allocator, logger *slog.Logger, m *metrics.Metrics) *DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentService{db: db, numbers: numbers, logger: logger, metrics: m}
}

// Generate assembles milestones for a project and persists them with a new
// numbered draft document. The number and the rows commit together.
func (s *DocumentService) Generate(ctx context.Context, companyID, projectID uint, docType models.DocumentType) (*DocumentView, error) {
	if !docType.Valid() {
		return nil, validation.Violations{"document_type": "invalid"}.Err()
	}
	db := s.db.WithContext(ctx)

	var company models.Company
	if err := db.First(&company, companyID).Error; err != nil {
		return nil, notFound(err, "company")
	}
	var project models.Project
	if err := db.Where("id = ? AND company_id = ?", projectID, companyID).First(&project).Error; err != nil {
		return nil, notFound(err, "project")
	}

	in := milestones.Input{DocumentType: docType, Company: &company, Project: &project}
	if docType == models.DocumentTypeChangeOrder {
		if err := db.Where("project_id = ? AND document_id IS NULL", projectID).
			Order("position, id").Find(&in.ChangeOrderItems).Error; err != nil {
			return nil, fmt.Errorf("load change order items: %w", err)
		}
	} else {
		if err := db.Where("project_id = ?", projectID).Order("id").Find(&in.CostItems).Error; err != nil {
			return nil, fmt.Errorf("load cost items: %w", err)
		}
	}

	assembled, err := milestones.Assemble(in)
	if err != nil {
		return nil, err
	}

	var doc *models.Document
	var saved []models.Milestone
	_, err = s.numbers.WithNumber(ctx, companyID, func(tx *gorm.DB, n int64) error {
		// Rebuilt on every attempt; a rolled back insert leaves IDs behind.
		doc = &models.Document{
			CompanyID:          companyID,
			ProjectID:          project.ID,
			DocumentNumber:     &n,
			DocumentType:       docType,
			Status:             models.DocumentStatusDraft,
			CustomerName:       project.CustomerName,
			CustomerEmail:      project.CustomerEmail,
			CompanySignerName:  company.SignerName,
			CompanySignerEmail: company.SignerEmail,
			Total:              models.SumPrices(assembled),
		}
		if err := tx.Create(doc).Error; err != nil {
			return err
		}

		saved = make([]models.Milestone, len(assembled))
		copy(saved, assembled)
		for i := range saved {
			saved[i].DocumentID = doc.ID
		}
		if len(saved) > 0 {
			if err := tx.Create(&saved).Error; err != nil {
				return err
			}
		}

		if len(in.ChangeOrderItems) > 0 {
			ids := make([]uint, 0, len(in.ChangeOrderItems))
			for _, item := range in.ChangeOrderItems {
				ids = append(ids, item.ID)
			}
			res := tx.Model(&models.ChangeOrderItem{}).
				Where("id IN ? AND document_id IS NULL", ids).
				Update("document_id", doc.ID)
			if res.Error != nil {
				return res.Error
			}
			if int(res.RowsAffected) != len(ids) {
				return conflictf("change order items were consumed by another document")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.DocumentGenerated(string(docType))
	s.logger.Info("document generated",
		"company_id", companyID, "project_id", projectID, "document_id", doc.ID,
		"document_number", doc.DisplayNumber(), "milestones", len(saved), "total", doc.Total.StringFixed(2))
	return newDocumentView(doc, saved), nil
}

// Get returns a document of companyID with its milestones in order.
func (s *DocumentService) Get(ctx context.Context, companyID, documentID uint) (*DocumentView, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).
		Preload("Milestones", func(tx *gorm.DB) *gorm.DB { return tx.Order("sort_order") }).
		Where("id = ? AND company_id = ?", documentID, companyID).
		First(&doc).Error
	if err != nil {
		return nil, notFound(err, "document")
	}
	return newDocumentView(&doc, doc.Milestones), nil
}
