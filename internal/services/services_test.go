package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/diewo77/go-contracts/internal/metrics"
	"github.com/diewo77/go-contracts/internal/models"
	"github.com/diewo77/go-contracts/internal/numbering"
	"github.com/diewo77/go-contracts/internal/pricing"
	"github.com/diewo77/go-contracts/internal/signing/provider"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

type fixture struct {
	company *models.Company
	project *models.Project
	items   []models.CostLineItem
}

// seed creates a company with every milestone enabled and a project with one
// cost item per category.
func seed(t *testing.T, db *gorm.DB) fixture {
	t.Helper()
	c := &models.Company{
		Name:                          "Acme Builders",
		SignerName:                    "Bob Owner",
		SignerEmail:                   "bob@acme.test",
		DefaultMarkupPercent:          pricing.Money("10"),
		AutoIncludeInitialFee:         true,
		AutoIncludeSubcontractorFees:  true,
		AutoIncludeEquipmentMaterials: true,
		AutoIncludeAdditionalExpenses: true,
		InitialFee:                    pricing.Money("500"),
		FinalInspectionFee:            pricing.Money("250"),
		NextDocumentNumber:            1,
	}
	c.SetCategoryDefaults(pricing.CategorySubcontractorFee, pricing.Override{MarkupPercent: pricing.Money("30")})
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("seed company: %v", err)
	}

	p := &models.Project{
		CompanyID:     c.ID,
		Name:          "Kitchen remodel",
		CustomerName:  "Jane Customer",
		CustomerEmail: "jane@example.com",
		Status:        models.ProjectStatusActive,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}

	items := []models.CostLineItem{
		{ProjectID: p.ID, Category: pricing.CategorySubcontractorFee, Name: "Electrical", Cost: pricing.Money("1000")},
		{ProjectID: p.ID, Category: pricing.CategorySubcontractorFee, Name: "Plumbing", Cost: pricing.Money("400"), CustomerPrice: pricing.Money("450")},
		{ProjectID: p.ID, Category: pricing.CategoryEquipment, Name: "Lift", Cost: pricing.Money("200")},
		{ProjectID: p.ID, Category: pricing.CategoryMaterials, Name: "Drywall", Cost: pricing.Money("100")},
		{ProjectID: p.ID, Category: pricing.CategoryAdditionalExpense, Name: "Permit", Cost: pricing.Money("50")},
	}
	if err := db.Create(&items).Error; err != nil {
		t.Fatalf("seed cost items: %v", err)
	}
	return fixture{company: c, project: p, items: items}
}

func newDocumentService(db *gorm.DB, m *metrics.Metrics) *DocumentService {
	alloc := numbering.New(db, numbering.WithLogger(discardLogger()), numbering.WithBackoff(0), numbering.WithMetrics(m))
	return NewDocumentService(db, alloc, discardLogger(), m)
}

func generate(t *testing.T, db *gorm.DB, f fixture, docType models.DocumentType) *DocumentView {
	t.Helper()
	view, err := newDocumentService(db, nil).Generate(context.Background(), f.company.ID, f.project.ID, docType)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	return view
}

// fakeProvider records calls and returns canned answers.
type fakeProvider struct {
	mu       sync.Mutex
	kind     provider.Kind
	topology provider.Topology

	createErr error
	addErr    error
	status    string

	requests []provider.SigningRequest
	added    []provider.Signer
}

func newFakeProvider(topology provider.Topology) *fakeProvider {
	return &fakeProvider{kind: provider.KindSignWell, topology: topology}
}

func (f *fakeProvider) Kind() provider.Kind         { return f.kind }
func (f *fakeProvider) Topology() provider.Topology { return f.topology }

func (f *fakeProvider) CreateSigningRequest(_ context.Context, req provider.SigningRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.requests = append(f.requests, req)
	return fmt.Sprintf("prov-%d", req.DocumentID), nil
}

func (f *fakeProvider) AddSigner(_ context.Context, _ string, s provider.Signer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, s)
	return nil
}

func (f *fakeProvider) GetStatus(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == "" {
		return "", errors.New("no status")
	}
	return f.status, nil
}

func (f *fakeProvider) addedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.added)
}
