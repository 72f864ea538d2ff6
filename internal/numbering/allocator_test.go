package numbering

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/diewo77/go-contracts/internal/metrics"
	"github.com/diewo77/go-contracts/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus/testutil"
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
	// One connection serialises transactions the way the row lock does on Postgres.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedCompany(t *testing.T, db *gorm.DB, name string, next int64) *models.Company {
	t.Helper()
	c := &models.Company{Name: name, NextDocumentNumber: next}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("seed company: %v", err)
	}
	return c
}

func counter(t *testing.T, db *gorm.DB, id uint) int64 {
	t.Helper()
	var c models.Company
	if err := db.First(&c, id).Error; err != nil {
		t.Fatalf("reload company: %v", err)
	}
	return c.NextDocumentNumber
}

func TestAllocate_Sequential(t *testing.T) {
	db := setupTestDB(t)
	c := seedCompany(t, db, "Acme", 41)
	a := New(db)

	for _, want := range []int64{41, 42, 43} {
		got, err := a.Allocate(context.Background(), c.ID)
		if err != nil {
			t.Fatalf("Allocate() error = %v", err)
		}
		if got != want {
			t.Fatalf("Allocate() = %d, want %d", got, want)
		}
	}
	if got := counter(t, db, c.ID); got != 44 {
		t.Errorf("next_document_number = %d, want 44", got)
	}
}

func TestAllocate_DefaultStartsAtOne(t *testing.T) {
	db := setupTestDB(t)
	c := seedCompany(t, db, "Fresh", 0)
	got, err := New(db).Allocate(context.Background(), c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Errorf("first number = %d, want 1", got)
	}
}

func TestAllocate_CompaniesAreIndependent(t *testing.T) {
	db := setupTestDB(t)
	a := New(db)
	c1 := seedCompany(t, db, "One", 1)
	c2 := seedCompany(t, db, "Two", 100)

	n1, _ := a.Allocate(context.Background(), c1.ID)
	n2, _ := a.Allocate(context.Background(), c2.ID)
	n3, _ := a.Allocate(context.Background(), c1.ID)
	if n1 != 1 || n2 != 100 || n3 != 2 {
		t.Fatalf("got %d,%d,%d want 1,100,2", n1, n2, n3)
	}
}

func TestAllocate_ConcurrentNumbersAreUnique(t *testing.T) {
	db := setupTestDB(t)
	c := seedCompany(t, db, "Busy", 1)
	a := New(db)

	const workers = 25
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[int64]bool{}
		errs []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := a.Allocate(context.Background(), c.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if seen[n] {
				errs = append(errs, fmt.Errorf("duplicate number %d", n))
			}
			seen[n] = true
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("allocation errors: %v", errs)
	}
	for n := int64(1); n <= workers; n++ {
		if !seen[n] {
			t.Errorf("number %d was never handed out", n)
		}
	}
	if got := counter(t, db, c.ID); got != workers+1 {
		t.Errorf("next_document_number = %d, want %d", got, workers+1)
	}
}

func TestWithNumber_RollsBackWithCallerWork(t *testing.T) {
	db := setupTestDB(t)
	c := seedCompany(t, db, "Acme", 5)
	boom := errors.New("insert failed")

	_, err := New(db).WithNumber(context.Background(), c.ID, func(tx *gorm.DB, n int64) error {
		doc := models.Document{CompanyID: c.ID, ProjectID: 1, DocumentType: models.DocumentTypeContract, DocumentNumber: &n}
		if err := tx.Create(&doc).Error; err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected caller error, got %v", err)
	}
	if got := counter(t, db, c.ID); got != 5 {
		t.Errorf("counter advanced despite rollback: %d", got)
	}
	var docs int64
	db.Model(&models.Document{}).Count(&docs)
	if docs != 0 {
		t.Errorf("document persisted despite rollback")
	}
}

func TestWithNumber_RetriesConflicts(t *testing.T) {
	db := setupTestDB(t)
	c := seedCompany(t, db, "Acme", 1)
	m := metrics.New()
	a := New(db, WithBackoff(0), WithMetrics(m))

	calls := 0
	n, err := a.WithNumber(context.Background(), c.ID, func(tx *gorm.DB, n int64) error {
		calls++
		if calls == 1 {
			return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithNumber() error = %v", err)
	}
	if n != 1 {
		t.Errorf("number = %d, want 1 (first attempt rolled back)", n)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if got := testutil.ToFloat64(m.AllocationRetries); got != 1 {
		t.Errorf("retry counter = %v, want 1", got)
	}
}

func TestWithNumber_Exhausted(t *testing.T) {
	db := setupTestDB(t)
	c := seedCompany(t, db, "Acme", 1)
	a := New(db, WithBackoff(0), WithMaxAttempts(3))

	_, err := a.WithNumber(context.Background(), c.ID, func(tx *gorm.DB, n int64) error {
		return &pgconn.PgError{Code: "40P01"}
	})
	if !errors.Is(err, ErrAllocationExhausted) {
		t.Fatalf("expected ErrAllocationExhausted, got %v", err)
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		t.Error("exhaustion error should wrap the last conflict")
	}
}

func TestAllocate_UnknownCompany(t *testing.T) {
	db := setupTestDB(t)
	_, err := New(db).Allocate(context.Background(), 999)
	if !errors.Is(err, ErrCompanyNotFound) {
		t.Fatalf("expected ErrCompanyNotFound, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"serialization", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"lock timeout", &pgconn.PgError{Code: "55P03"}, true},
		{"unique", &pgconn.PgError{Code: "23505"}, true},
		{"not null", &pgconn.PgError{Code: "23502"}, false},
		{"gorm duplicate", gorm.ErrDuplicatedKey, true},
		{"sqlite locked", errors.New("database table is locked: companies"), true},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
