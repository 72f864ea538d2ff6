// Package numbering hands out per-company sequential document numbers.
//
// The counter lives on the company row. A number is taken by locking that
// row, reading next_document_number and writing it back incremented, all in
// the transaction that inserts the document. Aborted transactions may leave
// gaps; two committed documents never share a number.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/diewo77/go-contracts/internal/metrics"
	"github.com/diewo77/go-contracts/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrAllocationExhausted means every attempt hit a conflict. Callers
	// should report it as retryable.
	ErrAllocationExhausted = errors.New("numbering: allocation retries exhausted")
	ErrCompanyNotFound     = errors.New("numbering: company not found")
)

const (
	defaultMaxAttempts = 5
	defaultBackoff     = 20 * time.Millisecond
)

type Allocator struct {
	db          *gorm.DB
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Allocator)

func WithMaxAttempts(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// WithBackoff sets the base delay between attempts; it doubles per attempt.
func WithBackoff(d time.Duration) Option {
	return func(a *Allocator) { a.backoff = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Allocator) { a.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Allocator) { a.metrics = m }
}

func New(db *gorm.DB, opts ...Option) *Allocator {
	a := &Allocator{
		db:          db,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Allocate takes the next number for companyID in its own transaction.
func (a *Allocator) Allocate(ctx context.Context, companyID uint) (int64, error) {
	return a.WithNumber(ctx, companyID, nil)
}

// WithNumber takes the next number and runs fn with it in the same
// transaction, so the number and whatever fn writes commit together. The
// whole unit is retried on lock conflicts; fn must be safe to re-run.
func (a *Allocator) WithNumber(ctx context.Context, companyID uint, fn func(tx *gorm.DB, number int64) error) (int64, error) {
	var number int64
	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			n, err := Next(tx, companyID)
			if err != nil {
				return err
			}
			if fn != nil {
				if err := fn(tx, n); err != nil {
					return err
				}
			}
			number = n
			return nil
		})
		if err == nil {
			return number, nil
		}
		if !IsRetryable(err) {
			return 0, err
		}

		lastErr = err
		a.metrics.AllocationRetried()
		a.logger.Warn("document number conflict",
			"company_id", companyID, "attempt", attempt, "max_attempts", a.maxAttempts, "error", err)
		if attempt == a.maxAttempts {
			break
		}
		if err := sleep(ctx, a.delay(attempt)); err != nil {
			return 0, err
		}
	}
	return 0, fmt.Errorf("%w after %d attempts: %w", ErrAllocationExhausted, a.maxAttempts, lastErr)
}

func (a *Allocator) delay(attempt int) time.Duration {
	if a.backoff <= 0 {
		return 0
	}
	base := a.backoff << (attempt - 1)
	return base + rand.N(a.backoff)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Next locks the company row in tx and advances its counter, returning the
// number taken. It must run inside a transaction.
func Next(tx *gorm.DB, companyID uint) (int64, error) {
	var company models.Company
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "next_document_number").
		Where("id = ?", companyID).
		First(&company).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrCompanyNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lock company %d: %w", companyID, err)
	}

	n := company.NextDocumentNumber
	if n < 1 {
		n = 1
	}
	res := tx.Model(&models.Company{}).
		Where("id = ?", companyID).
		Update("next_document_number", n+1)
	if res.Error != nil {
		return 0, fmt.Errorf("advance counter for company %d: %w", companyID, res.Error)
	}
	return n, nil
}

// Retryable Postgres SQLSTATEs.
var retryableCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"23505": true, // unique_violation on (company_id, document_number)
}

// IsRetryable reports whether err is a transient lock or uniqueness conflict.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return retryableCodes[pgErr.Code]
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy")
}
