// Package validation collects field-level violations.
package validation

import (
	"fmt"
	"net/mail"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Err returns nil when there are no violations, an *Error otherwise.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return &Error{Violations: v}
}

// Error wraps violations so they can travel through error returns.
type Error struct {
	Violations Violations
}

func (e *Error) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for f, code := range e.Violations {
		fields = append(fields, f+"="+code)
	}
	sort.Strings(fields)
	return fmt.Sprintf("validation failed: %s", strings.Join(fields, ", "))
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func Email(field, value string, v Violations) {
	value = strings.TrimSpace(value)
	if value == "" {
		v[field] = "required"
		return
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		v[field] = "invalid_email"
	}
}

func NonNegative(field string, val decimal.NullDecimal, v Violations) {
	if val.Valid && val.Decimal.IsNegative() {
		v[field] = "must_not_be_negative"
	}
}

// Range checks lo <= val <= hi when val is present.
func Range(field string, val decimal.NullDecimal, lo, hi decimal.Decimal, v Violations) {
	if val.Valid && (val.Decimal.LessThan(lo) || val.Decimal.GreaterThan(hi)) {
		v[field] = "out_of_range"
	}
}

// MinMax flags minField when both bounds are present and min > max.
func MinMax(minField string, min, max decimal.NullDecimal, v Violations) {
	if min.Valid && max.Valid && min.Decimal.GreaterThan(max.Decimal) {
		v[minField] = "exceeds_max"
	}
}
