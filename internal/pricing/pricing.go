// Package pricing turns internal costs into customer prices.
//
// Everything here is pure: no database, no clock, no I/O. Callers resolve the
// applicable markup and bounds with ResolveDefaults and then call Resolve.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidBounds is returned when a configured minimum exceeds the maximum.
var ErrInvalidBounds = errors.New("pricing: min price exceeds max price")

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Input carries everything needed to price a single line.
type Input struct {
	// Cost is the internal cost. A null cost prices as zero.
	Cost decimal.NullDecimal
	// FlatPrice, when set, is returned as-is.
	FlatPrice     decimal.NullDecimal
	MarkupPercent decimal.Decimal
	Min           decimal.NullDecimal
	Max           decimal.NullDecimal
}

// Resolve computes the customer price for in.
//
// A flat price wins outright. Otherwise the cost is marked up, rounded to
// cents and clamped into [Min, Max]. Negative markups are allowed.
func Resolve(in Input) (decimal.Decimal, error) {
	if in.FlatPrice.Valid {
		return in.FlatPrice.Decimal, nil
	}
	if in.Min.Valid && in.Max.Valid && in.Min.Decimal.GreaterThan(in.Max.Decimal) {
		return decimal.Zero, fmt.Errorf("%w: min %s > max %s", ErrInvalidBounds, in.Min.Decimal, in.Max.Decimal)
	}

	cost := decimal.Zero
	if in.Cost.Valid {
		cost = in.Cost.Decimal
	}
	price := MarkUp(cost, in.MarkupPercent)

	if in.Min.Valid && price.LessThan(in.Min.Decimal) {
		price = in.Min.Decimal
	}
	if in.Max.Valid && price.GreaterThan(in.Max.Decimal) {
		price = in.Max.Decimal
	}
	return price, nil
}

// MarkUp returns cost * (1 + percent/100) rounded to cents.
func MarkUp(cost, percent decimal.Decimal) decimal.Decimal {
	return cost.Mul(one.Add(percent.Div(hundred))).Round(2)
}

// Money builds a present NullDecimal from a string literal. It panics on bad
// input and is meant for constants and tests.
func Money(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}
