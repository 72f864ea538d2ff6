// Package services holds the engine's use cases. Each service owns its
// transactions; handlers only translate HTTP to calls and errors to status
// codes.
package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNotFound covers missing rows and rows owned by another company.
	ErrNotFound = errors.New("not found")
	// ErrConflict means the row is in a state that forbids the operation.
	ErrConflict = errors.New("conflict")
)

func conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// notFound maps gorm's not-found error to ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("load %s: %w", what, err)
}
