package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates an invalid state transition or duplicate.
	ErrConflict = errors.New("conflict")
	// ErrInsufficientStock is the business rule failure of a sale batch.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ValidationError carries per-field messages. It unwraps to ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StockShortage describes one product that cannot satisfy a sale.
type StockShortage struct {
	ProductID int64 `json:"product_id"`
	Available int64 `json:"available"`
	Requested int64 `json:"requested"`
	Missing   bool  `json:"missing,omitempty"`
}

func (s StockShortage) String() string {
	if s.Missing {
		return fmt.Sprintf("product %d not found", s.ProductID)
	}
	return fmt.Sprintf("insufficient stock for product %d: available %d, requested %d", s.ProductID, s.Available, s.Requested)
}

// InsufficientStockError lists every product of a batch that failed the
// pre-flight check. It unwraps to ErrInsufficientStock.
type InsufficientStockError struct {
	Shortages []StockShortage
}

func (e *InsufficientStockError) Error() string {
	msgs := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		msgs = append(msgs, s.String())
	}
	return ErrInsufficientStock.Error() + ": " + strings.Join(msgs, "; ")
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// UserSafeMessage returns a message that can be shown to API clients.
func UserSafeMessage(err error) string {
	var verr *ValidationError
	var serr *InsufficientStockError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr), errors.As(err, &serr):
		return err.Error()
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict):
		return err.Error()
	default:
		return "internal error"
	}
}
