/*
errors.go - Error taxonomy for the canteen workflows

ERROR CATEGORIES:
  1. Input errors    - ValidationError (nothing was attempted)
  2. Lookup errors   - NotFoundError
  3. Business errors - LimitExceededError, InsufficientFundsError,
                       AlreadyCancelledError, DuplicateCodeError
  4. Store errors    - PersistenceError (includes commit failures and
                       ErrConcurrentModification)

Every structured error unwraps to a sentinel so callers can branch with
errors.Is. Error() returns the message shown to canteen staff, in the
language of the point-of-sale UI.

SEE ALSO:
  - api/errors.go: sentinel -> HTTP status mapping
*/
package canteen

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrLimitExceeded     = errors.New("spending limit exceeded")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadyCancelled  = errors.New("sale already cancelled")
	ErrDuplicateCode     = errors.New("duplicate student code")
	ErrPersistence       = errors.New("persistence failure")

	// ErrConcurrentModification is returned by a store when a balance update
	// finds the student's version changed since it was read.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

type NotFoundError struct {
	Kind string // "aluno", "venda", "produto"
	ID   string
}

func (e *NotFoundError) Error() string {
	switch e.Kind {
	case KindStudent:
		return "Aluno não encontrado."
	case KindSale:
		return "Venda não encontrada."
	case KindProduct:
		return fmt.Sprintf("Produto %s não encontrado.", e.ID)
	}
	return fmt.Sprintf("%s %s não encontrado.", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

const (
	KindStudent = "aluno"
	KindSale    = "venda"
	KindProduct = "produto"
)

// LimitWindow names the spending ceiling that was hit.
type LimitWindow string

const (
	LimitDaily   LimitWindow = "daily"
	LimitMonthly LimitWindow = "monthly"
)

// LimitExceededError reports a sale that would push spending in a window
// past the student's ceiling.
type LimitExceededError struct {
	Window      LimitWindow
	StudentName string
	Limit       decimal.Decimal
	Spent       decimal.Decimal
	Requested   decimal.Decimal
}

func (e *LimitExceededError) Error() string {
	label, period := "diário", "hoje"
	if e.Window == LimitMonthly {
		label, period = "mensal", "mês"
	}
	return fmt.Sprintf("Limite %s de %s excedido. Venda de %s R$ + %s R$ (%s) > %s R$.",
		label, e.StudentName, e.Requested.StringFixed(2), e.Spent.StringFixed(2), period, e.Limit.StringFixed(2))
}

func (e *LimitExceededError) Unwrap() error { return ErrLimitExceeded }

type InsufficientFundsError struct {
	StudentName string
	Balance     decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("Aluno %s não possui saldo suficiente e não permite fiado.", e.StudentName)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

type AlreadyCancelledError struct {
	SaleID string
}

func (e *AlreadyCancelledError) Error() string { return "Esta venda já está cancelada." }
func (e *AlreadyCancelledError) Unwrap() error { return ErrAlreadyCancelled }

type DuplicateCodeError struct {
	Code string
}

func (e *DuplicateCodeError) Error() string { return "Já existe um aluno com este código (RA)." }
func (e *DuplicateCodeError) Unwrap() error { return ErrDuplicateCode }

// PersistenceError wraps a store failure with the operation that hit it.
// It matches both ErrPersistence and the underlying cause.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// wrapStore passes domain errors through untouched and wraps anything else
// as a PersistenceError.
func wrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsDomainError reports whether err belongs to the canteen taxonomy other
// than PersistenceError.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		IsBusinessError(err) ||
		errors.Is(err, ErrDuplicateCode)
}

// IsBusinessError reports rule rejections: limits, funds, double cancel.
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrLimitExceeded) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrAlreadyCancelled)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Code returns a stable machine-readable code for err.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrLimitExceeded):
		return "limit_exceeded"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrAlreadyCancelled):
		return "already_cancelled"
	case errors.Is(err, ErrDuplicateCode):
		return "duplicate_code"
	case errors.Is(err, ErrConcurrentModification):
		return "concurrent_modification"
	default:
		return "persistence_error"
	}
}
