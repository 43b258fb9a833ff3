package apperrors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrForbidden indicates the caller may not act on the requested resource.
var ErrForbidden = errors.New("forbidden")

// Ledger errors. These form the closed set callers of the ledger service can observe.
var (
	ErrAccountNotFound          = errors.New("account not found")
	ErrInsufficientCredits      = errors.New("insufficient credits")
	ErrResultingBalanceNegative = errors.New("adjustment would make the balance negative")
	ErrAlreadyRefunded          = errors.New("transaction already refunded")
	ErrConcurrencyConflict      = errors.New("concurrent update conflict")
	ErrStorageFailure           = errors.New("storage failure")
)

// InsufficientCreditsError carries the shortfall of a rejected debit.
// It matches ErrInsufficientCredits with errors.Is.
type InsufficientCreditsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %s, available %s", e.Required.String(), e.Available.String())
}

func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}

// AppError wraps an underlying error with a status-like code and a safe message.
type AppError struct {
	Code    int
	Message string
	Err     error
}

// NewAppError creates an AppError.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transient ledger failure worth another attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict) || errors.Is(err, ErrStorageFailure)
}
