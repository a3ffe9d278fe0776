// Package apperr provides the typed failures returned by the fulfillment core.
//
// Every core operation returns either a result or an *Error whose Code tells the
// caller which class of failure occurred. Callers match with errors.Is against
// the sentinel values below, or read the code with CodeOf.
package apperr

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Validation errors: rejected before any mutation.
	CodeValidation             Code = "VALIDATION"
	CodeInvalidAmount          Code = "INVALID_AMOUNT"
	CodeMissingRejectionReason Code = "MISSING_REJECTION_REASON"

	// Lookup errors.
	CodeNotFound Code = "NOT_FOUND"

	// State conflicts: entity unchanged.
	CodeAlreadyReviewed   Code = "ALREADY_REVIEWED"
	CodeAlreadyFinalized  Code = "ALREADY_FINALIZED"
	CodeAlreadyInvoiced   Code = "ALREADY_INVOICED"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeConflict          Code = "CONFLICT"

	// Resource exhaustion: no partial effect.
	CodeEmptyCart               Code = "EMPTY_CART"
	CodeInsufficientStock       Code = "INSUFFICIENT_STOCK"
	CodePrescriptionNotApproved Code = "PRESCRIPTION_NOT_APPROVED"

	// Integrity errors.
	CodeDuplicateInvoiceNumber Code = "DUPLICATE_INVOICE_NUMBER"
	CodeInvariantViolation     Code = "INVARIANT_VIOLATION"

	// Access errors.
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeForbidden       Code = "FORBIDDEN"
)

// Error is the core's failure type.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message
	Metadata map[string]string // Identifiers involved in the failure
	Cause    error             // Wrapped underlying error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is.
var (
	ErrValidation              = &Error{Code: CodeValidation}
	ErrInvalidAmount           = &Error{Code: CodeInvalidAmount}
	ErrMissingRejectionReason  = &Error{Code: CodeMissingRejectionReason}
	ErrNotFound                = &Error{Code: CodeNotFound}
	ErrAlreadyReviewed         = &Error{Code: CodeAlreadyReviewed}
	ErrAlreadyFinalized        = &Error{Code: CodeAlreadyFinalized}
	ErrAlreadyInvoiced         = &Error{Code: CodeAlreadyInvoiced}
	ErrInvalidTransition       = &Error{Code: CodeInvalidTransition}
	ErrConflict                = &Error{Code: CodeConflict}
	ErrEmptyCart               = &Error{Code: CodeEmptyCart}
	ErrInsufficientStock       = &Error{Code: CodeInsufficientStock}
	ErrPrescriptionNotApproved = &Error{Code: CodePrescriptionNotApproved}
	ErrDuplicateInvoiceNumber  = &Error{Code: CodeDuplicateInvoiceNumber}
	ErrInvariantViolation      = &Error{Code: CodeInvariantViolation}
	ErrUnauthenticated         = &Error{Code: CodeUnauthenticated}
	ErrForbidden               = &Error{Code: CodeForbidden}
)

// New creates an error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithMetadata creates an error carrying identifiers for the caller.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates an error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// MetadataOf returns the metadata of the first *Error in err's chain.
func MetadataOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Metadata
	}
	return nil
}
