package domain

import (
	"errors"
	"fmt"
)

// Application error codes
const (
	EINVALID     = "invalid"           // Invalid input or validation failure
	ENOTFOUND    = "not_found"         // Resource not found
	EQUOTA       = "quota_exhausted"   // No requests left for the model
	EUNSUPPORTED = "unsupported_model" // Model class is not routable
	EUPSTREAM    = "upstream"          // Collaborator call failed
	EPAYMENT     = "payment_mismatch"  // Payment does not match a pending selection
	ECONTENT     = "content_policy"    // Prompt rejected by the provider's safety system
	EINTERNAL    = "internal"          // Internal error
)

// Error represents an application error with structured information.
type Error struct {
	Code    string // Machine-readable error code
	Op      string // Operation that failed (e.g., "ledger.consume")
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode returns the code of the root error, or EINTERNAL if none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// Convenience constructors for common error types

// QuotaExhausted creates the user-visible out-of-requests error.
func QuotaExhausted(op string, model Model) *Error {
	return &Error{
		Code:    EQUOTA,
		Op:      op,
		Message: fmt.Sprintf("no requests left for model %s", model),
	}
}

// UnsupportedModel flags a model class the dispatcher cannot route. This is
// a programmer error once input validation has run.
func UnsupportedModel(op string, model Model) *Error {
	return &Error{
		Code:    EUNSUPPORTED,
		Op:      op,
		Message: fmt.Sprintf("model %q is not routable", model),
	}
}

// Upstream wraps a failed collaborator call. Quota for the request has
// already been consumed by the time this is produced.
func Upstream(err error, op string) *Error {
	return &Error{
		Code:    EUPSTREAM,
		Op:      op,
		Message: "upstream call failed",
		Err:     err,
	}
}

// PaymentMismatch rejects a payment event that does not match the recorded
// pending tier selection. No state change is made.
func PaymentMismatch(op string, got, pending Tier) *Error {
	return &Error{
		Code:    EPAYMENT,
		Op:      op,
		Message: fmt.Sprintf("payment for tier %q does not match pending selection %q", got, pending),
	}
}

// ContentPolicy marks a prompt the image provider refused on safety grounds.
func ContentPolicy(err error, op string) *Error {
	return &Error{
		Code:    ECONTENT,
		Op:      op,
		Message: "prompt rejected by the provider's safety system",
		Err:     err,
	}
}

// NotFound creates a not found error.
func NotFound(op string, id int64) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("account %d not found", id),
	}
}

// Invalid creates a validation error.
func Invalid(op, message string) *Error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Internal creates an internal error, wrapping the underlying error.
func Internal(err error, op, message string) *Error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}
