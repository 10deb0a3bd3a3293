package domain

import (
	"errors"
	"fmt"
)

// Application errors
var (
	// ErrNotFound record not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate duplicate record
	ErrDuplicate = errors.New("duplicate record")

	// ErrInvalidInput bad input data
	ErrInvalidInput = errors.New("invalid input data")

	// ErrInvalidPlan unknown plan identifier
	ErrInvalidPlan = errors.New("invalid plan")

	// ErrUnauthorized caller not permitted to act on this resource
	ErrUnauthorized = errors.New("unauthorized")

	// ErrWebhookValidationFailed webhook signature/token check failed
	ErrWebhookValidationFailed = errors.New("webhook validation failed")

	// ErrCheckoutFailed the payment processor rejected or never
	// acknowledged the checkout session
	ErrCheckoutFailed = errors.New("checkout creation failed")

	// ErrInvalidEmailType unknown transactional email type
	ErrInvalidEmailType = errors.New("invalid email type")

	// ErrExternalServiceUnavailable external service unreachable
	ErrExternalServiceUnavailable = errors.New("external service unavailable")

	// ErrInternal internal error
	ErrInternal = errors.New("internal error")
)

// CouponError is the typed rejection returned by coupon validation.
type CouponError struct {
	Code   string
	Reason CouponRejectionReason
}

// Error implements the error interface
func (e *CouponError) Error() string {
	return fmt.Sprintf("coupon %q rejected: %s", e.Code, e.Reason)
}

// NewCouponError creates a coupon rejection error
func NewCouponError(code string, reason CouponRejectionReason) *CouponError {
	return &CouponError{Code: code, Reason: reason}
}

// StateConflictError is returned when a subscription transition is
// attempted from a state that does not allow it.
type StateConflictError struct {
	TenantID string
	From     TenantStatus
	To       TenantStatus
	Message  string
}

// Error implements the error interface
func (e *StateConflictError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("state conflict for tenant %s: %s", e.TenantID, e.Message)
	}
	return fmt.Sprintf("state conflict for tenant %s: cannot transition %s -> %s", e.TenantID, e.From, e.To)
}

// NewStateConflictError creates a state conflict error
func NewStateConflictError(tenantID string, from, to TenantStatus) *StateConflictError {
	return &StateConflictError{TenantID: tenantID, From: from, To: to}
}

// ExternalServiceError wraps a failure from the payment processor or
// the email API.
type ExternalServiceError struct {
	Service     string
	Code        string
	Message     string
	StatusCode  int
	OriginalErr error
}

// Error implements the error interface
func (e *ExternalServiceError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("%s service error [%s]: %s: %v", e.Service, e.Code, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("%s service error [%s]: %s", e.Service, e.Code, e.Message)
}

// Unwrap returns the original error
func (e *ExternalServiceError) Unwrap() error {
	return e.OriginalErr
}

// Is matches the generic unavailability sentinel
func (e *ExternalServiceError) Is(target error) bool {
	return target == ErrExternalServiceUnavailable
}

// NewExternalServiceError creates an external service error
func NewExternalServiceError(service, code, message string, statusCode int, err error) *ExternalServiceError {
	return &ExternalServiceError{
		Service:     service,
		Code:        code,
		Message:     message,
		StatusCode:  statusCode,
		OriginalErr: err,
	}
}

// NotFoundError carries the entity and id that were not found.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Entity, e.ID)
}

// Is matches the ErrNotFound sentinel
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a not-found error
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// ValidationError is a single field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a set of validation failures.
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return "validation failed"
	case 1:
		return fmt.Sprintf("validation failed: %s - %s", e[0].Field, e[0].Message)
	default:
		return fmt.Sprintf("validation failed: %d errors", len(e))
	}
}

// Add appends a validation failure
func (e *ValidationErrors) Add(field, message string) {
	*e = append(*e, ValidationError{Field: field, Message: message})
}

// HasErrors reports whether any failure was recorded
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}
