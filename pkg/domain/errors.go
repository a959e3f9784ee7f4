package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by a service wraps exactly one of these,
// and the HTTP layer maps the kind to a status code.
var (
	ErrValidation       = errors.New("validation failed")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrExternalProvider = errors.New("payment provider request failed")
)

// Not found errors. A record owned by another agency reports the same error
// as a record that does not exist.
var (
	ErrAgencyNotFound       = fmt.Errorf("agency %w", ErrNotFound)
	ErrUserNotFound         = fmt.Errorf("user %w", ErrNotFound)
	ErrMembershipNotFound   = fmt.Errorf("membership %w", ErrNotFound)
	ErrConsultationNotFound = fmt.Errorf("consultation %w", ErrNotFound)
	ErrPackageNotFound      = fmt.Errorf("package %w", ErrNotFound)
	ErrInvoiceNotFound      = fmt.Errorf("invoice %w", ErrNotFound)
)

// State errors
var (
	ErrAgencyReadOnly           = fmt.Errorf("%w: agency is scheduled for deletion and no longer accepts changes", ErrConflict)
	ErrDeletionAlreadyScheduled = fmt.Errorf("%w: deletion is already scheduled", ErrConflict)
	ErrDeletionNotScheduled     = fmt.Errorf("%w: deletion is not scheduled", ErrConflict)
	ErrGracePeriodElapsed       = fmt.Errorf("%w: grace period has elapsed", ErrConflict)
	ErrDeletionNotDue           = fmt.Errorf("%w: deletion grace period has not elapsed", ErrConflict)
	ErrAgencyAlreadyDeleted     = fmt.Errorf("%w: agency already deleted", ErrConflict)
	ErrSlugTaken                = fmt.Errorf("%w: slug already in use", ErrConflict)
	ErrSlugExhausted            = fmt.Errorf("%w: could not find a free slug", ErrConflict)
	ErrInvoiceNotPayable        = fmt.Errorf("%w: payment links can only be created for sent, viewed or overdue invoices", ErrConflict)
	ErrInvoiceNotEditable       = fmt.Errorf("%w: invoice can no longer be changed", ErrConflict)
	ErrPaymentsNotEnabled       = fmt.Errorf("%w: payments are not enabled for this agency", ErrConflict)
	ErrNoPaymentAccount         = fmt.Errorf("%w: no payment account connected", ErrConflict)
	ErrPaymentAccountTaken      = fmt.Errorf("%w: payment account is connected to another agency", ErrConflict)
	ErrLastOwner                = fmt.Errorf("%w: an agency must keep at least one owner", ErrConflict)
)

// ErrConfirmationMismatch is returned when the deletion confirmation phrase is wrong.
var ErrConfirmationMismatch = &ValidationError{Field: "confirmation", Message: "confirmation phrase does not match"}

// ValidationError describes one invalid input field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Is reports ValidationError as a validation kind error.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ValidationErrors groups the field errors of one payload.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, fe := range e {
		msgs = append(msgs, fe.Error())
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Is reports ValidationErrors as a validation kind error.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a single-field validation error.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ErrConcurrentUpdate is returned when a compare-and-set update lost a race.
var ErrConcurrentUpdate = fmt.Errorf("%w: record was changed concurrently", ErrConflict)
