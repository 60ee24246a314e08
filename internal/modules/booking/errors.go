// README: Structured booking errors; callers branch on Kind, never on message text.
package booking

import (
	"errors"
	"fmt"
	"strings"

	"rental/internal/modules/availability"
	"rental/internal/types"
)

// Store-level signals.
var (
	ErrNotFound              = errors.New("booking not found")
	ErrVersionConflict       = errors.New("booking state conflict")
	ErrDuplicateConfirmation = errors.New("duplicate confirmation number")
	ErrPaymentInUse          = errors.New("payment already attached to an active booking")
)

type Kind string

const (
	KindValidation                 Kind = "validation"
	KindAvailabilityConflict       Kind = "availability_conflict"
	KindNotFound                   Kind = "not_found"
	KindAuthorization              Kind = "authorization"
	KindInvalidStateTransition     Kind = "invalid_state_transition"
	KindCancellationNotAllowed     Kind = "cancellation_not_allowed"
	KindConflict                   Kind = "conflict"
	KindPersistence                Kind = "persistence"
	KindCreationFailedAfterPayment Kind = "creation_failed_after_payment"
	KindInternal                   Kind = "internal"
)

// KindOf returns the kind of the outermost structured error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation error"
	}
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation error: " + strings.Join(parts, "; ")
}

func (e ValidationError) Kind() Kind { return KindValidation }

type AvailabilityConflictError struct {
	VehicleID   types.ID
	Conflicts   []availability.Range
	Suggestions []availability.Suggestion
}

func (e AvailabilityConflictError) Error() string {
	return fmt.Sprintf("vehicle %s is not available: %d conflicting booking(s)", e.VehicleID, len(e.Conflicts))
}

func (e AvailabilityConflictError) Kind() Kind { return KindAvailabilityConflict }

type NotFoundError struct {
	Resource string
	ID       types.ID
	Err      error
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e NotFoundError) Unwrap() error { return e.Err }
func (e NotFoundError) Kind() Kind    { return KindNotFound }

type AuthorizationError struct {
	ActorID   types.ID
	BookingID types.ID
}

func (e AuthorizationError) Error() string {
	return fmt.Sprintf("user %q may not modify booking %s", e.ActorID, e.BookingID)
}

func (e AuthorizationError) Kind() Kind { return KindAuthorization }

type InvalidStateTransitionError struct {
	From Status
	To   Status
}

func (e InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition %s -> %s", e.From, e.To)
}

func (e InvalidStateTransitionError) Kind() Kind { return KindInvalidStateTransition }

type CancellationNotAllowedError struct {
	Status Status
}

func (e CancellationNotAllowedError) Error() string {
	return fmt.Sprintf("booking is already %s and cannot be cancelled", e.Status)
}

func (e CancellationNotAllowedError) Kind() Kind { return KindCancellationNotAllowed }

// ConflictError covers a lost optimistic update and an idempotency key
// reused for a different request.
type ConflictError struct {
	Msg string
	Err error
}

func (e ConflictError) Error() string {
	if e.Msg == "" {
		return "conflict"
	}
	return e.Msg
}

func (e ConflictError) Unwrap() error { return e.Err }
func (e ConflictError) Kind() Kind    { return KindConflict }

type PersistenceError struct {
	Op  string
	Err error
}

func (e PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e PersistenceError) Unwrap() error { return e.Err }
func (e PersistenceError) Kind() Kind    { return KindPersistence }

// CreationFailedAfterPaymentError reports that the booking was not created
// although the payment was captured. RefundErr is nil when the refund went through.
type CreationFailedAfterPaymentError struct {
	PaymentID string
	Cause     error
	RefundErr error
}

func (e CreationFailedAfterPaymentError) Error() string {
	if e.RefundErr != nil {
		return fmt.Sprintf("booking creation failed after payment %s (refund failed: %v): %v", e.PaymentID, e.RefundErr, e.Cause)
	}
	return fmt.Sprintf("booking creation failed after payment %s, payment refunded: %v", e.PaymentID, e.Cause)
}

func (e CreationFailedAfterPaymentError) Unwrap() error { return e.Cause }
func (e CreationFailedAfterPaymentError) Kind() Kind    { return KindCreationFailedAfterPayment }

// Refunded reports whether the compensating refund succeeded.
func (e CreationFailedAfterPaymentError) Refunded() bool { return e.RefundErr == nil }
