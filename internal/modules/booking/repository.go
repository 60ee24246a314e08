// README: Reservation store contract shared by the Postgres and in-memory stores.
package booking

import (
	"context"

	"rental/internal/modules/availability"
	"rental/internal/types"
)

// Repository persists bookings. Create and Transition are atomic per vehicle:
// no other Create or Transition for the same vehicle interleaves with them.
type Repository interface {
	// Create checks b's range against the vehicle's active bookings and inserts
	// it together with ev. A known idempotency key for the same user, vehicle and
	// range returns the stored booking with replayed=true. Returns
	// AvailabilityConflictError, ConflictError, ErrDuplicateConfirmation or
	// ErrPaymentInUse when b.PaymentID already backs an active booking.
	Create(ctx context.Context, b *Booking, ev Event) (stored *Booking, replayed bool, err error)

	// Transition stores b (new status and cancellation record) if the persisted
	// row is still at status from and version. Returns ErrVersionConflict otherwise.
	// Cancelling releases the booking's payment id.
	Transition(ctx context.Context, b *Booking, from Status, version int, ev Event) error

	Get(ctx context.Context, id types.ID) (*Booking, error)

	// ByPayment returns the non-cancelled booking holding paymentID, or ErrNotFound.
	ByPayment(ctx context.Context, paymentID string) (*Booking, error)
	List(ctx context.Context, f ListFilter) ([]*Booking, error)

	// Ranges returns the vehicle's non-cancelled ranges ordered by start.
	Ranges(ctx context.Context, vehicleID types.ID) ([]availability.Range, error)

	Events(ctx context.Context, bookingID types.ID) ([]Event, error)
}

func (f ListFilter) match(b *Booking) bool {
	if f.UserID != "" && b.UserID != f.UserID {
		return false
	}
	if f.VehicleID != "" && b.VehicleID != f.VehicleID {
		return false
	}
	if !f.From.IsZero() && !b.EndDate.After(f.From) {
		return false
	}
	if !f.To.IsZero() && !b.StartDate.Before(f.To) {
		return false
	}
	return true
}

// sameRequest reports whether b repeats the request that created stored.
func sameRequest(stored, b *Booking) bool {
	return stored.UserID == b.UserID &&
		stored.VehicleID == b.VehicleID &&
		stored.StartDate.Equal(b.StartDate) &&
		stored.EndDate.Equal(b.EndDate)
}
