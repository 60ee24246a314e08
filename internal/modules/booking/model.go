// README: Booking aggregate, status definitions and create/cancel commands.
package booking

import (
	"encoding/json"
	"time"

	"rental/internal/modules/availability"
	"rental/internal/modules/pricing"
	"rental/internal/types"
)

type Status string

const (
	StatusNone      Status = "none"
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

type Booking struct {
	ID                 types.ID               `json:"id"`
	ConfirmationNumber string                 `json:"confirmationNumber"`
	VehicleID          types.ID               `json:"vehicleId"`
	UserID             types.ID               `json:"userId"`
	StartDate          time.Time              `json:"-"`
	EndDate            time.Time              `json:"-"`
	GuestCount         int                    `json:"guestCount"`
	PickupLocation     string                 `json:"pickupLocation"`
	ReturnLocation     string                 `json:"returnLocation"`
	AddonIDs           []string               `json:"addonIds"`
	InsurancePackageID *string                `json:"insurancePackageId,omitempty"`
	MileagePackageID   string                 `json:"mileagePackageId,omitempty"`
	TotalAmount        types.Cents            `json:"totalAmount"`
	PaymentStatus      PaymentStatus          `json:"paymentStatus"`
	PaymentID          string                 `json:"paymentId,omitempty"`
	Status             Status                 `json:"status"`
	StatusVersion      int                    `json:"statusVersion"`
	IdempotencyKey     string                 `json:"-"`
	Price              pricing.PriceBreakdown `json:"price"`
	CreatedAt          time.Time              `json:"createdAt"`
	UpdatedAt          time.Time              `json:"updatedAt"`
	Cancellation       *CancellationRecord    `json:"cancellation,omitempty"`
}

// CancellationRecord is set only on cancelled bookings; Fee + Refund equals
// the booking's TotalAmount.
type CancellationRecord struct {
	Reason string      `json:"cancellationReason"`
	Date   time.Time   `json:"cancellationDate"`
	Fee    types.Cents `json:"cancellationFee"`
	Refund types.Cents `json:"refundAmount"`
}

func (b *Booking) Range() availability.Range {
	return availability.Range{
		BookingID: b.ID,
		Start:     b.StartDate,
		End:       b.EndDate,
		Cancelled: b.Status == StatusCancelled,
	}
}

// Clone returns a deep copy so stores never hand out shared state.
func (b *Booking) Clone() *Booking {
	c := *b
	c.AddonIDs = append([]string(nil), b.AddonIDs...)
	c.Price.Addons = append([]pricing.LineItem(nil), b.Price.Addons...)
	if b.InsurancePackageID != nil {
		v := *b.InsurancePackageID
		c.InsurancePackageID = &v
	}
	if b.Price.Insurance != nil {
		v := *b.Price.Insurance
		c.Price.Insurance = &v
	}
	if b.Cancellation != nil {
		v := *b.Cancellation
		c.Cancellation = &v
	}
	return &c
}

// MarshalJSON renders the rental dates as YYYY-MM-DD.
func (b Booking) MarshalJSON() ([]byte, error) {
	type alias Booking
	return json.Marshal(struct {
		alias
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
	}{alias(b), types.FormatDate(b.StartDate), types.FormatDate(b.EndDate)})
}

type Event struct {
	ID         int64     `json:"id"`
	BookingID  types.ID  `json:"bookingId"`
	FromStatus Status    `json:"fromStatus"`
	ToStatus   Status    `json:"toStatus"`
	ActorType  string    `json:"actorType"`
	ActorID    *types.ID `json:"actorId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

const (
	ActorUser   = "user"
	ActorAdmin  = "admin"
	ActorSystem = "system"
)

// Actor is the caller of a lifecycle operation. System actors are internal
// callers such as payment confirmation.
type Actor struct {
	ID      types.ID
	IsAdmin bool
	System  bool
}

// SystemActor is used for transitions triggered by collaborators, not people.
var SystemActor = Actor{System: true}

func (a Actor) privileged() bool {
	return a.IsAdmin || a.System
}

func (a Actor) eventType() string {
	switch {
	case a.System:
		return ActorSystem
	case a.IsAdmin:
		return ActorAdmin
	default:
		return ActorUser
	}
}

// AllowedTransitions represents the booking state flow as code.
// Completed and cancelled are terminal.
var AllowedTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Driver struct {
	Name              string `json:"name" validate:"required"`
	Email             string `json:"email" validate:"required,email"`
	Phone             string `json:"phone" validate:"required"`
	LicenseNumber     string `json:"licenseNumber" validate:"required"`
	LicenseIssueDate  string `json:"licenseIssueDate" validate:"required"`
	LicenseExpiryDate string `json:"licenseExpiryDate" validate:"required"`
	DateOfBirth       string `json:"dateOfBirth" validate:"required"`
}

type Contact struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required"`
}

// CreateRequest is a booking request as submitted by the marketplace UI.
// Dates are YYYY-MM-DD.
type CreateRequest struct {
	VehicleID          types.ID      `json:"vehicleId" validate:"required"`
	UserID             types.ID      `json:"-"`
	StartDate          string        `json:"startDate" validate:"required"`
	EndDate            string        `json:"endDate" validate:"required"`
	GuestCount         int           `json:"guestCount"`
	PickupLocation     string        `json:"pickupLocation" validate:"required"`
	ReturnLocation     string        `json:"returnLocation" validate:"required"`
	AddonIDs           []string      `json:"addonIds"`
	InsurancePackageID string        `json:"insurancePackageId"`
	MileagePackageID   string        `json:"mileagePackageId"`
	PaymentStatus      PaymentStatus `json:"paymentStatus" validate:"omitempty,oneof=pending paid"`
	PaymentID          string        `json:"paymentId" validate:"required_if=PaymentStatus paid"`
	IdempotencyKey     string        `json:"idempotencyKey" validate:"omitempty,max=128"`
	Driver             Driver        `json:"driver"`
	EmergencyContact   Contact       `json:"emergencyContact"`
}

type CreateResult struct {
	Booking  *Booking
	Replayed bool
}

type CancelCommand struct {
	BookingID types.ID
	Reason    string
	Actor     Actor
}

type CancelResult struct {
	Booking         *Booking
	CancellationFee types.Cents
	RefundAmount    types.Cents
}

type UpdateStatusCommand struct {
	BookingID types.ID
	Status    Status
	// PaymentID marks the booking paid when confirming it.
	PaymentID string
	Actor     Actor
}

// ListFilter narrows a booking listing; zero fields match everything.
type ListFilter struct {
	UserID    types.ID
	VehicleID types.ID
	From      time.Time
	To        time.Time
}
