// README: Booking lifecycle: create, cancel and status transitions over the reservation store.
package booking

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"rental/internal/metrics"
	"rental/internal/modules/availability"
	"rental/internal/modules/policy"
	"rental/internal/modules/pricing"
	"rental/internal/modules/vehicle"
	"rental/internal/types"
)

// maxConfirmationAttempts bounds retries on confirmation number collisions.
const maxConfirmationAttempts = 5

type Vehicles interface {
	Get(ctx context.Context, id types.ID) (vehicle.Vehicle, error)
	Search(ctx context.Context, q vehicle.Query) ([]vehicle.Vehicle, error)
}

type Pricer interface {
	QuoteVehicle(ctx context.Context, vehicleID types.ID, start, end time.Time, sel pricing.Selection) (pricing.PriceBreakdown, pricing.Plan, error)
	Plan(ctx context.Context, vehicleID types.ID) (pricing.Plan, error)
}

// RefundRequest asks the payment processor to reverse Amount of a capture.
type RefundRequest struct {
	PaymentID string
	Amount    types.Cents
	Reason    string
}

type PaymentGateway interface {
	Refund(ctx context.Context, req RefundRequest) error
}

// Notifier is told about every state change. Failures are logged only.
type Notifier interface {
	BookingChanged(ctx context.Context, b *Booking, ev Event) error
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithPayments(p PaymentGateway) Option {
	return func(s *Service) { s.payments = p }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithSuggestOptions(o availability.SuggestOptions) Option {
	return func(s *Service) { s.suggest = o }
}

type Service struct {
	repo      Repository
	vehicles  Vehicles
	pricing   Pricer
	payments  PaymentGateway
	notifier  Notifier
	now       func() time.Time
	suggest   availability.SuggestOptions
	validator *Validator
	confirm   *ConfirmationGenerator
}

func NewService(repo Repository, vehicles Vehicles, pricing Pricer, opts ...Option) *Service {
	s := &Service{repo: repo, vehicles: vehicles, pricing: pricing, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.validator = NewValidator(s.now)
	s.confirm = NewConfirmationGenerator(s.now)
	return s
}

// Create validates, prices and stores a booking. The availability check and
// the insert happen atomically in the store. When a request reporting a
// captured payment fails after it was priced, the payment is refunded for the
// quoted total and a CreationFailedAfterPaymentError is returned. A payment
// that already backs an active booking is never refunded here.
func (s *Service) Create(ctx context.Context, req CreateRequest) (CreateResult, error) {
	res, quoted, err := s.create(ctx, req)
	if err == nil {
		return res, nil
	}
	if req.PaymentStatus != PaymentPaid || req.PaymentID == "" {
		return CreateResult{}, err
	}

	held, herr := s.repo.ByPayment(ctx, req.PaymentID)
	switch {
	case herr == nil:
		if sameRequest(held, requestedBooking(req)) {
			// a retry of the request this payment already bought
			metrics.IncBookingReplayed()
			return CreateResult{Booking: held, Replayed: true}, nil
		}
		return CreateResult{}, err
	case !errors.Is(herr, ErrNotFound):
		log.Printf("look up payment %s after failed booking: %v; not refunding", req.PaymentID, herr)
		return CreateResult{}, err
	}

	var reused ConflictError
	if errors.As(err, &reused) || quoted <= 0 {
		// key reuse, or a failure before the request could be priced
		return CreateResult{}, err
	}
	return CreateResult{}, s.compensate(ctx, req, quoted, err)
}

// requestedBooking holds the identity fields of req for comparison with a stored booking.
func requestedBooking(req CreateRequest) *Booking {
	start, _ := types.ParseDate(strings.TrimSpace(req.StartDate))
	end, _ := types.ParseDate(strings.TrimSpace(req.EndDate))
	return &Booking{
		UserID:    req.UserID,
		VehicleID: types.ID(strings.TrimSpace(string(req.VehicleID))),
		StartDate: start,
		EndDate:   end,
	}
}

func (s *Service) create(ctx context.Context, req CreateRequest) (CreateResult, types.Cents, error) {
	req.VehicleID = types.ID(strings.TrimSpace(string(req.VehicleID)))

	capacity := 0
	if req.VehicleID != "" {
		v, err := s.vehicles.Get(ctx, req.VehicleID)
		if errors.Is(err, vehicle.ErrNotFound) {
			return CreateResult{}, 0, NotFoundError{Resource: "vehicle", ID: req.VehicleID, Err: err}
		}
		if err != nil {
			return CreateResult{}, 0, s.persistence("load vehicle", err)
		}
		capacity = v.Capacity
	}

	if err := s.validator.Validate(req, capacity).Err(); err != nil {
		return CreateResult{}, 0, err
	}
	start, _ := types.ParseDate(strings.TrimSpace(req.StartDate))
	end, _ := types.ParseDate(strings.TrimSpace(req.EndDate))

	sel := pricing.Selection{
		AddonIDs:           dedupe(req.AddonIDs),
		InsurancePackageID: req.InsurancePackageID,
		MileagePackageID:   req.MileagePackageID,
	}
	quote, _, err := s.pricing.QuoteVehicle(ctx, req.VehicleID, start, end, sel)
	if err != nil {
		return CreateResult{}, 0, s.quoteError(req.VehicleID, err)
	}

	now := s.now().UTC()
	b := &Booking{
		ID:               types.ID(uuid.NewString()),
		VehicleID:        req.VehicleID,
		UserID:           req.UserID,
		StartDate:        start,
		EndDate:          end,
		GuestCount:       req.GuestCount,
		PickupLocation:   strings.TrimSpace(req.PickupLocation),
		ReturnLocation:   strings.TrimSpace(req.ReturnLocation),
		AddonIDs:         sel.AddonIDs,
		MileagePackageID: req.MileagePackageID,
		TotalAmount:      quote.TotalPrice,
		PaymentStatus:    PaymentPending,
		PaymentID:        req.PaymentID,
		Status:           StatusPending,
		IdempotencyKey:   req.IdempotencyKey,
		Price:            quote,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if req.InsurancePackageID != "" {
		id := req.InsurancePackageID
		b.InsurancePackageID = &id
	}
	if req.PaymentStatus == PaymentPaid {
		b.PaymentStatus = PaymentPaid
		b.Status = StatusConfirmed
	}
	ev := Event{
		BookingID:  b.ID,
		FromStatus: StatusNone,
		ToStatus:   b.Status,
		ActorType:  ActorUser,
		ActorID:    &b.UserID,
		CreatedAt:  now,
	}

	for attempt := 1; ; attempt++ {
		b.ConfirmationNumber = s.confirm.Generate()
		stored, replayed, err := s.repo.Create(ctx, b, ev)
		if errors.Is(err, ErrDuplicateConfirmation) && attempt < maxConfirmationAttempts {
			continue
		}
		if err != nil {
			return CreateResult{}, quote.TotalPrice, s.createError(ctx, b, err)
		}
		if replayed {
			metrics.IncBookingReplayed()
			return CreateResult{Booking: stored, Replayed: true}, stored.TotalAmount, nil
		}
		metrics.IncBookingCreated(string(stored.Status))
		log.Printf("booking %s created for vehicle %s (%s to %s, %s, total %s)",
			stored.ID, stored.VehicleID, types.FormatDate(start), types.FormatDate(end), stored.Status, stored.TotalAmount)
		s.notify(ctx, stored, ev)
		return CreateResult{Booking: stored}, stored.TotalAmount, nil
	}
}

func (s *Service) createError(ctx context.Context, b *Booking, err error) error {
	var conflict AvailabilityConflictError
	switch {
	case errors.Is(err, ErrPaymentInUse):
		return ConflictError{Msg: "payment is already attached to another booking", Err: err}
	case errors.As(err, &conflict):
		metrics.IncBookingConflict()
		ranges, rerr := s.repo.Ranges(ctx, b.VehicleID)
		if rerr != nil {
			log.Printf("load ranges for suggestions on vehicle %s: %v", b.VehicleID, rerr)
			return conflict
		}
		conflict.Suggestions = availability.SuggestAlternatives(ranges, b.StartDate, b.EndDate, s.suggest)
		return conflict
	case KindOf(err) != KindInternal:
		return err
	default:
		return s.persistence("create booking", err)
	}
}

func (s *Service) quoteError(vehicleID types.ID, err error) error {
	switch {
	case errors.Is(err, pricing.ErrUnknownOption):
		return ValidationError{Errors: []FieldError{{Field: "selection", Message: err.Error()}}}
	case errors.Is(err, pricing.ErrInvalidRange):
		return ValidationError{Errors: []FieldError{{Field: "endDate", Message: "must be after startDate"}}}
	case errors.Is(err, pricing.ErrNoRateCard):
		return NotFoundError{Resource: "rate card", ID: vehicleID, Err: err}
	default:
		return s.persistence("quote vehicle", err)
	}
}

// compensate refunds a captured payment after a failed creation.
func (s *Service) compensate(ctx context.Context, req CreateRequest, amount types.Cents, cause error) error {
	out := CreationFailedAfterPaymentError{PaymentID: req.PaymentID, Cause: cause}
	if s.payments == nil {
		out.RefundErr = errors.New("no payment gateway configured")
	} else {
		// the refund must go out even if the caller went away
		rctx := context.WithoutCancel(ctx)
		out.RefundErr = s.payments.Refund(rctx, RefundRequest{
			PaymentID: req.PaymentID,
			Amount:    amount,
			Reason:    "booking creation failed: " + string(KindOf(cause)),
		})
	}
	if out.RefundErr != nil {
		metrics.IncCompensation("failed")
		log.Printf("refund of payment %s after failed booking on vehicle %s FAILED: %v (cause: %v)",
			req.PaymentID, req.VehicleID, out.RefundErr, cause)
	} else {
		metrics.IncCompensation("refunded")
		log.Printf("refunded payment %s after failed booking on vehicle %s: %v", req.PaymentID, req.VehicleID, cause)
	}
	return out
}

// Cancel cancels a booking on behalf of its owner or an admin and computes the
// fee from the vehicle's cancellation tiers.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (CancelResult, error) {
	b, err := s.load(ctx, cmd.BookingID)
	if err != nil {
		return CancelResult{}, err
	}
	if !cmd.Actor.privileged() && cmd.Actor.ID != b.UserID {
		return CancelResult{}, AuthorizationError{ActorID: cmd.Actor.ID, BookingID: b.ID}
	}
	if b.Status.Terminal() {
		return CancelResult{}, CancellationNotAllowedError{Status: b.Status}
	}

	plan, err := s.pricing.Plan(ctx, b.VehicleID)
	if errors.Is(err, pricing.ErrNoRateCard) {
		return CancelResult{}, NotFoundError{Resource: "rate card", ID: b.VehicleID, Err: err}
	}
	if err != nil {
		return CancelResult{}, s.persistence("load rate card", err)
	}

	now := s.now().UTC()
	daysUntilPickup := types.DaysCeil(now, b.StartDate)
	pct := policy.Evaluate(policy.Sorted(plan.RateCard.CancellationTiers), daysUntilPickup)
	fee, refund := policy.Split(b.TotalAmount, pct)

	next := b.Clone()
	next.Status = StatusCancelled
	next.UpdatedAt = now
	next.Cancellation = &CancellationRecord{
		Reason: strings.TrimSpace(cmd.Reason),
		Date:   now,
		Fee:    fee,
		Refund: refund,
	}
	if err := s.transition(ctx, b, next, cmd.Actor); err != nil {
		return CancelResult{}, err
	}
	log.Printf("booking %s cancelled %d day(s) before pickup: fee %s (%.0f%%), refund %s",
		b.ID, daysUntilPickup, fee, pct, refund)
	return CancelResult{Booking: next, CancellationFee: fee, RefundAmount: refund}, nil
}

// UpdateStatus moves a booking along the transition graph. It is reserved for
// admins and the system (payment confirmation). Cancellation goes through
// Cancel so the fee is always computed.
func (s *Service) UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (*Booking, error) {
	if !cmd.Actor.privileged() {
		return nil, AuthorizationError{ActorID: cmd.Actor.ID, BookingID: cmd.BookingID}
	}
	if cmd.Status == StatusCancelled {
		res, err := s.Cancel(ctx, CancelCommand{BookingID: cmd.BookingID, Reason: "status update", Actor: cmd.Actor})
		return res.Booking, err
	}

	b, err := s.load(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(b.Status, cmd.Status) {
		return nil, InvalidStateTransitionError{From: b.Status, To: cmd.Status}
	}
	next := b.Clone()
	next.Status = cmd.Status
	next.UpdatedAt = s.now().UTC()
	if cmd.Status == StatusConfirmed && cmd.PaymentID != "" {
		next.PaymentStatus = PaymentPaid
		next.PaymentID = cmd.PaymentID
	}
	if err := s.transition(ctx, b, next, cmd.Actor); err != nil {
		return nil, err
	}
	return next, nil
}

// transition persists cur -> next with an optimistic version check.
func (s *Service) transition(ctx context.Context, cur, next *Booking, actor Actor) error {
	ev := Event{
		BookingID:  cur.ID,
		FromStatus: cur.Status,
		ToStatus:   next.Status,
		ActorType:  actor.eventType(),
		CreatedAt:  next.UpdatedAt,
	}
	if actor.ID != "" {
		id := actor.ID
		ev.ActorID = &id
	}

	err := s.repo.Transition(ctx, next, cur.Status, cur.StatusVersion, ev)
	if errors.Is(err, ErrVersionConflict) {
		// someone else moved the booking first; report against the fresh state
		if fresh, gerr := s.repo.Get(ctx, cur.ID); gerr == nil {
			if next.Status == StatusCancelled && fresh.Status.Terminal() {
				return CancellationNotAllowedError{Status: fresh.Status}
			}
			if !CanTransition(fresh.Status, next.Status) {
				return InvalidStateTransitionError{From: fresh.Status, To: next.Status}
			}
		}
		return ConflictError{Msg: "booking was modified concurrently, retry", Err: err}
	}
	if errors.Is(err, ErrNotFound) {
		return NotFoundError{Resource: "booking", ID: cur.ID, Err: err}
	}
	if errors.Is(err, ErrPaymentInUse) {
		return ConflictError{Msg: "payment is already attached to another booking", Err: err}
	}
	if err != nil {
		return s.persistence("update booking status", err)
	}
	next.StatusVersion = cur.StatusVersion + 1
	metrics.IncBookingTransition(string(next.Status))
	s.notify(ctx, next, ev)
	return nil
}

// Get returns a booking visible to actor (its owner or an admin).
func (s *Service) Get(ctx context.Context, id types.ID, actor Actor) (*Booking, error) {
	b, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.privileged() && actor.ID != b.UserID {
		// do not reveal other users' bookings
		return nil, NotFoundError{Resource: "booking", ID: id}
	}
	return b, nil
}

func (s *Service) History(ctx context.Context, id types.ID, actor Actor) ([]Event, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	events, err := s.repo.Events(ctx, id)
	if err != nil {
		return nil, s.persistence("load booking events", err)
	}
	return events, nil
}

func (s *Service) ListByUser(ctx context.Context, userID types.ID) ([]*Booking, error) {
	if userID == "" {
		return nil, AuthorizationError{}
	}
	out, err := s.repo.List(ctx, ListFilter{UserID: userID})
	if err != nil {
		return nil, s.persistence("list bookings", err)
	}
	return out, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Booking, error) {
	out, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, s.persistence("list bookings", err)
	}
	return out, nil
}

type AvailabilityResult struct {
	Available   bool
	Conflicts   []availability.Range
	Suggestions []availability.Suggestion
}

// CheckAvailability is a display-only read; Create re-checks atomically.
func (s *Service) CheckAvailability(ctx context.Context, vehicleID types.ID, start, end time.Time) (AvailabilityResult, error) {
	if vehicleID == "" {
		return AvailabilityResult{}, ValidationError{Errors: []FieldError{{Field: "vehicleId", Message: "is required"}}}
	}
	if err := checkRange(start, end); err != nil {
		return AvailabilityResult{}, err
	}
	if _, err := s.vehicles.Get(ctx, vehicleID); err != nil {
		if errors.Is(err, vehicle.ErrNotFound) {
			return AvailabilityResult{}, NotFoundError{Resource: "vehicle", ID: vehicleID, Err: err}
		}
		return AvailabilityResult{}, s.persistence("load vehicle", err)
	}
	ranges, err := s.repo.Ranges(ctx, vehicleID)
	if err != nil {
		return AvailabilityResult{}, s.persistence("load reservations", err)
	}
	conflicts := availability.Conflicts(ranges, start, end)
	if len(conflicts) == 0 {
		return AvailabilityResult{Available: true, Conflicts: []availability.Range{}, Suggestions: []availability.Suggestion{}}, nil
	}
	return AvailabilityResult{
		Conflicts:   conflicts,
		Suggestions: availability.SuggestAlternatives(ranges, start, end, s.suggest),
	}, nil
}

// SearchAvailable lists catalog vehicles matching q that are free for [start, end).
func (s *Service) SearchAvailable(ctx context.Context, start, end time.Time, q vehicle.Query) ([]vehicle.Vehicle, error) {
	if err := checkRange(start, end); err != nil {
		return nil, err
	}
	candidates, err := s.vehicles.Search(ctx, q)
	if err != nil {
		return nil, s.persistence("search vehicles", err)
	}
	out := make([]vehicle.Vehicle, 0, len(candidates))
	for _, v := range candidates {
		ranges, err := s.repo.Ranges(ctx, v.ID)
		if err != nil {
			return nil, s.persistence("load reservations", err)
		}
		if availability.Available(ranges, start, end) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, id types.ID) (*Booking, error) {
	b, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, NotFoundError{Resource: "booking", ID: id, Err: err}
	}
	if err != nil {
		return nil, s.persistence("load booking", err)
	}
	return b, nil
}

func (s *Service) notify(ctx context.Context, b *Booking, ev Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.BookingChanged(ctx, b, ev); err != nil {
		log.Printf("notify booking %s %s->%s: %v", b.ID, ev.FromStatus, ev.ToStatus, err)
	}
}

func (s *Service) persistence(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	log.Printf("booking store %s: %v", op, err)
	return PersistenceError{Op: op, Err: err}
}

func checkRange(start, end time.Time) error {
	var errs []FieldError
	if start.IsZero() {
		errs = append(errs, FieldError{Field: "startDate", Message: "is required"})
	}
	if end.IsZero() {
		errs = append(errs, FieldError{Field: "endDate", Message: "is required"})
	}
	if len(errs) == 0 && !end.After(start) {
		errs = append(errs, FieldError{Field: "endDate", Message: "must be after startDate"})
	}
	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
