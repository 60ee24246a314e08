// README: Reservation store backed by PostgreSQL. Writes take a per-vehicle advisory lock.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"rental/internal/modules/availability"
	"rental/internal/types"
)

const uniqueViolation = "23505"

const bookingColumns = `
	id, confirmation_number, vehicle_id, user_id, start_date, end_date,
	guest_count, pickup_location, return_location, addon_ids, insurance_package_id,
	mileage_package_id, total_amount, payment_status, payment_id, status, status_version,
	idempotency_key, price, created_at, updated_at,
	cancellation_reason, cancellation_date, cancellation_fee, refund_amount`

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// lockVehicle serializes writers of one vehicle until the transaction ends.
func lockVehicle(ctx context.Context, tx pgx.Tx, vehicleID types.ID) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, string(vehicleID))
	return err
}

func (s *Store) Create(ctx context.Context, b *Booking, ev Event) (*Booking, bool, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	if err := lockVehicle(ctx, tx, b.VehicleID); err != nil {
		return nil, false, err
	}

	if b.IdempotencyKey != "" {
		row := tx.QueryRow(ctx, `SELECT `+bookingColumns+`
			FROM bookings
			WHERE vehicle_id = $1 AND idempotency_key = $2`,
			string(b.VehicleID), b.IdempotencyKey,
		)
		stored, err := scanBooking(row)
		switch {
		case err == nil:
			if !sameRequest(stored, b) {
				return nil, false, ConflictError{Msg: "idempotency key was already used for a different booking request"}
			}
			return stored, true, nil
		case !errors.Is(err, pgx.ErrNoRows):
			return nil, false, err
		}
	}

	conflicts, err := conflictingRanges(ctx, tx, b.VehicleID, b.StartDate, b.EndDate)
	if err != nil {
		return nil, false, err
	}
	if len(conflicts) > 0 {
		return nil, false, AvailabilityConflictError{VehicleID: b.VehicleID, Conflicts: conflicts}
	}

	price, err := json.Marshal(b.Price)
	if err != nil {
		return nil, false, err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO bookings (
			id, confirmation_number, vehicle_id, user_id, start_date, end_date,
			guest_count, pickup_location, return_location, addon_ids, insurance_package_id,
			mileage_package_id, total_amount, payment_status, payment_id, status, status_version,
			idempotency_key, price, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21
		)`,
		string(b.ID), b.ConfirmationNumber, string(b.VehicleID), string(b.UserID), b.StartDate, b.EndDate,
		b.GuestCount, b.PickupLocation, b.ReturnLocation, nonNil(b.AddonIDs), b.InsurancePackageID,
		b.MileagePackageID, int64(b.TotalAmount), string(b.PaymentStatus), b.PaymentID, string(b.Status), b.StatusVersion,
		nullIfEmpty(b.IdempotencyKey), price, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		switch uniqueConstraint(err) {
		case "":
		case "bookings_confirmation_number_key":
			return nil, false, ErrDuplicateConfirmation
		case "bookings_payment_id_key":
			return nil, false, ErrPaymentInUse
		}
		return nil, false, err
	}
	if err := appendEvent(ctx, tx, ev); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return b.Clone(), false, nil
}

// uniqueConstraint names the unique constraint or index err violated, if any.
func uniqueConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName
	}
	return ""
}

// conflictingRanges applies the three-clause overlap test in SQL, mirroring availability.Overlaps.
func conflictingRanges(ctx context.Context, tx pgx.Tx, vehicleID types.ID, start, end time.Time) ([]availability.Range, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, start_date, end_date
		FROM bookings
		WHERE vehicle_id = $1
		  AND status <> 'cancelled'
		  AND (
		        ($2::date >= start_date AND $2::date < end_date)
		     OR ($3::date > start_date AND $3::date <= end_date)
		     OR ($2::date <= start_date AND $3::date >= end_date)
		  )
		ORDER BY start_date, id`,
		string(vehicleID), start, end,
	)
	if err != nil {
		return nil, err
	}
	return collectRanges(rows)
}

func (s *Store) Transition(ctx context.Context, b *Booking, from Status, version int, ev Event) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockVehicle(ctx, tx, b.VehicleID); err != nil {
		return err
	}

	var reason *string
	var cancelledAt *time.Time
	var fee, refund *int64
	if c := b.Cancellation; c != nil {
		reason, cancelledAt = &c.Reason, &c.Date
		f, r := int64(c.Fee), int64(c.Refund)
		fee, refund = &f, &r
	}
	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status = $1,
		    status_version = status_version + 1,
		    payment_status = $2,
		    payment_id = $11,
		    updated_at = $3,
		    cancellation_reason = COALESCE($4, cancellation_reason),
		    cancellation_date = COALESCE($5, cancellation_date),
		    cancellation_fee = COALESCE($6, cancellation_fee),
		    refund_amount = COALESCE($7, refund_amount)
		WHERE id = $8 AND status = $9 AND status_version = $10`,
		string(b.Status), string(b.PaymentStatus), b.UpdatedAt,
		reason, cancelledAt, fee, refund,
		string(b.ID), string(from), version, b.PaymentID,
	)
	if uniqueConstraint(err) == "bookings_payment_id_key" {
		return ErrPaymentInUse
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrVersionConflict
	}
	if err := appendEvent(ctx, tx, ev); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func appendEvent(ctx context.Context, tx pgx.Tx, e Event) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO booking_state_events (
			booking_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.BookingID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		toStringPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Booking, error) {
	row := s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, string(id))
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *Store) ByPayment(ctx context.Context, paymentID string) (*Booking, error) {
	if paymentID == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+bookingColumns+`
		FROM bookings
		WHERE payment_id = $1 AND status <> 'cancelled'`, paymentID)
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *Store) List(ctx context.Context, f ListFilter) ([]*Booking, error) {
	var from, to *time.Time
	if !f.From.IsZero() {
		from = &f.From
	}
	if !f.To.IsZero() {
		to = &f.To
	}
	rows, err := s.db.Query(ctx, `SELECT `+bookingColumns+`
		FROM bookings
		WHERE ($1 = '' OR user_id = $1)
		  AND ($2 = '' OR vehicle_id = $2)
		  AND ($3::date IS NULL OR end_date > $3::date)
		  AND ($4::date IS NULL OR start_date < $4::date)
		ORDER BY start_date, id`,
		string(f.UserID), string(f.VehicleID), from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) Ranges(ctx context.Context, vehicleID types.ID) ([]availability.Range, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, start_date, end_date
		FROM bookings
		WHERE vehicle_id = $1 AND status <> 'cancelled'
		ORDER BY start_date, id`, string(vehicleID),
	)
	if err != nil {
		return nil, err
	}
	return collectRanges(rows)
}

func (s *Store) Events(ctx context.Context, bookingID types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, booking_id, from_status, to_status, actor_type, actor_id, created_at
		FROM booking_state_events
		WHERE booking_id = $1
		ORDER BY id`, string(bookingID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var bookingID, from, to string
		var actorID *string
		if err := rows.Scan(&e.ID, &bookingID, &from, &to, &e.ActorType, &actorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.BookingID, e.FromStatus, e.ToStatus = types.ID(bookingID), Status(from), Status(to)
		if actorID != nil {
			id := types.ID(*actorID)
			e.ActorID = &id
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func collectRanges(rows pgx.Rows) ([]availability.Range, error) {
	defer rows.Close()
	var out []availability.Range
	for rows.Next() {
		var r availability.Range
		var id string
		if err := rows.Scan(&id, &r.Start, &r.End); err != nil {
			return nil, err
		}
		r.BookingID = types.ID(id)
		r.Start, r.End = r.Start.UTC(), r.End.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var id, vehicleID, userID, paymentStatus, status string
	var insurance, idempotency, reason *string
	var cancelledAt *time.Time
	var fee, refund *int64
	var total int64
	var price []byte

	err := row.Scan(
		&id, &b.ConfirmationNumber, &vehicleID, &userID, &b.StartDate, &b.EndDate,
		&b.GuestCount, &b.PickupLocation, &b.ReturnLocation, &b.AddonIDs, &insurance,
		&b.MileagePackageID, &total, &paymentStatus, &b.PaymentID, &status, &b.StatusVersion,
		&idempotency, &price, &b.CreatedAt, &b.UpdatedAt,
		&reason, &cancelledAt, &fee, &refund,
	)
	if err != nil {
		return nil, err
	}
	b.ID, b.VehicleID, b.UserID = types.ID(id), types.ID(vehicleID), types.ID(userID)
	b.StartDate, b.EndDate = b.StartDate.UTC(), b.EndDate.UTC()
	b.TotalAmount = types.Cents(total)
	b.PaymentStatus, b.Status = PaymentStatus(paymentStatus), Status(status)
	b.InsurancePackageID = insurance
	if idempotency != nil {
		b.IdempotencyKey = *idempotency
	}
	if len(price) > 0 {
		if err := json.Unmarshal(price, &b.Price); err != nil {
			return nil, fmt.Errorf("decode price of booking %s: %w", id, err)
		}
	}
	if b.Status == StatusCancelled && cancelledAt != nil {
		c := &CancellationRecord{Date: *cancelledAt}
		if reason != nil {
			c.Reason = *reason
		}
		if fee != nil {
			c.Fee = types.Cents(*fee)
		}
		if refund != nil {
			c.Refund = types.Cents(*refund)
		}
		b.Cancellation = c
	}
	return &b, nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
