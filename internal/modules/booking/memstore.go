// README: In-memory reservation store with one lock per vehicle (local runs and tests).
package booking

import (
	"context"
	"sort"
	"sync"

	"rental/internal/modules/availability"
	"rental/internal/types"
)

type vehicleShard struct {
	mu    sync.Mutex
	index *availability.Index
}

type idempotencyKey struct {
	vehicleID types.ID
	key       string
}

type MemoryStore struct {
	shardsMu sync.Mutex
	shards   map[types.ID]*vehicleShard

	mu            sync.RWMutex
	bookings      map[types.ID]*Booking
	confirmations map[string]types.ID
	idempotency   map[idempotencyKey]types.ID
	payments      map[string]types.ID // active bookings only
	events        map[types.ID][]Event
	nextEventID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		shards:        make(map[types.ID]*vehicleShard),
		bookings:      make(map[types.ID]*Booking),
		confirmations: make(map[string]types.ID),
		idempotency:   make(map[idempotencyKey]types.ID),
		payments:      make(map[string]types.ID),
		events:        make(map[types.ID][]Event),
	}
}

func (s *MemoryStore) shard(vehicleID types.ID) *vehicleShard {
	s.shardsMu.Lock()
	defer s.shardsMu.Unlock()
	sh, ok := s.shards[vehicleID]
	if !ok {
		sh = &vehicleShard{index: availability.NewIndex()}
		s.shards[vehicleID] = sh
	}
	return sh
}

func (s *MemoryStore) Create(ctx context.Context, b *Booking, ev Event) (*Booking, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	sh := s.shard(b.VehicleID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	// check and insert under one lock; shard locks do not span vehicles
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.IdempotencyKey != "" {
		if id, ok := s.idempotency[idempotencyKey{b.VehicleID, b.IdempotencyKey}]; ok {
			stored := s.bookings[id]
			if !sameRequest(stored, b) {
				return nil, false, ConflictError{Msg: "idempotency key was already used for a different booking request"}
			}
			return stored.Clone(), true, nil
		}
	}
	if _, dup := s.confirmations[b.ConfirmationNumber]; dup {
		return nil, false, ErrDuplicateConfirmation
	}
	if b.PaymentID != "" {
		if _, held := s.payments[b.PaymentID]; held {
			return nil, false, ErrPaymentInUse
		}
	}

	if conflicts := sh.index.Conflicts(b.StartDate, b.EndDate); len(conflicts) > 0 {
		return nil, false, AvailabilityConflictError{VehicleID: b.VehicleID, Conflicts: conflicts}
	}

	stored := b.Clone()
	s.bookings[stored.ID] = stored
	s.confirmations[stored.ConfirmationNumber] = stored.ID
	if stored.IdempotencyKey != "" {
		s.idempotency[idempotencyKey{stored.VehicleID, stored.IdempotencyKey}] = stored.ID
	}
	if stored.Status != StatusCancelled {
		if stored.PaymentID != "" {
			s.payments[stored.PaymentID] = stored.ID
		}
		sh.index.Insert(stored.Range())
	}
	s.appendEventLocked(ev)
	return stored.Clone(), false, nil
}

func (s *MemoryStore) Transition(ctx context.Context, b *Booking, from Status, version int, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sh := s.shard(b.VehicleID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.bookings[b.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Status != from || cur.StatusVersion != version {
		return ErrVersionConflict
	}
	if b.Status != StatusCancelled && b.PaymentID != "" {
		if holder, held := s.payments[b.PaymentID]; held && holder != b.ID {
			return ErrPaymentInUse
		}
	}

	next := b.Clone()
	next.StatusVersion = version + 1
	s.bookings[next.ID] = next
	if cur.PaymentID != "" && s.payments[cur.PaymentID] == cur.ID {
		delete(s.payments, cur.PaymentID)
	}
	if next.Status == StatusCancelled {
		sh.index.Remove(next.ID)
	} else if next.PaymentID != "" {
		s.payments[next.PaymentID] = next.ID
	}
	s.appendEventLocked(ev)
	return nil
}

func (s *MemoryStore) appendEventLocked(ev Event) {
	s.nextEventID++
	ev.ID = s.nextEventID
	s.events[ev.BookingID] = append(s.events[ev.BookingID], ev)
}

func (s *MemoryStore) Get(ctx context.Context, id types.ID) (*Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b.Clone(), nil
}

func (s *MemoryStore) ByPayment(ctx context.Context, paymentID string) (*Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.payments[paymentID]
	if !ok || paymentID == "" {
		return nil, ErrNotFound
	}
	return s.bookings[id].Clone(), nil
}

func (s *MemoryStore) List(ctx context.Context, f ListFilter) ([]*Booking, error) {
	s.mu.RLock()
	out := make([]*Booking, 0)
	for _, b := range s.bookings {
		if f.match(b) {
			out = append(out, b.Clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) Ranges(ctx context.Context, vehicleID types.ID) ([]availability.Range, error) {
	sh := s.shard(vehicleID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.index.Ranges(), nil
}

func (s *MemoryStore) Events(ctx context.Context, bookingID types.ID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event(nil), s.events[bookingID]...), nil
}
