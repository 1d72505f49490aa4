// Package memory provides non-durable implementations of the booking and
// payment stores and the tour catalog.  It backs STORE_DRIVER=memory and
// the service tests.  All operations hold one mutex, which gives them the
// same atomicity as the MySQL transactions.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/tour-booking-engine/internal/model"
)

type capacityKey struct {
	tourID uint64
	date   string
}

// Store keeps bookings, capacity records and payment intents in maps.
type Store struct {
	mu       sync.Mutex
	bookings map[string]model.Booking
	capacity map[capacityKey]*model.CapacityRecord
	intents  map[string]model.PaymentIntent
	byRef    map[string]string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		bookings: make(map[string]model.Booking),
		capacity: make(map[capacityKey]*model.CapacityRecord),
		intents:  make(map[string]model.PaymentIntent),
		byRef:    make(map[string]string),
	}
}

func keyOf(tourID uint64, d time.Time) capacityKey {
	return capacityKey{tourID: tourID, date: d.UTC().Format(model.DateLayout)}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// CreateBooking reserves seats and stores b atomically.
func (s *Store) CreateBooking(_ context.Context, b *model.Booking, maxParticipants int) (model.ReservationToken, error) {
	if b.Headcount < 1 {
		return model.ReservationToken{}, model.ErrInvalidHeadcount
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := keyOf(b.TourID, b.StartDate)
	rec, ok := s.capacity[k]
	if !ok {
		rec = &model.CapacityRecord{TourID: b.TourID, StartDate: b.StartDate, MaxParticipants: maxParticipants}
		s.capacity[k] = rec
	}
	if rec.ConsumedSeats+b.Headcount > rec.MaxParticipants {
		return model.ReservationToken{}, &model.CapacityExceededError{Requested: b.Headcount, Remaining: rec.Remaining()}
	}
	rec.ConsumedSeats += b.Headcount
	s.bookings[b.ID] = *b
	return model.ReservationToken{BookingID: b.ID, TourID: b.TourID, StartDate: b.StartDate, Seats: b.Headcount}, nil
}

// GetBooking returns a copy of the stored booking.
func (s *Store) GetBooking(_ context.Context, id string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, model.ErrBookingNotFound
	}
	return &b, nil
}

// ListBookings returns bookings matching f, newest first.
func (s *Store) ListBookings(_ context.Context, f model.BookingFilter) ([]*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Booking, 0)
	for _, b := range s.bookings {
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if f.TourID != 0 && b.TourID != f.TourID {
			continue
		}
		if !f.StartDate.IsZero() && !b.StartDate.Equal(f.StartDate) {
			continue
		}
		b := b
		out = append(out, &b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Remaining returns the free seats on a tour date.
func (s *Store) Remaining(_ context.Context, tourID uint64, date time.Time, maxParticipants int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.capacity[keyOf(tourID, date)]
	if !ok {
		return maxParticipants, nil
	}
	return rec.Remaining(), nil
}

// Capacity returns a copy of a capacity record, or nil.
func (s *Store) Capacity(tourID uint64, date time.Time) *model.CapacityRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.capacity[keyOf(tourID, date)]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

// ApplyTransition persists a planned transition with its seat effect.
func (s *Store) ApplyTransition(_ context.Context, next *model.Booking, expectedVersion int, effect model.SeatEffect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.bookings[next.ID]
	if !ok || cur.Version != expectedVersion {
		return model.ErrConcurrentModification
	}
	next.Version = expectedVersion + 1

	if effect == model.RecordPurged {
		delete(s.bookings, next.ID)
		for token, in := range s.intents {
			if in.BookingID == next.ID {
				delete(s.byRef, in.ProviderRef)
				delete(s.intents, token)
			}
		}
		return nil
	}
	if effect == model.SeatsReleased {
		if rec, ok := s.capacity[keyOf(next.TourID, next.StartDate)]; ok {
			rec.ConsumedSeats -= next.Headcount
			if rec.ConsumedSeats < 0 {
				rec.ConsumedSeats = 0
			}
		}
	}
	if !next.Status.AcceptsPaymentUpdates() {
		s.supersedeLocked(next.ID)
	}
	s.bookings[next.ID] = *next
	return nil
}

// SavePayment writes the payment sub-state and optionally a new intent.
func (s *Store) SavePayment(_ context.Context, next *model.Booking, expectedVersion int, intent *model.PaymentIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.bookings[next.ID]
	if !ok || cur.Version != expectedVersion {
		return model.ErrConcurrentModification
	}
	if intent != nil {
		if _, dup := s.byRef[intent.ProviderRef]; dup {
			return &model.GatewayError{Op: "store intent", Err: model.ErrValidation}
		}
	}
	next.Version = expectedVersion + 1
	s.supersedeLocked(next.ID)
	if intent != nil {
		s.intents[intent.Token] = *intent
		s.byRef[intent.ProviderRef] = intent.Token
	}
	s.bookings[next.ID] = *next
	return nil
}

func (s *Store) supersedeLocked(bookingID string) {
	for token, in := range s.intents {
		if in.BookingID == bookingID && in.State == model.IntentActive {
			in.State = model.IntentSuperseded
			s.intents[token] = in
		}
	}
}

// GetIntent returns an intent by token.
func (s *Store) GetIntent(_ context.Context, token string) (*model.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.intents[token]
	if !ok {
		return nil, model.ErrIntentNotFound
	}
	return &in, nil
}

// GetIntentByProviderRef resolves a provider transaction id.
func (s *Store) GetIntentByProviderRef(_ context.Context, ref string) (*model.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.byRef[ref]
	if !ok {
		return nil, model.ErrIntentNotFound
	}
	in := s.intents[token]
	return &in, nil
}

// SettleIntent settles an active intent and writes the booking.
func (s *Store) SettleIntent(_ context.Context, next *model.Booking, expectedVersion int, token string, outcome model.GatewayOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.intents[token]
	if !ok || in.State != model.IntentActive {
		return model.ErrStaleIntentToken
	}
	cur, ok := s.bookings[next.ID]
	if !ok || cur.Version != expectedVersion {
		return model.ErrConcurrentModification
	}
	at := next.UpdatedAt
	in.State = model.IntentSettled
	in.Outcome = outcome
	in.SettledAt = &at
	s.intents[token] = in
	next.Version = expectedVersion + 1
	s.bookings[next.ID] = *next
	return nil
}
