package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/iliyamo/tour-booking-engine/internal/config"
	"github.com/iliyamo/tour-booking-engine/internal/model"
)

// Store composes the repos into the atomic operations used by the booking
// and payment services.  Every operation runs in one transaction; MySQL
// deadlocks and lock-wait timeouts replay the transaction with bounded
// exponential backoff before surfacing model.ErrConcurrentModification.
type Store struct {
	db       *sql.DB
	retry    config.RetryConfig
	Capacity *CapacityRepo
	Bookings *BookingRepo
	Intents  *PaymentIntentRepo
	Tours    *TourRepo
}

// NewStore wires all repos to db.
func NewStore(db *sql.DB, rc config.RetryConfig) *Store {
	return &Store{
		db:       db,
		retry:    rc,
		Capacity: NewCapacityRepo(db),
		Bookings: NewBookingRepo(db),
		Intents:  NewPaymentIntentRepo(db),
		Tours:    NewTourRepo(db),
	}
}

// DB exposes the underlying pool for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	err := retry.Do(ctx, s.retry.Backoff(), func(ctx context.Context) error {
		err := s.runTx(ctx, fn)
		if isTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if isTransient(err) {
		return fmt.Errorf("%w: %v", model.ErrConcurrentModification, err)
	}
	return err
}

func (s *Store) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// CreateBooking reserves the booking's seats and inserts it atomically.
// When the seats do not fit nothing is written.
func (s *Store) CreateBooking(ctx context.Context, b *model.Booking, maxParticipants int) (model.ReservationToken, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.Capacity.ReserveTx(ctx, tx, b.TourID, b.StartDate, b.Headcount, maxParticipants); err != nil {
			return err
		}
		return s.Bookings.InsertTx(ctx, tx, b)
	})
	if err != nil {
		return model.ReservationToken{}, err
	}
	return model.ReservationToken{BookingID: b.ID, TourID: b.TourID, StartDate: b.StartDate, Seats: b.Headcount}, nil
}

// GetBooking returns a booking by id.
func (s *Store) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	return s.Bookings.GetByID(ctx, id)
}

// ListBookings returns bookings matching f.
func (s *Store) ListBookings(ctx context.Context, f model.BookingFilter) ([]*model.Booking, error) {
	return s.Bookings.List(ctx, f)
}

// Remaining returns the free seats on a tour date.
func (s *Store) Remaining(ctx context.Context, tourID uint64, date time.Time, maxParticipants int) (int, error) {
	return s.Capacity.Remaining(ctx, tourID, date, maxParticipants)
}

// ApplyTransition persists a planned transition together with its seat
// effect.  A booking that stops accepting payments has its active
// intents superseded in the same transaction.
func (s *Store) ApplyTransition(ctx context.Context, next *model.Booking, expectedVersion int, effect model.SeatEffect) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		next.Version = expectedVersion + 1
		if effect == model.RecordPurged {
			if err := s.Intents.DeleteByBookingTx(ctx, tx, next.ID); err != nil {
				return err
			}
			return s.Bookings.DeleteTx(ctx, tx, next.ID, expectedVersion)
		}
		if err := s.Bookings.UpdateTx(ctx, tx, next, expectedVersion); err != nil {
			return err
		}
		if effect == model.SeatsReleased {
			if err := s.Capacity.ReleaseTx(ctx, tx, next.TourID, next.StartDate, next.Headcount); err != nil {
				return err
			}
		}
		if !next.Status.AcceptsPaymentUpdates() {
			if _, err := s.Intents.SupersedeActiveTx(ctx, tx, next.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// SavePayment writes the booking's payment sub-state, supersedes its
// active intents and, when intent is non-nil, stores it as the new
// active one.
func (s *Store) SavePayment(ctx context.Context, next *model.Booking, expectedVersion int, intent *model.PaymentIntent) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		next.Version = expectedVersion + 1
		if err := s.Bookings.UpdateTx(ctx, tx, next, expectedVersion); err != nil {
			return err
		}
		if _, err := s.Intents.SupersedeActiveTx(ctx, tx, next.ID); err != nil {
			return err
		}
		if intent != nil {
			return s.Intents.InsertTx(ctx, tx, intent)
		}
		return nil
	})
}

// GetIntent returns a payment intent by token.
func (s *Store) GetIntent(ctx context.Context, token string) (*model.PaymentIntent, error) {
	return s.Intents.GetByToken(ctx, token)
}

// GetIntentByProviderRef returns the payment intent the provider knows
// under ref.
func (s *Store) GetIntentByProviderRef(ctx context.Context, ref string) (*model.PaymentIntent, error) {
	return s.Intents.GetByProviderRef(ctx, ref)
}

// SettleIntent applies a gateway outcome: the intent must still be active
// and the booking unchanged since it was read.
func (s *Store) SettleIntent(ctx context.Context, next *model.Booking, expectedVersion int, token string, outcome model.GatewayOutcome) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		next.Version = expectedVersion + 1
		if err := s.Intents.SettleTx(ctx, tx, token, outcome, next.UpdatedAt); err != nil {
			return err
		}
		return s.Bookings.UpdateTx(ctx, tx, next, expectedVersion)
	})
}
