package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/tour-booking-engine/internal/model"
)

// CapacityRepo is the Capacity Ledger: one tour_capacity row per
// (tour, start date).  Rows are created lazily on the first reservation
// and only ever changed through ReserveTx and ReleaseTx.
type CapacityRepo struct {
	db *sql.DB
}

// NewCapacityRepo returns a new CapacityRepo bound to the provided database.
func NewCapacityRepo(db *sql.DB) *CapacityRepo { return &CapacityRepo{db: db} }

func dateArg(d time.Time) string { return d.UTC().Format(model.DateLayout) }

// ReserveTx consumes count seats on the tour date.  The check and the
// increment are a single conditional UPDATE, so concurrent reservations
// serialize on the row lock and none can push consumed_seats past
// max_participants.  When the seats do not fit it returns a
// *model.CapacityExceededError carrying the seats that were left.
func (r *CapacityRepo) ReserveTx(ctx context.Context, tx *sql.Tx, tourID uint64, date time.Time, count, maxParticipants int) error {
	if count < 1 {
		return model.ErrInvalidHeadcount
	}
	d := dateArg(date)
	// Lazily create the record.  The no-op update keeps an existing row intact.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tour_capacity (tour_id, start_date, max_participants, consumed_seats) VALUES (?, ?, ?, 0)
		 ON DUPLICATE KEY UPDATE tour_id = tour_id`,
		tourID, d, maxParticipants,
	); err != nil {
		return fmt.Errorf("ensure capacity record: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE tour_capacity SET consumed_seats = consumed_seats + ?
		 WHERE tour_id = ? AND start_date = ? AND consumed_seats + ? <= max_participants`,
		count, tourID, d, count,
	)
	if err != nil {
		if isCheckViolation(err) {
			return &model.CapacityExceededError{Requested: count}
		}
		return fmt.Errorf("reserve seats: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve seats: %w", err)
	}
	if n == 0 {
		remaining := 0
		if rec, err := r.getTx(ctx, tx, tourID, date); err == nil {
			remaining = rec.Remaining()
		}
		return &model.CapacityExceededError{Requested: count, Remaining: remaining}
	}
	return nil
}

// ReleaseTx gives count seats back, floored at zero.  The caller
// guarantees that a booking's seats are released at most once.
func (r *CapacityRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, tourID uint64, date time.Time, count int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE tour_capacity SET consumed_seats = GREATEST(consumed_seats - ?, 0)
		 WHERE tour_id = ? AND start_date = ?`,
		count, tourID, dateArg(date),
	)
	if err != nil {
		return fmt.Errorf("release seats: %w", err)
	}
	return nil
}

// Get returns the capacity record of a tour date, or nil when no booking
// has been made for it yet.
func (r *CapacityRepo) Get(ctx context.Context, tourID uint64, date time.Time) (*model.CapacityRecord, error) {
	rec, err := scanCapacity(r.db.QueryRowContext(ctx,
		`SELECT tour_id, start_date, max_participants, consumed_seats FROM tour_capacity WHERE tour_id = ? AND start_date = ?`,
		tourID, dateArg(date),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// Remaining returns the free seats on a tour date.  Dates without a
// record report the catalog maximum.  The figure may be stale by the time
// a reservation is attempted.
func (r *CapacityRepo) Remaining(ctx context.Context, tourID uint64, date time.Time, maxParticipants int) (int, error) {
	rec, err := r.Get(ctx, tourID, date)
	if err != nil {
		return 0, err
	}
	if rec == nil {
		return maxParticipants, nil
	}
	return rec.Remaining(), nil
}

func (r *CapacityRepo) getTx(ctx context.Context, tx *sql.Tx, tourID uint64, date time.Time) (*model.CapacityRecord, error) {
	return scanCapacity(tx.QueryRowContext(ctx,
		`SELECT tour_id, start_date, max_participants, consumed_seats FROM tour_capacity WHERE tour_id = ? AND start_date = ?`,
		tourID, dateArg(date),
	))
}

func scanCapacity(row *sql.Row) (*model.CapacityRecord, error) {
	var rec model.CapacityRecord
	if err := row.Scan(&rec.TourID, &rec.StartDate, &rec.MaxParticipants, &rec.ConsumedSeats); err != nil {
		return nil, err
	}
	return &rec, nil
}
