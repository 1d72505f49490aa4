package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/tour-booking-engine/internal/model"
)

// TourRepo reads the tour catalog: capacity, base price and transport
// surcharges.  The catalog is maintained elsewhere; this engine never
// writes to it.
type TourRepo struct {
	db *sql.DB
}

// NewTourRepo returns a new TourRepo bound to the provided database.
func NewTourRepo(db *sql.DB) *TourRepo { return &TourRepo{db: db} }

// GetCapacity returns the maximum participants per start date.
func (r *TourRepo) GetCapacity(ctx context.Context, tourID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT max_participants FROM tours WHERE id = ?`, tourID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, model.ErrTourNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get tour capacity: %w", err)
	}
	return n, nil
}

// GetPrice returns the base price per participant.
func (r *TourRepo) GetPrice(ctx context.Context, tourID uint64) (int64, error) {
	var p int64
	err := r.db.QueryRowContext(ctx, `SELECT base_price FROM tours WHERE id = ?`, tourID).Scan(&p)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, model.ErrTourNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get tour price: %w", err)
	}
	return p, nil
}

// GetTransportSurcharge returns the per-participant surcharge of a named
// transport option.
func (r *TourRepo) GetTransportSurcharge(ctx context.Context, tourID uint64, transport string) (int64, error) {
	var s int64
	err := r.db.QueryRowContext(ctx,
		`SELECT surcharge FROM tour_transports WHERE tour_id = ? AND name = ?`, tourID, transport,
	).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, model.ErrTransportNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get transport surcharge: %w", err)
	}
	return s, nil
}
