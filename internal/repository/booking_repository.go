package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/tour-booking-engine/internal/model"
)

// BookingRepo provides access to the bookings table.  Every update is
// guarded by the version column: a write that finds a different version
// than the one read fails with model.ErrConcurrentModification.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, tour_id, start_date, headcount, transport, user_id, guest_name, guest_email, guest_phone,
	guest_token_hash, note, total_price, status, prior_status, reason, payment_method, payment_status, paid_at,
	version, created_at, updated_at`

// InsertTx stores a new booking.  Timestamps are written by the caller so
// the returned model matches the row without a re-select.
func (r *BookingRepo) InsertTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (`+bookingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.TourID, dateArg(b.StartDate), b.Headcount, b.Transport,
		b.Contact.UserID, b.Contact.GuestName, b.Contact.GuestEmail, b.Contact.GuestPhone,
		b.GuestTokenHash, b.Note, b.TotalPrice, string(b.Status), string(b.PriorStatus), b.Reason,
		string(b.Payment.Method), string(b.Payment.Status), nullTime(b.Payment.PaidAt),
		b.Version, b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// GetByID returns a booking or model.ErrBookingNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// List returns bookings matching the filter, newest first.
func (r *BookingRepo) List(ctx context.Context, f model.BookingFilter) ([]*model.Booking, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.TourID != 0 {
		where = append(where, "tour_id = ?")
		args = append(args, f.TourID)
	}
	if !f.StartDate.IsZero() {
		where = append(where, "start_date = ?")
		args = append(args, dateArg(f.StartDate))
	}
	q := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	out := make([]*model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpdateTx writes the mutable columns of b when the stored version still
// equals expectedVersion.  b.Version must already hold the new version.
func (r *BookingRepo) UpdateTx(ctx context.Context, tx *sql.Tx, b *model.Booking, expectedVersion int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, prior_status = ?, reason = ?, payment_method = ?, payment_status = ?,
		 paid_at = ?, version = ?, updated_at = ? WHERE id = ? AND version = ?`,
		string(b.Status), string(b.PriorStatus), b.Reason, string(b.Payment.Method), string(b.Payment.Status),
		nullTime(b.Payment.PaidAt), b.Version, b.UpdatedAt.UTC(), b.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	return expectOneRow(res)
}

// DeleteTx hard-deletes a booking at the expected version.
func (r *BookingRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id string, expectedVersion int) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ? AND version = ?`, id, expectedVersion)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrConcurrentModification
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(s rowScanner) (*model.Booking, error) {
	var (
		b                             model.Booking
		status, prior, method, pstate string
		paidAt                        sql.NullTime
	)
	err := s.Scan(
		&b.ID, &b.TourID, &b.StartDate, &b.Headcount, &b.Transport,
		&b.Contact.UserID, &b.Contact.GuestName, &b.Contact.GuestEmail, &b.Contact.GuestPhone,
		&b.GuestTokenHash, &b.Note, &b.TotalPrice, &status, &prior, &b.Reason,
		&method, &pstate, &paidAt, &b.Version, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Status = model.BookingStatus(status)
	b.PriorStatus = model.BookingStatus(prior)
	b.Payment.Method = model.PaymentMethod(method)
	b.Payment.Status = model.PaymentStatus(pstate)
	if paidAt.Valid {
		t := paidAt.Time.UTC()
		b.Payment.PaidAt = &t
	}
	return &b, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
