package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/tour-booking-engine/internal/model"
)

// PaymentIntentRepo provides access to the payment_intents table.  At most
// one intent per booking is ACTIVE; the rest are SUPERSEDED or SETTLED.
type PaymentIntentRepo struct {
	db *sql.DB
}

// NewPaymentIntentRepo returns a new PaymentIntentRepo bound to the provided database.
func NewPaymentIntentRepo(db *sql.DB) *PaymentIntentRepo { return &PaymentIntentRepo{db: db} }

const intentColumns = `token, booking_id, provider_ref, redirect_url, amount, state, outcome, created_at, settled_at`

// InsertTx stores a freshly issued intent.
func (r *PaymentIntentRepo) InsertTx(ctx context.Context, tx *sql.Tx, in *model.PaymentIntent) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO payment_intents (`+intentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Token, in.BookingID, in.ProviderRef, in.RedirectURL, in.Amount,
		string(in.State), string(in.Outcome), in.CreatedAt.UTC(), nullTime(in.SettledAt),
	)
	if err != nil {
		if isDuplicateKey(err) {
			return &model.GatewayError{Op: "store intent", Err: fmt.Errorf("provider reference %q already used", in.ProviderRef)}
		}
		return fmt.Errorf("insert payment intent: %w", err)
	}
	return nil
}

// SupersedeActiveTx voids every active intent of a booking so callbacks
// for them are rejected as stale.
func (r *PaymentIntentRepo) SupersedeActiveTx(ctx context.Context, tx *sql.Tx, bookingID string) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE payment_intents SET state = ? WHERE booking_id = ? AND state = ?`,
		string(model.IntentSuperseded), bookingID, string(model.IntentActive),
	)
	if err != nil {
		return 0, fmt.Errorf("supersede intents: %w", err)
	}
	return res.RowsAffected()
}

// SettleTx marks an active intent as settled.  It fails with
// model.ErrStaleIntentToken when the intent is no longer active, which
// makes a concurrent duplicate delivery lose cleanly.
func (r *PaymentIntentRepo) SettleTx(ctx context.Context, tx *sql.Tx, token string, outcome model.GatewayOutcome, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE payment_intents SET state = ?, outcome = ?, settled_at = ? WHERE token = ? AND state = ?`,
		string(model.IntentSettled), string(outcome), at.UTC(), token, string(model.IntentActive),
	)
	if err != nil {
		return fmt.Errorf("settle intent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrStaleIntentToken
	}
	return nil
}

// DeleteByBookingTx removes every intent of a purged booking.
func (r *PaymentIntentRepo) DeleteByBookingTx(ctx context.Context, tx *sql.Tx, bookingID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM payment_intents WHERE booking_id = ?`, bookingID); err != nil {
		return fmt.Errorf("delete intents: %w", err)
	}
	return nil
}

// GetByToken returns an intent or model.ErrIntentNotFound.
func (r *PaymentIntentRepo) GetByToken(ctx context.Context, token string) (*model.PaymentIntent, error) {
	return r.getOne(ctx, `SELECT `+intentColumns+` FROM payment_intents WHERE token = ?`, token)
}

// GetByProviderRef resolves the provider's transaction id to an intent.
func (r *PaymentIntentRepo) GetByProviderRef(ctx context.Context, ref string) (*model.PaymentIntent, error) {
	return r.getOne(ctx, `SELECT `+intentColumns+` FROM payment_intents WHERE provider_ref = ?`, ref)
}

func (r *PaymentIntentRepo) getOne(ctx context.Context, q string, arg string) (*model.PaymentIntent, error) {
	var (
		in             model.PaymentIntent
		state, outcome string
		settledAt      sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, q, arg).Scan(
		&in.Token, &in.BookingID, &in.ProviderRef, &in.RedirectURL, &in.Amount,
		&state, &outcome, &in.CreatedAt, &settledAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrIntentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment intent: %w", err)
	}
	in.State = model.IntentState(state)
	in.Outcome = model.GatewayOutcome(outcome)
	if settledAt.Valid {
		t := settledAt.Time.UTC()
		in.SettledAt = &t
	}
	return &in, nil
}
