package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/tour-booking-engine/internal/model"
)

// Result tells the provider what happened to a callback.
type Result string

const (
	ResultApplied   Result = "applied"   // payment status changed
	ResultDuplicate Result = "duplicate" // replay of an already settled intent
	ResultIgnored   Result = "ignored"   // non-final provider status
)

// Callback is the provider's webhook body.
type Callback struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	GrossAmount   int64  `json:"gross_amount"`
}

// IntentLookup maps provider transaction ids to stored intents.
type IntentLookup interface {
	GetIntentByProviderRef(ctx context.Context, ref string) (*model.PaymentIntent, error)
}

// Reconciler applies a settled gateway outcome to a booking.
type Reconciler interface {
	OnGatewayCallback(ctx context.Context, intentToken string, outcome model.GatewayOutcome) (*model.Booking, error)
}

// Adapter is the inbound side of the payment provider integration.
type Adapter struct {
	secret   []byte
	intents  IntentLookup
	payments Reconciler
	log      *zap.Logger
}

// NewAdapter returns an adapter verifying callbacks with secret.
func NewAdapter(secret string, intents IntentLookup, payments Reconciler, log *zap.Logger) *Adapter {
	return &Adapter{secret: []byte(secret), intents: intents, payments: payments, log: log}
}

// Sign returns the hex HMAC-SHA256 of body, as the provider computes it.
func Sign(secret, body []byte) string {
	m := hmac.New(sha256.New, secret)
	m.Write(body)
	return hex.EncodeToString(m.Sum(nil))
}

// Verify checks a hex signature in constant time.
func Verify(secret, body []byte, signature string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) == 0 {
		return false
	}
	m := hmac.New(sha256.New, secret)
	m.Write(body)
	return hmac.Equal(got, m.Sum(nil))
}

// mapStatus converts a provider status.  final is false for statuses that
// do not settle the payment yet.
func mapStatus(status string) (outcome model.GatewayOutcome, final bool, err error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "settlement", "capture", "paid", "success":
		return model.OutcomePaid, true, nil
	case "deny", "cancel", "expire", "failure", "failed":
		return model.OutcomeFailed, true, nil
	case "pending":
		return "", false, nil
	}
	return "", false, fmt.Errorf("%w: unknown provider status %q", model.ErrValidation, status)
}

// Handle verifies and applies one callback.  Replays of a settled intent
// come back as ResultDuplicate with a nil error so the provider stops
// retrying; superseded intents fail with model.ErrStaleIntentToken.
func (a *Adapter) Handle(ctx context.Context, body []byte, signature string) (Result, *model.Booking, error) {
	if !Verify(a.secret, body, signature) {
		return "", nil, model.ErrInvalidSignature
	}
	var cb Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		return "", nil, fmt.Errorf("%w: malformed callback body", model.ErrValidation)
	}
	if cb.TransactionID == "" {
		return "", nil, fmt.Errorf("%w: transaction_id is required", model.ErrValidation)
	}
	outcome, final, err := mapStatus(cb.Status)
	if err != nil {
		return "", nil, err
	}
	log := a.log.With(zap.String("transaction_id", cb.TransactionID), zap.String("provider_status", cb.Status))
	if !final {
		log.Debug("callback ignored")
		return ResultIgnored, nil, nil
	}

	intent, err := a.intents.GetIntentByProviderRef(ctx, cb.TransactionID)
	if err != nil {
		return "", nil, err
	}
	if cb.GrossAmount != 0 && cb.GrossAmount != intent.Amount {
		log.Warn("callback amount mismatch", zap.Int64("expected", intent.Amount), zap.Int64("got", cb.GrossAmount))
		return "", nil, model.ErrAmountMismatch
	}

	b, err := a.payments.OnGatewayCallback(ctx, intent.Token, outcome)
	switch {
	case errors.Is(err, model.ErrDuplicateCallback), errors.Is(err, model.ErrAlreadyPaid):
		log.Info("duplicate callback acknowledged", zap.String("booking_id", intent.BookingID))
		return ResultDuplicate, nil, nil
	case err != nil:
		log.Warn("callback rejected", zap.String("booking_id", intent.BookingID), zap.Error(err))
		return "", nil, err
	}
	return ResultApplied, b, nil
}
