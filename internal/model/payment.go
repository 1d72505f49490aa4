package model

import (
	"fmt"
	"strings"
	"time"
)

// PaymentMethod is the channel a booking is paid through.
type PaymentMethod string

const (
	MethodDirect  PaymentMethod = "DIRECT"  // pay on arrival / offline, confirmed by an admin
	MethodGateway PaymentMethod = "GATEWAY" // redirect flow through the payment provider
)

// ParsePaymentMethod converts a case-insensitive string into a PaymentMethod.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s)))
	if m != MethodDirect && m != MethodGateway {
		return "", fmt.Errorf("%w: payment method must be DIRECT or GATEWAY", ErrValidation)
	}
	return m, nil
}

// PaymentStatus is the state of the current payment attempt.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// GatewayOutcome is the settled result reported by the provider.
type GatewayOutcome string

const (
	OutcomePaid   GatewayOutcome = "PAID"
	OutcomeFailed GatewayOutcome = "FAILED"
)

// IntentState tracks whether a payment intent may still be settled.
type IntentState string

const (
	IntentActive     IntentState = "ACTIVE"     // most recent intent of its booking
	IntentSuperseded IntentState = "SUPERSEDED" // replaced by a newer attempt or voided
	IntentSettled    IntentState = "SETTLED"    // a callback has been applied
)

// PaymentIntent represents a row in the `payment_intents` table.  Each
// gateway attempt gets a fresh Token; issuing a new one supersedes every
// active intent of the same booking.
type PaymentIntent struct {
	Token       string         // payment_intents.token (UUID)
	BookingID   string         // payment_intents.booking_id
	ProviderRef string         // payment_intents.provider_ref, transaction id assigned by the provider
	RedirectURL string         // payment_intents.redirect_url
	Amount      int64          // payment_intents.amount
	State       IntentState    // payment_intents.state
	Outcome     GatewayOutcome // payment_intents.outcome, set once settled
	CreatedAt   time.Time      // payment_intents.created_at
	SettledAt   *time.Time     // payment_intents.settled_at
}
