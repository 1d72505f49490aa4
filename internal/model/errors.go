package model

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the services, stores and handlers.  Handlers
// translate them into HTTP responses with errors.Is.
var (
	ErrValidation             = errors.New("validation failed")
	ErrInvalidHeadcount       = errors.New("headcount must be at least 1")
	ErrInvalidPrice           = errors.New("invalid price")
	ErrInvalidContact         = errors.New("invalid contact")
	ErrReasonRequired         = errors.New("reason is required")
	ErrForbidden              = errors.New("forbidden")
	ErrBookingNotFound        = errors.New("booking not found")
	ErrTourNotFound           = errors.New("tour not found")
	ErrTransportNotFound      = errors.New("transport option not found")
	ErrIntentNotFound         = errors.New("payment intent not found")
	ErrCapacityExceeded       = errors.New("capacity exceeded")
	ErrIllegalTransition      = errors.New("illegal transition")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrNotDirectPayment       = errors.New("payment method is not DIRECT")
	ErrAlreadyPaid            = errors.New("booking is already paid")
	ErrPaymentNotAllowed      = errors.New("booking status does not allow this payment change")
	ErrStaleIntentToken       = errors.New("stale payment intent token")
	ErrDuplicateCallback      = errors.New("payment callback already applied")
	ErrAmountMismatch         = errors.New("callback amount does not match intent")
	ErrInvalidSignature       = errors.New("invalid callback signature")
	ErrGateway                = errors.New("payment gateway error")
)

// IllegalTransitionError reports an event that the transition table does
// not allow from the booking's current status.
type IllegalTransitionError struct {
	From  BookingStatus
	Event BookingEvent
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition: %s from %s", e.Event, e.From)
}

func (e *IllegalTransitionError) Is(target error) bool { return target == ErrIllegalTransition }

// CapacityExceededError carries how many seats were asked for and how many
// were left when the reservation was refused.
type CapacityExceededError struct {
	Requested int
	Remaining int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("capacity exceeded: requested %d seats, %d remaining", e.Requested, e.Remaining)
}

func (e *CapacityExceededError) Is(target error) bool { return target == ErrCapacityExceeded }

// GatewayError wraps a failure of the external payment provider.  Callers
// recover by initiating a new intent.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway: %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func (e *GatewayError) Is(target error) bool { return target == ErrGateway }
