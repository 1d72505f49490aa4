package model

import (
	"fmt"
	"strings"
)

// BookingStatus is the lifecycle state of a booking.  Values are stored
// verbatim in bookings.status and bookings.prior_status.
type BookingStatus string

const (
	StatusPending       BookingStatus = "PENDING"
	StatusConfirmed     BookingStatus = "CONFIRMED"
	StatusRejected      BookingStatus = "REJECTED"
	StatusCancelRequest BookingStatus = "CANCEL_REQUEST"
	StatusCancelled     BookingStatus = "CANCELLED"
	StatusCompleted     BookingStatus = "COMPLETED"
	StatusDeleted       BookingStatus = "DELETED"
)

var knownStatuses = map[BookingStatus]bool{
	StatusPending:       true,
	StatusConfirmed:     true,
	StatusRejected:      true,
	StatusCancelRequest: true,
	StatusCancelled:     true,
	StatusCompleted:     true,
	StatusDeleted:       true,
}

// ParseBookingStatus converts a case-insensitive string into a BookingStatus.
func ParseBookingStatus(s string) (BookingStatus, error) {
	st := BookingStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !knownStatuses[st] {
		return "", fmt.Errorf("%w: unknown booking status %q", ErrValidation, s)
	}
	return st, nil
}

// HoldsSeats reports whether a booking in this status still consumes
// capacity on its tour date.
func (s BookingStatus) HoldsSeats() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelRequest, StatusCompleted:
		return true
	}
	return false
}

// AcceptsPaymentUpdates reports whether the payment sub-state may still
// change.  COMPLETED is terminal for status but payments may settle late.
func (s BookingStatus) AcceptsPaymentUpdates() bool {
	return s.HoldsSeats()
}

// AcceptsNewPayment reports whether a payment may be initiated.
func (s BookingStatus) AcceptsNewPayment() bool {
	return s == StatusPending || s == StatusConfirmed
}

// BookingEvent names a request to move a booking between statuses.
type BookingEvent string

const (
	EventConfirm       BookingEvent = "CONFIRM"
	EventReject        BookingEvent = "REJECT"
	EventRequestCancel BookingEvent = "REQUEST_CANCEL"
	EventApproveCancel BookingEvent = "APPROVE_CANCEL"
	EventRejectCancel  BookingEvent = "REJECT_CANCEL"
	EventComplete      BookingEvent = "COMPLETE"
	EventPurge         BookingEvent = "PURGE"
)

// ParseBookingEvent converts a case-insensitive string into a BookingEvent.
func ParseBookingEvent(s string) (BookingEvent, error) {
	ev := BookingEvent(strings.ToUpper(strings.TrimSpace(s)))
	switch ev {
	case EventConfirm, EventReject, EventRequestCancel, EventApproveCancel,
		EventRejectCancel, EventComplete, EventPurge:
		return ev, nil
	}
	return "", fmt.Errorf("%w: unknown event %q", ErrValidation, s)
}

// SeatEffect is the capacity side effect a transition carries.  The store
// applies it in the same transaction as the status change.
type SeatEffect int

const (
	SeatsKept     SeatEffect = iota // no capacity change
	SeatsReleased                   // give the booking's headcount back to its tour date
	RecordPurged                    // hard-delete the booking; seats were released earlier
)
