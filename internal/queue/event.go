// Package queue defines the booking lifecycle messages exchanged over
// RabbitMQ, their publisher and the audit-log consumer.
package queue

import (
	"time"

	"github.com/iliyamo/tour-booking-engine/internal/model"
)

// Event types.
const (
	TypeBookingCreated      = "booking.created"
	TypeBookingTransitioned = "booking.transitioned"
	TypePaymentUpdated      = "payment.updated"
)

// LifecycleEvent is published after every committed booking or payment
// change.  It carries enough for notification and analytics consumers to
// act without reading the primary database.
type LifecycleEvent struct {
	Type          string `json:"type"`
	BookingID     string `json:"booking_id"`
	TourID        uint64 `json:"tour_id"`
	StartDate     string `json:"start_date"`
	Headcount     int    `json:"headcount"`
	TotalPrice    int64  `json:"total_price"`
	Event         string `json:"event,omitempty"`       // transition event, for booking.transitioned
	FromStatus    string `json:"from_status,omitempty"` // status before the change
	Status        string `json:"status"`
	PaymentMethod string `json:"payment_method,omitempty"`
	PaymentStatus string `json:"payment_status,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Guest         bool   `json:"guest"`
	OccurredAt    string `json:"occurred_at"`
}

// NewEvent snapshots b into an event of the given type.
func NewEvent(typ string, b *model.Booking, at time.Time) LifecycleEvent {
	return LifecycleEvent{
		Type:          typ,
		BookingID:     b.ID,
		TourID:        b.TourID,
		StartDate:     b.StartDate.Format(model.DateLayout),
		Headcount:     b.Headcount,
		TotalPrice:    b.TotalPrice,
		Status:        string(b.Status),
		PaymentMethod: string(b.Payment.Method),
		PaymentStatus: string(b.Payment.Status),
		Reason:        b.Reason,
		Guest:         b.Contact.IsGuest(),
		OccurredAt:    at.UTC().Format(time.RFC3339),
	}
}
