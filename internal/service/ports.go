// Package service runs the booking lifecycle and the payment orchestrator
// on top of a store, the tour catalog and the payment provider.  Both
// repository.Store (MySQL) and memory.Store satisfy the store ports.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/tour-booking-engine/internal/model"
	"github.com/iliyamo/tour-booking-engine/internal/queue"
)

// BookingStore persists bookings together with their capacity effects.
type BookingStore interface {
	CreateBooking(ctx context.Context, b *model.Booking, maxParticipants int) (model.ReservationToken, error)
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	ListBookings(ctx context.Context, f model.BookingFilter) ([]*model.Booking, error)
	Remaining(ctx context.Context, tourID uint64, date time.Time, maxParticipants int) (int, error)
	ApplyTransition(ctx context.Context, next *model.Booking, expectedVersion int, effect model.SeatEffect) error
}

// PaymentStore persists the payment sub-state and payment intents.
type PaymentStore interface {
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	SavePayment(ctx context.Context, next *model.Booking, expectedVersion int, intent *model.PaymentIntent) error
	GetIntent(ctx context.Context, token string) (*model.PaymentIntent, error)
	GetIntentByProviderRef(ctx context.Context, ref string) (*model.PaymentIntent, error)
	SettleIntent(ctx context.Context, next *model.Booking, expectedVersion int, token string, outcome model.GatewayOutcome) error
}

// Catalog is the read side of the tour catalog.
type Catalog interface {
	GetCapacity(ctx context.Context, tourID uint64) (int, error)
	GetPrice(ctx context.Context, tourID uint64) (int64, error)
	GetTransportSurcharge(ctx context.Context, tourID uint64, transport string) (int64, error)
}

// Publisher emits lifecycle events after a change has been committed.
type Publisher interface {
	Publish(ctx context.Context, ev queue.LifecycleEvent) error
}
