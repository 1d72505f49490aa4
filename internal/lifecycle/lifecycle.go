// Package lifecycle holds the booking transition table.  It decides what a
// transition does; the service applies the result through a store.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/tour-booking-engine/internal/model"
)

// Actor is the kind of caller allowed to fire an event.
type Actor int

const (
	ActorAdmin  Actor = iota // administrator
	ActorHolder              // the booking's own user or guest
)

type rule struct {
	from   []model.BookingStatus
	to     model.BookingStatus // empty: revert to the booking's prior status
	actor  Actor
	effect model.SeatEffect
	reason bool // a non-empty reason must accompany the event
}

var rules = map[model.BookingEvent]rule{
	model.EventConfirm: {
		from:  []model.BookingStatus{model.StatusPending},
		to:    model.StatusConfirmed,
		actor: ActorAdmin,
	},
	model.EventReject: {
		from:   []model.BookingStatus{model.StatusPending},
		to:     model.StatusRejected,
		actor:  ActorAdmin,
		effect: model.SeatsReleased,
		reason: true,
	},
	model.EventRequestCancel: {
		from:  []model.BookingStatus{model.StatusPending, model.StatusConfirmed},
		to:    model.StatusCancelRequest,
		actor: ActorHolder,
	},
	model.EventApproveCancel: {
		from:   []model.BookingStatus{model.StatusCancelRequest},
		to:     model.StatusCancelled,
		actor:  ActorAdmin,
		effect: model.SeatsReleased,
	},
	model.EventRejectCancel: {
		from:   []model.BookingStatus{model.StatusCancelRequest},
		actor:  ActorAdmin,
		reason: true,
	},
	model.EventComplete: {
		from:  []model.BookingStatus{model.StatusConfirmed},
		to:    model.StatusCompleted,
		actor: ActorAdmin,
	},
	model.EventPurge: {
		from:   []model.BookingStatus{model.StatusRejected, model.StatusCancelled},
		to:     model.StatusDeleted,
		actor:  ActorAdmin,
		effect: model.RecordPurged,
	},
}

// eventOrder keeps AllowedEvents deterministic.
var eventOrder = []model.BookingEvent{
	model.EventConfirm,
	model.EventReject,
	model.EventRequestCancel,
	model.EventApproveCancel,
	model.EventRejectCancel,
	model.EventComplete,
	model.EventPurge,
}

// RequiredActor returns who may fire ev.
func RequiredActor(ev model.BookingEvent) (Actor, error) {
	r, ok := rules[ev]
	if !ok {
		return 0, fmt.Errorf("%w: unknown event %q", model.ErrValidation, ev)
	}
	return r.actor, nil
}

// CanFire reports whether ev is legal from status, ignoring guards.
func CanFire(status model.BookingStatus, ev model.BookingEvent) bool {
	r, ok := rules[ev]
	if !ok {
		return false
	}
	for _, s := range r.from {
		if s == status {
			return true
		}
	}
	return false
}

// AllowedEvents lists the events legal from status.
func AllowedEvents(status model.BookingStatus) []model.BookingEvent {
	out := make([]model.BookingEvent, 0, 2)
	for _, ev := range eventOrder {
		if CanFire(status, ev) {
			out = append(out, ev)
		}
	}
	return out
}

// Step is a planned transition: the booking as it must be persisted and
// the capacity effect that has to be applied with it.
type Step struct {
	Next   model.Booking
	Effect model.SeatEffect
}

// Plan validates ev against the table and returns the resulting booking.
// It never mutates current.  Version is left untouched; stores bump it
// when they persist the step.
func Plan(current model.Booking, ev model.BookingEvent, reason string, now time.Time) (Step, error) {
	r, ok := rules[ev]
	if !ok {
		return Step{}, fmt.Errorf("%w: unknown event %q", model.ErrValidation, ev)
	}
	if !CanFire(current.Status, ev) {
		return Step{}, &model.IllegalTransitionError{From: current.Status, Event: ev}
	}
	reason = strings.TrimSpace(reason)
	if r.reason && reason == "" {
		return Step{}, model.ErrReasonRequired
	}

	next := current
	next.UpdatedAt = now
	if reason != "" {
		next.Reason = reason
	}

	switch ev {
	case model.EventRequestCancel:
		next.PriorStatus = current.Status
		next.Status = r.to
	case model.EventRejectCancel:
		next.Status = current.PriorStatus
		if next.Status != model.StatusPending && next.Status != model.StatusConfirmed {
			next.Status = model.StatusConfirmed
		}
		next.PriorStatus = ""
	default:
		next.Status = r.to
	}

	// A booking that stops holding seats can no longer be paid for.
	if !next.Status.AcceptsPaymentUpdates() && next.Payment.Method != "" && next.Payment.Status == model.PaymentPending {
		next.Payment.Status = model.PaymentCancelled
	}

	return Step{Next: next, Effect: r.effect}, nil
}
