package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/tour-booking-engine/internal/lifecycle"
	"github.com/iliyamo/tour-booking-engine/internal/model"
	"github.com/iliyamo/tour-booking-engine/internal/pricing"
	"github.com/iliyamo/tour-booking-engine/internal/queue"
	"github.com/iliyamo/tour-booking-engine/internal/utils"
)

const maxNoteLength = 2000

// CreateBookingInput is a booking request.  Contact carries the guest
// details for anonymous callers; for authenticated callers it must be
// empty and the JWT subject becomes the holder.
type CreateBookingInput struct {
	TourID    uint64
	StartDate time.Time
	Headcount int
	Transport string
	Contact   model.Contact
	Note      string
}

// Availability is the seat summary of one tour date.
type Availability struct {
	TourID          uint64 `json:"tour_id"`
	Date            string `json:"date"`
	MaxParticipants int    `json:"max_participants"`
	Consumed        int    `json:"consumed"`
	Remaining       int    `json:"remaining"`
}

// BookingService creates bookings and drives their status transitions.
type BookingService struct {
	store   BookingStore
	catalog Catalog
	events  Publisher
	log     *zap.Logger
	opts    Options
}

// NewBookingService wires the service.  events may be nil.
func NewBookingService(store BookingStore, catalog Catalog, events Publisher, log *zap.Logger, opts Options) *BookingService {
	if store == nil || catalog == nil {
		panic("nil dependency passed to NewBookingService")
	}
	return &BookingService{store: store, catalog: catalog, events: events, log: log, opts: opts.withDefaults()}
}

// Create prices the booking, reserves its seats and stores it as PENDING.
// Guest bookings get an access token that is returned once and stored only
// as a hash.  When the seats do not fit nothing is stored.
func (s *BookingService) Create(ctx context.Context, caller model.Caller, in CreateBookingInput) (*model.Booking, string, error) {
	if in.TourID == 0 {
		return nil, "", fmt.Errorf("%w: tour_id is required", model.ErrValidation)
	}
	if in.StartDate.IsZero() {
		return nil, "", fmt.Errorf("%w: date is required", model.ErrValidation)
	}
	if in.Headcount < 1 {
		return nil, "", model.ErrInvalidHeadcount
	}
	in.Note = strings.TrimSpace(in.Note)
	if len(in.Note) > maxNoteLength {
		return nil, "", fmt.Errorf("%w: note is too long", model.ErrValidation)
	}
	contact := in.Contact
	if caller.Authenticated() {
		contact.UserID = caller.Subject
	}
	if err := contact.Validate(); err != nil {
		return nil, "", err
	}

	maxParticipants, err := s.catalog.GetCapacity(ctx, in.TourID)
	if err != nil {
		return nil, "", err
	}
	base, err := s.catalog.GetPrice(ctx, in.TourID)
	if err != nil {
		return nil, "", err
	}
	var surcharge int64
	transport := strings.TrimSpace(in.Transport)
	if transport != "" {
		if surcharge, err = s.catalog.GetTransportSurcharge(ctx, in.TourID, transport); err != nil {
			return nil, "", err
		}
	}
	total, err := pricing.ComputeTotal(base, in.Headcount, surcharge)
	if err != nil {
		return nil, "", err
	}

	var guestToken string
	now := s.opts.Now()
	b := &model.Booking{
		ID:         uuid.NewString(),
		TourID:     in.TourID,
		StartDate:  in.StartDate.UTC(),
		Headcount:  in.Headcount,
		Transport:  transport,
		Contact:    contact,
		Note:       in.Note,
		TotalPrice: total,
		Status:     model.StatusPending,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if contact.IsGuest() {
		token, hash, err := utils.NewGuestToken(s.opts.BcryptCost)
		if err != nil {
			return nil, "", fmt.Errorf("guest token: %w", err)
		}
		guestToken, b.GuestTokenHash = token, hash
	}

	err = withVersionRetry(ctx, s.opts.Retry, func(ctx context.Context) error {
		_, err := s.store.CreateBooking(ctx, b, maxParticipants)
		return err
	})
	if err != nil {
		return nil, "", err
	}

	s.log.Info("booking created",
		zap.String("booking_id", b.ID),
		zap.Uint64("tour_id", b.TourID),
		zap.String("date", b.StartDate.Format(model.DateLayout)),
		zap.Int("headcount", b.Headcount),
		zap.Int64("total_price", b.TotalPrice))
	publish(ctx, s.events, s.log, queue.NewEvent(queue.TypeBookingCreated, b, now))
	return b, guestToken, nil
}

// Get returns a booking to its holder or an administrator.
func (s *BookingService) Get(ctx context.Context, caller model.Caller, id string) (*model.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(caller, b) {
		return nil, model.ErrForbidden
	}
	return b, nil
}

// List returns bookings matching f.  Administrators only.
func (s *BookingService) List(ctx context.Context, caller model.Caller, f model.BookingFilter) ([]*model.Booking, error) {
	if !caller.IsAdmin {
		return nil, model.ErrForbidden
	}
	return s.store.ListBookings(ctx, f)
}

// Availability reports the seats left on a tour date.  The figure may be
// stale by the time a booking is attempted.
func (s *BookingService) Availability(ctx context.Context, tourID uint64, date time.Time) (Availability, error) {
	maxParticipants, err := s.catalog.GetCapacity(ctx, tourID)
	if err != nil {
		return Availability{}, err
	}
	remaining, err := s.store.Remaining(ctx, tourID, date, maxParticipants)
	if err != nil {
		return Availability{}, err
	}
	return Availability{
		TourID:          tourID,
		Date:            date.Format(model.DateLayout),
		MaxParticipants: maxParticipants,
		Consumed:        maxParticipants - remaining,
		Remaining:       remaining,
	}, nil
}

// Transition fires ev on a booking.  Admin events need an administrator;
// REQUEST_CANCEL needs the holder.  A version conflict re-reads the
// booking and plans again, so a transition that became illegal meanwhile
// fails with IllegalTransition instead of being applied twice.
func (s *BookingService) Transition(ctx context.Context, caller model.Caller, id string, ev model.BookingEvent, reason string) (*model.Booking, error) {
	actor, err := lifecycle.RequiredActor(ev)
	if err != nil {
		return nil, err
	}

	var (
		next model.Booking
		from model.BookingStatus
	)
	err = withVersionRetry(ctx, s.opts.Retry, func(ctx context.Context) error {
		cur, err := s.store.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		switch actor {
		case lifecycle.ActorAdmin:
			if !caller.IsAdmin {
				return model.ErrForbidden
			}
		case lifecycle.ActorHolder:
			if !isHolder(caller, cur) {
				return model.ErrForbidden
			}
		}
		step, err := lifecycle.Plan(*cur, ev, reason, s.opts.Now())
		if err != nil {
			return err
		}
		next, from = step.Next, cur.Status
		return s.store.ApplyTransition(ctx, &next, cur.Version, step.Effect)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("booking transitioned",
		zap.String("booking_id", next.ID),
		zap.String("event", string(ev)),
		zap.String("from", string(from)),
		zap.String("to", string(next.Status)))
	out := queue.NewEvent(queue.TypeBookingTransitioned, &next, next.UpdatedAt)
	out.Event, out.FromStatus = string(ev), string(from)
	publish(ctx, s.events, s.log, out)
	return &next, nil
}
