package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/tour-booking-engine/internal/gateway"
	"github.com/iliyamo/tour-booking-engine/internal/model"
	"github.com/iliyamo/tour-booking-engine/internal/queue"
)

// PaymentService manages the payment sub-state of bookings for both
// channels.  Direct payments are marked paid by an administrator; gateway
// payments only through OnGatewayCallback with the most recent intent.
type PaymentService struct {
	store    PaymentStore
	provider gateway.Provider
	events   Publisher
	log      *zap.Logger
	opts     Options
}

// NewPaymentService wires the service.  events may be nil.
func NewPaymentService(store PaymentStore, provider gateway.Provider, events Publisher, log *zap.Logger, opts Options) *PaymentService {
	if store == nil || provider == nil {
		panic("nil dependency passed to NewPaymentService")
	}
	return &PaymentService{store: store, provider: provider, events: events, log: log, opts: opts.withDefaults()}
}

// Initiate starts a payment on behalf of the holder or an administrator.
// The returned URL is empty for direct payments.
func (s *PaymentService) Initiate(ctx context.Context, caller model.Caller, id string, method model.PaymentMethod) (*model.Booking, string, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if !canView(caller, b) {
		return nil, "", model.ErrForbidden
	}
	switch method {
	case model.MethodDirect:
		b, err := s.InitiateDirect(ctx, id)
		return b, "", err
	case model.MethodGateway:
		return s.InitiateGateway(ctx, id)
	}
	return nil, "", fmt.Errorf("%w: payment method must be DIRECT or GATEWAY", model.ErrValidation)
}

func checkPayable(b *model.Booking) error {
	if !b.Status.AcceptsNewPayment() {
		return fmt.Errorf("%w: booking is %s", model.ErrPaymentNotAllowed, b.Status)
	}
	if b.Payment.Status == model.PaymentPaid {
		return model.ErrAlreadyPaid
	}
	return nil
}

// InitiateDirect switches the booking to a pending direct payment.  Any
// active gateway intent is superseded.
func (s *PaymentService) InitiateDirect(ctx context.Context, id string) (*model.Booking, error) {
	var next model.Booking
	err := withVersionRetry(ctx, s.opts.Retry, func(ctx context.Context) error {
		cur, err := s.store.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if err := checkPayable(cur); err != nil {
			return err
		}
		next = *cur
		next.Payment = model.Payment{Method: model.MethodDirect, Status: model.PaymentPending}
		next.UpdatedAt = s.opts.Now()
		return s.store.SavePayment(ctx, &next, cur.Version, nil)
	})
	if err != nil {
		return nil, err
	}
	s.paymentChanged(ctx, &next, "direct payment initiated")
	return &next, nil
}

// InitiateGateway asks the provider for a new payment page and makes its
// intent the only active one of the booking.  It may be called again to
// re-issue the link; earlier tokens then become stale.
func (s *PaymentService) InitiateGateway(ctx context.Context, id string) (*model.Booking, string, error) {
	cur, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if err := checkPayable(cur); err != nil {
		return nil, "", err
	}

	token := uuid.NewString()
	resp, err := s.provider.CreateIntent(ctx, gateway.IntentRequest{
		IntentToken:   token,
		BookingID:     cur.ID,
		Amount:        cur.TotalPrice,
		CustomerName:  cur.Contact.GuestName,
		CustomerEmail: cur.Contact.GuestEmail,
	})
	if err != nil {
		var gwErr *model.GatewayError
		if errors.As(err, &gwErr) {
			return nil, "", err
		}
		return nil, "", &model.GatewayError{Op: "create intent", Err: err}
	}

	var next model.Booking
	err = withVersionRetry(ctx, s.opts.Retry, func(ctx context.Context) error {
		cur, err := s.store.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if err := checkPayable(cur); err != nil {
			return err
		}
		now := s.opts.Now()
		next = *cur
		next.Payment = model.Payment{Method: model.MethodGateway, Status: model.PaymentPending}
		next.UpdatedAt = now
		intent := &model.PaymentIntent{
			Token:       token,
			BookingID:   cur.ID,
			ProviderRef: resp.ProviderRef,
			RedirectURL: resp.RedirectURL,
			Amount:      cur.TotalPrice,
			State:       model.IntentActive,
			CreatedAt:   now,
		}
		return s.store.SavePayment(ctx, &next, cur.Version, intent)
	})
	if err != nil {
		return nil, "", err
	}
	s.log.Debug("payment intent issued", zap.String("booking_id", next.ID), zap.String("provider_ref", resp.ProviderRef))
	s.paymentChanged(ctx, &next, "gateway payment initiated")
	return &next, resp.RedirectURL, nil
}

// MarkPaidDirect records an offline payment.  Administrators only.
func (s *PaymentService) MarkPaidDirect(ctx context.Context, caller model.Caller, id string) (*model.Booking, error) {
	if !caller.IsAdmin {
		return nil, model.ErrForbidden
	}
	var next model.Booking
	err := withVersionRetry(ctx, s.opts.Retry, func(ctx context.Context) error {
		cur, err := s.store.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if cur.Payment.Method != model.MethodDirect {
			return model.ErrNotDirectPayment
		}
		if cur.Payment.Status == model.PaymentPaid {
			return model.ErrAlreadyPaid
		}
		if !cur.Status.AcceptsPaymentUpdates() {
			return fmt.Errorf("%w: booking is %s", model.ErrPaymentNotAllowed, cur.Status)
		}
		now := s.opts.Now()
		next = *cur
		next.Payment.Status = model.PaymentPaid
		next.Payment.PaidAt = &now
		next.UpdatedAt = now
		return s.store.SavePayment(ctx, &next, cur.Version, nil)
	})
	if err != nil {
		return nil, err
	}
	s.paymentChanged(ctx, &next, "direct payment marked paid")
	return &next, nil
}

// OnGatewayCallback applies a provider outcome to the booking owning
// token.  Only the booking's active intent is accepted: superseded or
// unknown tokens fail with model.ErrStaleIntentToken and a replay of a
// settled intent with model.ErrDuplicateCallback.
func (s *PaymentService) OnGatewayCallback(ctx context.Context, token string, outcome model.GatewayOutcome) (*model.Booking, error) {
	if outcome != model.OutcomePaid && outcome != model.OutcomeFailed {
		return nil, fmt.Errorf("%w: unknown gateway outcome %q", model.ErrValidation, outcome)
	}
	var next model.Booking
	err := withVersionRetry(ctx, s.opts.Retry, func(ctx context.Context) error {
		in, err := s.activeIntent(ctx, token)
		if err != nil {
			return err
		}
		cur, err := s.store.GetBooking(ctx, in.BookingID)
		if errors.Is(err, model.ErrBookingNotFound) {
			return model.ErrStaleIntentToken
		}
		if err != nil {
			return err
		}
		if cur.Payment.Method != model.MethodGateway {
			return model.ErrStaleIntentToken
		}
		if cur.Payment.Status == model.PaymentPaid {
			return model.ErrAlreadyPaid
		}
		now := s.opts.Now()
		next = *cur
		next.Payment.Status = model.PaymentStatus(outcome)
		if outcome == model.OutcomePaid {
			next.Payment.PaidAt = &now
		}
		next.UpdatedAt = now
		err = s.store.SettleIntent(ctx, &next, cur.Version, token, outcome)
		if errors.Is(err, model.ErrStaleIntentToken) {
			// A concurrent delivery may have settled it first.
			if _, again := s.activeIntent(ctx, token); again != nil {
				return again
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	s.paymentChanged(ctx, &next, "gateway payment settled")
	return &next, nil
}

func (s *PaymentService) activeIntent(ctx context.Context, token string) (*model.PaymentIntent, error) {
	in, err := s.store.GetIntent(ctx, token)
	if errors.Is(err, model.ErrIntentNotFound) {
		return nil, model.ErrStaleIntentToken
	}
	if err != nil {
		return nil, err
	}
	switch in.State {
	case model.IntentSettled:
		return nil, model.ErrDuplicateCallback
	case model.IntentSuperseded:
		return nil, model.ErrStaleIntentToken
	}
	return in, nil
}

func (s *PaymentService) paymentChanged(ctx context.Context, b *model.Booking, msg string) {
	s.log.Info(msg,
		zap.String("booking_id", b.ID),
		zap.String("method", string(b.Payment.Method)),
		zap.String("status", string(b.Payment.Status)))
	publish(ctx, s.events, s.log, queue.NewEvent(queue.TypePaymentUpdated, b, b.UpdatedAt))
}
