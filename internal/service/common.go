package service

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/tour-booking-engine/internal/config"
	"github.com/iliyamo/tour-booking-engine/internal/model"
	"github.com/iliyamo/tour-booking-engine/internal/queue"
	"github.com/iliyamo/tour-booking-engine/internal/utils"
)

// Options tune both services.  Zero values fall back to defaults.
type Options struct {
	Retry      config.RetryConfig
	BcryptCost int
	Now        func() time.Time
}

func (o Options) withDefaults() Options {
	if o.BcryptCost == 0 {
		o.BcryptCost = bcrypt.DefaultCost
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// withVersionRetry runs fn again while it fails with a version conflict.
// fn must re-read and re-validate the booking on every attempt.  Once the
// retries are exhausted the conflict is returned to the caller.
func withVersionRetry(ctx context.Context, rc config.RetryConfig, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, rc.Backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, model.ErrConcurrentModification) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// isHolder reports whether caller owns b: the same JWT subject for user
// bookings, or the guest token matching the stored hash.
func isHolder(caller model.Caller, b *model.Booking) bool {
	if b.Contact.UserID != "" {
		return caller.Subject != "" && caller.Subject == b.Contact.UserID
	}
	return utils.VerifyGuestToken(b.GuestTokenHash, caller.GuestToken)
}

func canView(caller model.Caller, b *model.Booking) bool {
	return caller.IsAdmin || isHolder(caller, b)
}

// publish emits ev without letting a broker problem reach the caller.
// The change is already committed at this point.
func publish(ctx context.Context, events Publisher, log *zap.Logger, ev queue.LifecycleEvent) {
	if events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := events.Publish(ctx, ev); err != nil {
		log.Warn("publish lifecycle event failed",
			zap.String("type", ev.Type),
			zap.String("booking_id", ev.BookingID),
			zap.Error(err))
	}
}
