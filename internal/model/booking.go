package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the layout of a tour start date on the wire and in the
// DATE columns.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD start date into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	}
	return d, nil
}

// Contact identifies who a booking belongs to.  Either UserID is set
// (authenticated holder) or the three guest fields are, never both.
type Contact struct {
	UserID     string // bookings.user_id (JWT subject of the holder)
	GuestName  string // bookings.guest_name
	GuestEmail string // bookings.guest_email
	GuestPhone string // bookings.guest_phone
}

// IsGuest reports whether the booking was made without an account.
func (c Contact) IsGuest() bool { return c.UserID == "" }

// Validate enforces that exactly one contact identity is present.
func (c Contact) Validate() error {
	hasGuest := c.GuestName != "" || c.GuestEmail != "" || c.GuestPhone != ""
	if c.UserID != "" {
		if hasGuest {
			return fmt.Errorf("%w: user reference and guest details are mutually exclusive", ErrInvalidContact)
		}
		return nil
	}
	if c.GuestName == "" || c.GuestEmail == "" || c.GuestPhone == "" {
		return fmt.Errorf("%w: guest name, email and phone are required", ErrInvalidContact)
	}
	if !strings.Contains(c.GuestEmail, "@") {
		return fmt.Errorf("%w: guest email is malformed", ErrInvalidContact)
	}
	return nil
}

// Payment is the payment sub-state embedded in a booking.  Status is only
// meaningful when Method is set.
type Payment struct {
	Method PaymentMethod // bookings.payment_method ("" until initiated)
	Status PaymentStatus // bookings.payment_status
	PaidAt *time.Time    // bookings.paid_at
}

// Booking represents one row in the `bookings` table.
//
// Fields:
//
//	ID             – opaque identifier (UUID), immutable.
//	TourID         – catalog tour the booking is for.
//	StartDate      – selected start date (UTC midnight).
//	Headcount      – number of participants, at least 1.
//	Transport      – optional transport option name, empty when none.
//	Contact        – holder identity.
//	GuestTokenHash – bcrypt hash of the guest access token, empty for users.
//	Note           – free text from the holder.
//	TotalPrice     – computed once at creation, never recomputed.
//	Status         – lifecycle state.
//	PriorStatus    – status held before the pending cancel request.
//	Reason         – last rejection or cancellation reason.
//	Payment        – payment sub-state.
//	Version        – optimistic locking counter, bumped on every write.
type Booking struct {
	ID             string
	TourID         uint64
	StartDate      time.Time
	Headcount      int
	Transport      string
	Contact        Contact
	GuestTokenHash string
	Note           string
	TotalPrice     int64
	Status         BookingStatus
	PriorStatus    BookingStatus
	Reason         string
	Payment        Payment
	Version        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BookingFilter narrows an administrative booking listing.  Zero values
// mean "any".
type BookingFilter struct {
	Status    BookingStatus
	TourID    uint64
	StartDate time.Time
	Limit     int
}
