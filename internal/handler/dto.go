package handler

import (
	"time"

	"github.com/iliyamo/tour-booking-engine/internal/lifecycle"
	"github.com/iliyamo/tour-booking-engine/internal/model"
)

type guestDTO struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type paymentDTO struct {
	Method string     `json:"method,omitempty"`
	Status string     `json:"status,omitempty"`
	PaidAt *time.Time `json:"paid_at,omitempty"`
}

// bookingDTO is the wire form of a booking.  The guest token hash and the
// version counter stay server side.
type bookingDTO struct {
	ID             string     `json:"id"`
	TourID         uint64     `json:"tour_id"`
	Date           string     `json:"date"`
	Headcount      int        `json:"headcount"`
	Transport      string     `json:"transport,omitempty"`
	UserID         string     `json:"user_id,omitempty"`
	Guest          *guestDTO  `json:"guest,omitempty"`
	Note           string     `json:"note,omitempty"`
	TotalPrice     int64      `json:"total_price"`
	Status         string     `json:"status"`
	Reason         string     `json:"reason,omitempty"`
	Payment        paymentDTO `json:"payment"`
	AllowedActions []string   `json:"allowed_actions"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toBookingDTO(b *model.Booking) bookingDTO {
	d := bookingDTO{
		ID:         b.ID,
		TourID:     b.TourID,
		Date:       b.StartDate.Format(model.DateLayout),
		Headcount:  b.Headcount,
		Transport:  b.Transport,
		UserID:     b.Contact.UserID,
		Note:       b.Note,
		TotalPrice: b.TotalPrice,
		Status:     string(b.Status),
		Reason:     b.Reason,
		Payment: paymentDTO{
			Method: string(b.Payment.Method),
			Status: string(b.Payment.Status),
			PaidAt: b.Payment.PaidAt,
		},
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
	if b.Contact.IsGuest() {
		d.Guest = &guestDTO{Name: b.Contact.GuestName, Email: b.Contact.GuestEmail, Phone: b.Contact.GuestPhone}
	}
	events := lifecycle.AllowedEvents(b.Status)
	d.AllowedActions = make([]string, 0, len(events))
	for _, ev := range events {
		d.AllowedActions = append(d.AllowedActions, string(ev))
	}
	return d
}
