package model

import "time"

// CapacityRecord represents a row in `tour_capacity`: seats consumed on one
// tour start date.  0 <= ConsumedSeats <= MaxParticipants always holds.
type CapacityRecord struct {
	TourID          uint64    // tour_capacity.tour_id
	StartDate       time.Time // tour_capacity.start_date
	MaxParticipants int       // tour_capacity.max_participants, copied from the catalog on first use
	ConsumedSeats   int       // tour_capacity.consumed_seats
}

// Remaining returns the seats still available on the date.
func (r CapacityRecord) Remaining() int {
	if n := r.MaxParticipants - r.ConsumedSeats; n > 0 {
		return n
	}
	return 0
}

// ReservationToken is returned by a successful reservation and binds the
// consumed seats to the booking that owns them.
type ReservationToken struct {
	BookingID string
	TourID    uint64
	StartDate time.Time
	Seats     int
}
