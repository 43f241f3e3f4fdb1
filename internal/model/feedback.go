package model

import "time"

// Feedback is a rating left by a user for one of their own APPROVED
// reservations after its end time has elapsed.  At most one feedback row
// exists per reservation.
type Feedback struct {
	ID            uint64    `json:"id"`
	ReservationID uint64    `json:"reservation_id"`
	Rating        uint8     `json:"rating"`
	Comments      *string   `json:"comments,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
