package model

import "time"

// Hall represents a bookable venue such as the Function Hall or PE Hall.
// Capacity is informational metadata for display; the booking core does not
// validate attendee counts against it.
type Hall struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Capacity  uint32    `json:"capacity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
