package model

import "time"

// Status enumerates the lifecycle states of a reservation.  A reservation
// starts PENDING and ends in exactly one of the terminal states (DENIED or
// CANCELLED) or stays APPROVED until its interval elapses.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusDenied    Status = "DENIED"
	StatusCancelled Status = "CANCELLED"
)

// ValidStatus reports whether s is one of the four known states.  Used when
// parsing status filters from query strings.
func ValidStatus(s string) bool {
	switch Status(s) {
	case StatusPending, StatusApproved, StatusDenied, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	return s == StatusDenied || s == StatusCancelled
}

// Mutable reports whether the reservation's hall, interval and resources may
// still be changed by its owner.  Only PENDING reservations are mutable.
func (s Status) Mutable() bool { return s == StatusPending }

// CanTransition encodes the legal status transitions:
//
//	PENDING  -> APPROVED | DENIED | CANCELLED
//	APPROVED -> CANCELLED
//
// DENIED and CANCELLED are terminal.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusApproved || to == StatusDenied || to == StatusCancelled
	case StatusApproved:
		return to == StatusCancelled
	}
	return false
}

// Overlaps reports whether the half-open intervals [s1,e1) and [s2,e2)
// intersect.  Abutting intervals such as [9,10) and [10,11) do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// Reservation records a user's request to occupy a hall for the half-open
// interval [StartsAt, EndsAt).  Only APPROVED reservations occupy the
// hall; for a given hall the set of APPROVED reservations is kept
// pairwise non-overlapping.  UserID goes nil when the owning account is
// deleted, keeping the row for history.
type Reservation struct {
	ID           uint64     `json:"id"`
	UserID       *uint64    `json:"user_id"`
	HallID       uint64     `json:"hall_id"`
	StartsAt     time.Time  `json:"start_datetime"`
	EndsAt       time.Time  `json:"end_datetime"`
	Status       Status     `json:"status"`
	AdminMessage *string    `json:"admin_message,omitempty"`
	Description  *string    `json:"description,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Resources    []Resource `json:"resources"`
}
