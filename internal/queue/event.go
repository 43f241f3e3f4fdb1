// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the background consumer.
package queue

// Lifecycle event kinds published to the reservation.lifecycle queue.
const (
	KindCreated   = "created"
	KindApproved  = "approved"
	KindDenied    = "denied"
	KindCancelled = "cancelled"
)

// ReservationEvent is published after a reservation lifecycle transition
// commits.  It carries enough information for downstream consumers to log,
// notify or feed analytics without querying the primary database.
type ReservationEvent struct {
	Kind          string  `json:"kind"`
	ReservationID uint64  `json:"reservation_id"`
	UserID        *uint64 `json:"user_id,omitempty"`
	HallID        uint64  `json:"hall_id"`
	HallName      string  `json:"hall_name"`
	StartsAt      string  `json:"starts_at"`
	EndsAt        string  `json:"ends_at"`
	Status        string  `json:"status"`
	OccurredAt    string  `json:"occurred_at"`
}
