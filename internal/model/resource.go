package model

// Resource is an auxiliary item (projector, speaker set, ...) that can be
// attached to reservations.  Resources and reservations form a many-to-many
// relation via the reservation_resources table; a resource's lifecycle is
// independent of any reservation.
type Resource struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"` // unique display name, e.g. "Projector"
}
