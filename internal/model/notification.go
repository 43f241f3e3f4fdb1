package model

import "time"

// Notification is a message produced as a side effect of a reservation
// lifecycle transition or a feedback submission.  Broadcasts to "all
// admins" are materialized as one row per admin account at emission time,
// so an admin added later never retroactively receives them.  Rows are
// never mutated except for the read flag and never deleted by the core.
type Notification struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `json:"user_id"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
