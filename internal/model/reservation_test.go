package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	// From PENDING every admin/user action is reachable.
	assert.True(t, CanTransition(StatusPending, StatusApproved))
	assert.True(t, CanTransition(StatusPending, StatusDenied))
	assert.True(t, CanTransition(StatusPending, StatusCancelled))

	// APPROVED can only be cancelled.
	assert.True(t, CanTransition(StatusApproved, StatusCancelled))
	assert.False(t, CanTransition(StatusApproved, StatusDenied))
	assert.False(t, CanTransition(StatusApproved, StatusPending))

	// DENIED and CANCELLED are terminal.
	for _, from := range []Status{StatusDenied, StatusCancelled} {
		for _, to := range []Status{StatusPending, StatusApproved, StatusDenied, StatusCancelled} {
			assert.False(t, CanTransition(from, to), "%s -> %s must be rejected", from, to)
		}
	}
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusPending.Mutable())
	assert.False(t, StatusApproved.Mutable())
	assert.True(t, StatusDenied.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusApproved.Terminal())
	assert.True(t, ValidStatus("APPROVED"))
	assert.False(t, ValidStatus("approved"))
	assert.False(t, ValidStatus("WAITLISTED"))
}

func TestOverlapsHalfOpen(t *testing.T) {
	at := func(h, m int) time.Time {
		return time.Date(2025, 5, 12, h, m, 0, 0, time.UTC)
	}

	// Plain intersection in both directions.
	assert.True(t, Overlaps(at(10, 0), at(11, 0), at(10, 30), at(11, 30)))
	assert.True(t, Overlaps(at(10, 30), at(11, 30), at(10, 0), at(11, 0)))

	// Containment.
	assert.True(t, Overlaps(at(9, 0), at(12, 0), at(10, 0), at(11, 0)))

	// Abutting intervals do not conflict under half-open semantics.
	assert.False(t, Overlaps(at(9, 0), at(10, 0), at(10, 0), at(11, 0)))
	assert.False(t, Overlaps(at(10, 0), at(11, 0), at(9, 0), at(10, 0)))

	// Disjoint.
	assert.False(t, Overlaps(at(8, 0), at(9, 0), at(10, 0), at(11, 0)))
}
