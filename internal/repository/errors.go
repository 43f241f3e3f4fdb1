// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers and services to distinguish between different failure
// scenarios without inspecting error strings. Lookups scoped to a
// caller (WHERE id = ? AND user_id = ?) surface sql.ErrNoRows for both
// "missing" and "not owned", so ownership failures do not leak record
// existence.
package repository

import "errors"

// ErrLockTimeout is returned when a per-hall advisory lock cannot be
// acquired within its wait window. Transitions that would read or write
// the hall's APPROVED interval set must hold this lock, so a timeout
// aborts the transition without touching any state.
var ErrLockTimeout = errors.New("hall lock timeout")
