package model

import "time"

// Role values stored in the users table and carried in the JWT role claim.
const (
	RoleAdmin   = "ADMIN"
	RoleStudent = "STUDENT"
)

// User represents an application user record as stored in the `users`
// table.  Deleting a user detaches their reservations (user_id becomes
// NULL) rather than deleting booking history.
type User struct {
	ID            uint64    `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	FullName      *string   `json:"full_name"`
	StudentNumber *string   `json:"student_number"`
	Role          string    `json:"role"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user holds the ADMIN role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the raw token is stored.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
