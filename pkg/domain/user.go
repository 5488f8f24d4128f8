package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents the account.
type User struct {
	ID                  uuid.UUID
	Name                string
	Email               string
	PasswordHash        string
	IsActive            bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastPasswordChange  time.Time
	IsInvited           bool
	InvitedBy           *uuid.UUID
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsLocked returns true if the account is locked at the given instant.
func (u *User) IsLocked(now time.Time) bool {
	if u.LockedUntil == nil {
		return false
	}
	return now.Before(*u.LockedUntil)
}

// IsPasswordExpired reports whether more than maxAge has elapsed since the
// last password change.
func (u *User) IsPasswordExpired(now time.Time, maxAge time.Duration) bool {
	return now.Sub(u.LastPasswordChange) > maxAge
}

// LockState is the outcome of recording a failed login attempt.
type LockState struct {
	Attempts    int
	Locked      bool
	LockedUntil *time.Time
}

// PasswordHistoryEntry is one previously accepted password hash.
type PasswordHistoryEntry struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	PasswordHash string
	CreatedAt    time.Time
}

// UserProfile is a user with the role and permission names granted to it.
type UserProfile struct {
	User        *User
	Roles       []string
	Permissions []string
}
