package domain

import (
	"time"

	"github.com/google/uuid"
)

// OTPPurpose scopes a one-time code to the flow that requested it.
type OTPPurpose string

const (
	OTPPurposeLogin         OTPPurpose = "login"
	OTPPurposePasswordReset OTPPurpose = "password_reset"
	OTPPurposeInvitation    OTPPurpose = "invitation"
)

// Valid reports whether p is one of the known purposes.
func (p OTPPurpose) Valid() bool {
	switch p {
	case OTPPurposeLogin, OTPPurposePasswordReset, OTPPurposeInvitation:
		return true
	}
	return false
}

// OneTimeCode is a single-use numeric code bound to (user, session, purpose).
type OneTimeCode struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Code      string
	SessionID string
	Purpose   OTPPurpose
	ExpiresAt time.Time
	IsUsed    bool
	CreatedAt time.Time
}

// IsExpired reports whether the code expired strictly before now.
func (c *OneTimeCode) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
