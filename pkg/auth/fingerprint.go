package auth

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/tendant/simple-idm-otp/pkg/domain"
)

// clientFingerprint is a short, non-reversible tag for an address and user
// agent pair, safe to put in logs.
func clientFingerprint(address, userAgent string) string {
	sum := sha256.Sum256([]byte(address + "|" + userAgent))
	return hex.EncodeToString(sum[:6])
}

// clientChange reports what differs between the client that opened session
// and the one now presenting it, or "" when nothing does.
func clientChange(session *domain.Session, userID uuid.UUID, address, userAgent string) string {
	switch {
	case session.UserID != userID:
		return "user"
	case session.IPAddress != address && session.UserAgent != userAgent:
		return "address+user_agent"
	case session.IPAddress != address:
		return "address"
	case session.UserAgent != userAgent:
		return "user_agent"
	}
	return ""
}
