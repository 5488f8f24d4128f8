package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	otpMin       = 100000
	otpSpan      = 900000 // otpMin..999999 inclusive
	sessionIDLen = 16
	tempPassLen  = 8
)

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return b, nil
}

// GenerateOTPCode returns a uniformly random code in 100000..999999.
func GenerateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpSpan))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+otpMin), nil
}

// GenerateSessionID returns 16 random bytes, hex encoded.
func GenerateSessionID() (string, error) {
	b, err := randomBytes(sessionIDLen)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// generateTempPassword is the throwaway password given to invited users.
func generateTempPassword() (string, error) {
	b, err := randomBytes(tempPassLen)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
