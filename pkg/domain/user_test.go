package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestUser_IsLocked(t *testing.T) {
	now := time.Now()
	past := now.Add(-1 * time.Hour)
	future := now.Add(1 * time.Hour)

	tests := []struct {
		name        string
		lockedUntil *time.Time
		want        bool
	}{
		{
			name:        "not locked (nil)",
			lockedUntil: nil,
			want:        false,
		},
		{
			name:        "locked (future time)",
			lockedUntil: &future,
			want:        true,
		},
		{
			name:        "not locked (past time)",
			lockedUntil: &past,
			want:        false,
		},
		{
			name:        "not locked (exactly now)",
			lockedUntil: &now,
			want:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := &User{
				ID:          uuid.New(),
				Email:       "test@example.com",
				LockedUntil: tt.lockedUntil,
			}

			if got := user.IsLocked(now); got != tt.want {
				t.Errorf("IsLocked() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUser_IsPasswordExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	maxAge := 10 * 24 * time.Hour

	tests := []struct {
		name       string
		lastChange time.Time
		want       bool
	}{
		{name: "changed today", lastChange: now, want: false},
		{name: "exactly ten days", lastChange: now.Add(-maxAge), want: false},
		{name: "ten days and a second", lastChange: now.Add(-maxAge - time.Second), want: true},
		{name: "a month ago", lastChange: now.AddDate(0, -1, 0), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := &User{LastPasswordChange: tt.lastChange}
			if got := user.IsPasswordExpired(now, maxAge); got != tt.want {
				t.Errorf("IsPasswordExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOneTimeCode_IsExpired(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	code := &OneTimeCode{ExpiresAt: issued.Add(3 * time.Minute)}

	if code.IsExpired(issued.Add(179 * time.Second)) {
		t.Error("code should be valid at t+179s")
	}
	if code.IsExpired(issued.Add(180 * time.Second)) {
		t.Error("code should be valid at exactly t+180s")
	}
	if !code.IsExpired(issued.Add(181 * time.Second)) {
		t.Error("code should be expired at t+181s")
	}
}

func TestOTPPurpose_Valid(t *testing.T) {
	for _, p := range []OTPPurpose{OTPPurposeLogin, OTPPurposePasswordReset, OTPPurposeInvitation} {
		if !p.Valid() {
			t.Errorf("%q should be valid", p)
		}
	}
	if OTPPurpose("mfa_sms").Valid() {
		t.Error("unknown purpose should be invalid")
	}
}

func TestTypedErrors_Unwrap(t *testing.T) {
	until := time.Now().Add(30 * time.Minute)

	tests := []struct {
		name   string
		err    error
		target error
	}{
		{name: "locked", err: &LockedError{Until: until}, target: ErrAccountLocked},
		{name: "password expired", err: &PasswordExpiredError{RequiresReset: true}, target: ErrPasswordExpired},
		{name: "validation", err: NewValidationError("password", "too short"), target: ErrValidationFailed},
		{name: "wrapped locked", err: fmt.Errorf("login: %w", &LockedError{Until: until}), target: ErrAccountLocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.target) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.target)
			}
		})
	}

	var locked *LockedError
	if !errors.As(fmt.Errorf("wrap: %w", &LockedError{Until: until}), &locked) || !locked.Until.Equal(until) {
		t.Error("errors.As should recover LockedError with its unlock time")
	}
}

func TestDependency(t *testing.T) {
	cause := errors.New("connection refused")

	err := Dependency("get user", cause)
	if !errors.Is(err, ErrDependencyFailure) {
		t.Error("dependency error should match ErrDependencyFailure")
	}
	if !errors.Is(err, cause) {
		t.Error("dependency error should unwrap to its cause")
	}

	if got := Dependency("get user", ErrUserNotFound); got != ErrUserNotFound {
		t.Errorf("domain errors pass through unchanged, got %v", got)
	}
	if Dependency("noop", nil) != nil {
		t.Error("nil stays nil")
	}
}
