package domain

import (
	"errors"
	"fmt"
	"time"
)

// Authentication errors
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUserAlreadyExists   = errors.New("user already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountLocked       = errors.New("account locked. try again later")
	ErrPasswordExpired     = errors.New("password expired. please reset your password")
	ErrCannotReusePassword = errors.New("cannot use recent password. please choose a different one")
	ErrInvalidCode         = errors.New("invalid otp")
	ErrCodeExpired         = errors.New("otp expired")
	ErrSessionNotFound     = errors.New("session not found")
	ErrInvalidToken        = errors.New("invalid token")
)

// Authorization errors
var (
	ErrRoleNotFound = errors.New("role not found")
	ErrForbidden    = errors.New("access denied. insufficient permissions")
)

// Validation and infrastructure errors
var (
	ErrValidationFailed  = errors.New("validation failed")
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrWeakPassword      = errors.New("password does not meet requirements")
	ErrDependencyFailure = errors.New("dependency unavailable")
)

// LockedError is returned when a login is attempted on a locked account.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s (until %s)", ErrAccountLocked.Error(), e.Until.UTC().Format(time.RFC3339))
}

func (e *LockedError) Unwrap() error { return ErrAccountLocked }

// PasswordExpiredError tells the caller to start the password reset flow.
type PasswordExpiredError struct {
	RequiresReset bool
}

func (e *PasswordExpiredError) Error() string { return ErrPasswordExpired.Error() }

func (e *PasswordExpiredError) Unwrap() error { return ErrPasswordExpired }

// ValidationError describes rejected caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// DependencyError wraps a failure of the store or mail collaborator.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DependencyError) Unwrap() []error { return []error{ErrDependencyFailure, e.Err} }

// Dependency wraps err as a DependencyError unless it is nil or already one of
// the domain sentinels above.
func Dependency(op string, err error) error {
	if err == nil || IsDomainError(err) {
		return err
	}
	return &DependencyError{Op: op, Err: err}
}

var domainErrors = []error{
	ErrUserNotFound, ErrUserAlreadyExists, ErrInvalidCredentials, ErrAccountLocked,
	ErrPasswordExpired, ErrCannotReusePassword, ErrInvalidCode, ErrCodeExpired,
	ErrSessionNotFound, ErrInvalidToken, ErrRoleNotFound, ErrForbidden,
	ErrValidationFailed, ErrDependencyFailure,
}

// IsDomainError reports whether err matches any domain sentinel.
func IsDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
