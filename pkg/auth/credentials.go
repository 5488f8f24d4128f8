package auth

import (
	"context"
	"sync"
	"time"

	"github.com/tendant/simple-idm-otp/pkg/domain"
)

// Lockout and expiry defaults.
const (
	DefaultLockoutThreshold = 3
	DefaultLockoutDuration  = 30 * time.Minute
	DefaultPasswordMaxAge   = 10 * 24 * time.Hour
)

// CredentialStore owns the password, failure counter and lockout fields of a user.
type CredentialStore struct {
	users            UserStore
	cost             int
	lockoutThreshold int
	lockoutDuration  time.Duration
	maxAge           time.Duration
	now              func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewCredentialStore creates a credential store. Zero values select the defaults.
func NewCredentialStore(users UserStore, cost, lockoutThreshold int, lockoutDuration, maxAge time.Duration, now func() time.Time) *CredentialStore {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if lockoutThreshold == 0 {
		lockoutThreshold = DefaultLockoutThreshold
	}
	if lockoutDuration == 0 {
		lockoutDuration = DefaultLockoutDuration
	}
	if maxAge == 0 {
		maxAge = DefaultPasswordMaxAge
	}
	if now == nil {
		now = time.Now
	}
	return &CredentialStore{
		users:            users,
		cost:             cost,
		lockoutThreshold: lockoutThreshold,
		lockoutDuration:  lockoutDuration,
		maxAge:           maxAge,
		now:              now,
	}
}

// VerifyPassword reports whether plaintext matches the stored hash. A nil
// user is compared against a fixed hash so unknown emails cost the same.
func (c *CredentialStore) VerifyPassword(user *domain.User, plaintext string) bool {
	if user == nil || user.PasswordHash == "" {
		c.dummyOnce.Do(func() {
			c.dummyHash, _ = HashPassword("unused-placeholder", c.cost)
		})
		VerifyPassword(plaintext, c.dummyHash)
		return false
	}
	return VerifyPassword(plaintext, user.PasswordHash)
}

// RecordFailedAttempt increments the failure counter in one atomic store
// update, locking the account once the threshold is reached.
func (c *CredentialStore) RecordFailedAttempt(ctx context.Context, user *domain.User) (*domain.LockState, error) {
	lockUntil := c.now().Add(c.lockoutDuration)
	state, err := c.users.IncrementFailedLoginAttempts(ctx, user.ID, c.lockoutThreshold, lockUntil)
	if err != nil {
		return nil, domain.Dependency("record failed attempt", err)
	}
	user.FailedLoginAttempts = state.Attempts
	if state.Locked {
		user.LockedUntil = state.LockedUntil
	}
	return state, nil
}

// ResetFailures clears the counter and lockout. No write happens when there is nothing to clear.
func (c *CredentialStore) ResetFailures(ctx context.Context, user *domain.User) error {
	if user.FailedLoginAttempts == 0 && user.LockedUntil == nil {
		return nil
	}
	if err := c.users.ResetFailedLoginAttempts(ctx, user.ID); err != nil {
		return domain.Dependency("reset failed attempts", err)
	}
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	return nil
}

// IsPasswordExpired reports whether the password is older than the max age.
func (c *CredentialStore) IsPasswordExpired(user *domain.User) bool {
	return user.IsPasswordExpired(c.now(), c.maxAge)
}

// HashInto hashes plaintext onto a user value that has not been persisted yet.
func (c *CredentialStore) HashInto(user *domain.User, plaintext string) error {
	hash, err := HashPassword(plaintext, c.cost)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.LastPasswordChange = c.now()
	return nil
}

// SetPassword hashes plaintext and persists it as the user's password.
func (c *CredentialStore) SetPassword(ctx context.Context, user *domain.User, plaintext string) error {
	if err := c.HashInto(user, plaintext); err != nil {
		return err
	}
	if err := c.users.UpdatePassword(ctx, user.ID, user.PasswordHash, user.LastPasswordChange); err != nil {
		return domain.Dependency("update password", err)
	}
	return nil
}
