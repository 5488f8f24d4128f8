package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-idm-otp/pkg/domain"
)

// UserStore persists user identity and credential state.
type UserStore interface {
	// Create inserts a new user. Returns domain.ErrUserAlreadyExists if the email is taken.
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	List(ctx context.Context) ([]*domain.User, error)

	// IncrementFailedLoginAttempts atomically bumps the counter and sets
	// locked_until to lockUntil once the counter reaches maxAttempts.
	IncrementFailedLoginAttempts(ctx context.Context, id uuid.UUID, maxAttempts int, lockUntil time.Time) (*domain.LockState, error)
	ResetFailedLoginAttempts(ctx context.Context, id uuid.UUID) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string, changedAt time.Time) error
}

// PasswordHistoryStore is the append-only log of previous password hashes.
type PasswordHistoryStore interface {
	// ListRecent returns up to limit entries, newest first.
	ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.PasswordHistoryEntry, error)
	Append(ctx context.Context, entry *domain.PasswordHistoryEntry) error
	// Prune deletes all but the keep newest entries of the user.
	Prune(ctx context.Context, userID uuid.UUID, keep int) error
}

// OTPStore persists one-time codes.
type OTPStore interface {
	// Replace deletes every unconsumed code for the (user, session, purpose)
	// tuple of code and inserts code, atomically with respect to other
	// Replace calls for the same tuple.
	Replace(ctx context.Context, code *domain.OneTimeCode) error
	// FindUnused returns the unconsumed code matching all four fields, or
	// domain.ErrInvalidCode.
	FindUnused(ctx context.Context, userID uuid.UUID, code, sessionID string, purpose domain.OTPPurpose) (*domain.OneTimeCode, error)
	// MarkUsed flips the used flag with compare-and-set semantics. Returns
	// domain.ErrInvalidCode if the code was already consumed or superseded.
	MarkUsed(ctx context.Context, code *domain.OneTimeCode) error
}

// SessionStore persists client session records.
type SessionStore interface {
	// CreateIfAbsent inserts session unless one with the same SessionID exists.
	CreateIfAbsent(ctx context.Context, session *domain.Session) (bool, error)
	Touch(ctx context.Context, sessionID string, at time.Time) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
}

// RoleStore is the authorization collaborator. The core only looks roles up,
// attaches them to users and asks for permission checks.
type RoleStore interface {
	GetByName(ctx context.Context, name string) (*domain.Role, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Role, error)
	AttachToUser(ctx context.Context, userID, roleID uuid.UUID) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Role, error)
	HasPermission(ctx context.Context, userID uuid.UUID, permission string) (bool, error)
}

// Mailer delivers codes out of band.
type Mailer interface {
	SendOTP(ctx context.Context, to, code string, purpose domain.OTPPurpose) error
}

// Observer receives auth outcomes, typically for metrics.
type Observer interface {
	LoginAttempt(outcome string)
	AccountLocked()
	OTPIssued(purpose domain.OTPPurpose)
	OTPVerified(purpose domain.OTPPurpose, outcome string)
}

type nopObserver struct{}

func (nopObserver) LoginAttempt(string)                    {}
func (nopObserver) AccountLocked()                         {}
func (nopObserver) OTPIssued(domain.OTPPurpose)            {}
func (nopObserver) OTPVerified(domain.OTPPurpose, string) {}
