package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-idm-otp/pkg/domain"
)

// DefaultOTPTTL is how long an issued code stays verifiable.
const DefaultOTPTTL = 3 * time.Minute

// OTPService issues and consumes one-time codes scoped to (user, session, purpose).
type OTPService struct {
	codes    OTPStore
	users    UserStore
	ttl      time.Duration
	now      func() time.Time
	generate func() (string, error)
	observer Observer
	logger   *slog.Logger
}

// NewOTPService creates an OTP service.
func NewOTPService(codes OTPStore, users UserStore, ttl time.Duration, now func() time.Time, observer Observer, logger *slog.Logger) *OTPService {
	if ttl == 0 {
		ttl = DefaultOTPTTL
	}
	if now == nil {
		now = time.Now
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OTPService{
		codes:    codes,
		users:    users,
		ttl:      ttl,
		now:      now,
		generate: GenerateOTPCode,
		observer: observer,
		logger:   logger,
	}
}

// Issue creates a new code for the tuple, superseding any unconsumed one,
// and returns the plaintext for delivery.
func (s *OTPService) Issue(ctx context.Context, userID uuid.UUID, sessionID string, purpose domain.OTPPurpose) (string, error) {
	code, err := s.generate()
	if err != nil {
		return "", err
	}

	now := s.now()
	otp := &domain.OneTimeCode{
		ID:        uuid.New(),
		UserID:    userID,
		Code:      code,
		SessionID: sessionID,
		Purpose:   purpose,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.codes.Replace(ctx, otp); err != nil {
		return "", domain.Dependency("store otp", err)
	}

	s.observer.OTPIssued(purpose)
	s.logger.Info("otp issued", "user_id", userID, "purpose", purpose, "session_id", sessionID)
	return code, nil
}

// Verify consumes the code and returns its user. Wrong, superseded, already
// used and never requested codes all fail with domain.ErrInvalidCode.
func (s *OTPService) Verify(ctx context.Context, email, code, sessionID string, purpose domain.OTPPurpose) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.observer.OTPVerified(purpose, "not_found")
			return nil, domain.ErrUserNotFound
		}
		return nil, domain.Dependency("get user", err)
	}

	otp, err := s.codes.FindUnused(ctx, user.ID, code, sessionID, purpose)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCode) {
			s.fail(user, purpose, "invalid")
			return nil, domain.ErrInvalidCode
		}
		return nil, domain.Dependency("find otp", err)
	}

	if otp.IsExpired(s.now()) {
		s.fail(user, purpose, "expired")
		return nil, domain.ErrCodeExpired
	}

	if err := s.codes.MarkUsed(ctx, otp); err != nil {
		if errors.Is(err, domain.ErrInvalidCode) {
			// Lost the race to a concurrent verify or issue.
			s.fail(user, purpose, "invalid")
			return nil, domain.ErrInvalidCode
		}
		return nil, domain.Dependency("consume otp", err)
	}

	s.observer.OTPVerified(purpose, "success")
	return user, nil
}

func (s *OTPService) fail(user *domain.User, purpose domain.OTPPurpose, reason string) {
	s.observer.OTPVerified(purpose, reason)
	s.logger.Warn("otp verification failed", "user_id", user.ID, "purpose", purpose, "reason", reason)
}
