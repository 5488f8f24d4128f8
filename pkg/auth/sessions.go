package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-idm-otp/pkg/domain"
)

// SessionRegistry records the clients that reach the OTP stage.
type SessionRegistry struct {
	store  SessionStore
	now    func() time.Time
	logger *slog.Logger
}

// NewSessionRegistry creates a session registry.
func NewSessionRegistry(store SessionStore, now func() time.Time, logger *slog.Logger) *SessionRegistry {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionRegistry{store: store, now: now, logger: logger}
}

// Open records the session unless one with the same sessionID already exists.
// A session presented again by a different client is kept as first recorded
// and the change is logged.
func (r *SessionRegistry) Open(ctx context.Context, userID uuid.UUID, sessionID, userAgent, address string) error {
	now := r.now()
	created, err := r.store.CreateIfAbsent(ctx, &domain.Session{
		ID:           uuid.New(),
		UserID:       userID,
		SessionID:    sessionID,
		UserAgent:    userAgent,
		IPAddress:    address,
		IsActive:     true,
		LastActivity: now,
		CreatedAt:    now,
	})
	if err != nil {
		return domain.Dependency("open session", err)
	}
	if created {
		return nil
	}

	existing, err := r.store.Get(ctx, sessionID)
	if err != nil {
		// The session exists; failing to read it back only loses the audit line.
		r.logger.Warn("session lookup failed", "error", err)
		return nil
	}
	if change := clientChange(existing, userID, address, userAgent); change != "" {
		r.logger.Warn("session reused by a different client",
			"user_id", userID,
			"change", change,
			"opened_by", clientFingerprint(existing.IPAddress, existing.UserAgent),
			"reused_by", clientFingerprint(address, userAgent),
		)
	}
	return nil
}

// Touch bumps the last-activity time. Unknown sessions are ignored.
func (r *SessionRegistry) Touch(ctx context.Context, sessionID string) error {
	err := r.store.Touch(ctx, sessionID, r.now())
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return domain.Dependency("touch session", err)
	}
	return nil
}
