package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-idm-otp/pkg/domain"
)

// DefaultHistorySize is how many previous passwords are remembered.
const DefaultHistorySize = 3

// PasswordHistory blocks reuse of the most recent passwords.
type PasswordHistory struct {
	store PasswordHistoryStore
	size  int
	now   func() time.Time
}

// NewPasswordHistory creates a ledger keeping size entries per user.
func NewPasswordHistory(store PasswordHistoryStore, size int, now func() time.Time) *PasswordHistory {
	if size <= 0 {
		size = DefaultHistorySize
	}
	if now == nil {
		now = time.Now
	}
	return &PasswordHistory{store: store, size: size, now: now}
}

// CanUse reports whether candidate differs from every remembered password.
// A nil userID has no history, so any candidate is allowed.
func (h *PasswordHistory) CanUse(ctx context.Context, userID *uuid.UUID, candidate string) (bool, error) {
	if userID == nil {
		return true, nil
	}
	entries, err := h.store.ListRecent(ctx, *userID, h.size)
	if err != nil {
		return false, domain.Dependency("list password history", err)
	}
	// Compare against every entry so the timing does not reveal which one matched.
	allowed := true
	for _, e := range entries {
		if VerifyPassword(candidate, e.PasswordHash) {
			allowed = false
		}
	}
	return allowed, nil
}

// Record appends hash and prunes the user's history to the newest entries.
func (h *PasswordHistory) Record(ctx context.Context, userID uuid.UUID, hash string) error {
	entry := &domain.PasswordHistoryEntry{
		ID:           uuid.New(),
		UserID:       userID,
		PasswordHash: hash,
		CreatedAt:    h.now(),
	}
	if err := h.store.Append(ctx, entry); err != nil {
		return domain.Dependency("append password history", err)
	}
	if err := h.store.Prune(ctx, userID, h.size); err != nil {
		return domain.Dependency("prune password history", err)
	}
	return nil
}
