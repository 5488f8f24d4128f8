package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-idm-otp/pkg/domain"
)

// PasswordHistoryRepository keeps password history per user, newest first.
type PasswordHistoryRepository struct {
	mu      sync.Mutex
	entries map[uuid.UUID][]*domain.PasswordHistoryEntry
}

// NewPasswordHistoryRepository creates an empty history repository.
func NewPasswordHistoryRepository() *PasswordHistoryRepository {
	return &PasswordHistoryRepository{entries: make(map[uuid.UUID][]*domain.PasswordHistoryEntry)}
}

// ListRecent returns up to limit entries, newest first.
func (r *PasswordHistoryRepository) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.PasswordHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.entries[userID]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]*domain.PasswordHistoryEntry, len(list))
	for i, e := range list {
		c := *e
		out[i] = &c
	}
	return out, nil
}

// Append adds an entry.
func (r *PasswordHistoryRepository) Append(ctx context.Context, entry *domain.PasswordHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *entry
	list := append([]*domain.PasswordHistoryEntry{&c}, r.entries[entry.UserID]...)
	// Newest first. The new entry is prepended, so a stable sort keeps it
	// ahead of older entries sharing its timestamp.
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	r.entries[entry.UserID] = list
	return nil
}

// Prune keeps the keep newest entries.
func (r *PasswordHistoryRepository) Prune(ctx context.Context, userID uuid.UUID, keep int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if list := r.entries[userID]; len(list) > keep {
		r.entries[userID] = list[:keep]
	}
	return nil
}
