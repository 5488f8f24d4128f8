package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-idm-otp/pkg/domain"
)

// OTPRepository stores one-time codes. A single mutex makes Replace and
// MarkUsed atomic.
type OTPRepository struct {
	mu    sync.Mutex
	codes map[uuid.UUID]*domain.OneTimeCode
}

// NewOTPRepository creates an empty OTP repository.
func NewOTPRepository() *OTPRepository {
	return &OTPRepository{codes: make(map[uuid.UUID]*domain.OneTimeCode)}
}

func sameTuple(a, b *domain.OneTimeCode) bool {
	return a.UserID == b.UserID && a.SessionID == b.SessionID && a.Purpose == b.Purpose
}

// Replace deletes unconsumed codes for the tuple and inserts code.
func (r *OTPRepository) Replace(ctx context.Context, code *domain.OneTimeCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, existing := range r.codes {
		if !existing.IsUsed && sameTuple(existing, code) {
			delete(r.codes, id)
		}
	}
	c := *code
	r.codes[c.ID] = &c
	return nil
}

// FindUnused returns the unconsumed code matching all fields.
func (r *OTPRepository) FindUnused(ctx context.Context, userID uuid.UUID, code, sessionID string, purpose domain.OTPPurpose) (*domain.OneTimeCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.codes {
		if !c.IsUsed && c.UserID == userID && c.Code == code && c.SessionID == sessionID && c.Purpose == purpose {
			out := *c
			return &out, nil
		}
	}
	return nil, domain.ErrInvalidCode
}

// MarkUsed consumes the code if it is still present and unused.
func (r *OTPRepository) MarkUsed(ctx context.Context, code *domain.OneTimeCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.codes[code.ID]
	if !ok || c.IsUsed {
		return domain.ErrInvalidCode
	}
	c.IsUsed = true
	return nil
}

// Count returns how many codes exist for the tuple, consumed or not.
func (r *OTPRepository) Count(userID uuid.UUID, sessionID string, purpose domain.OTPPurpose) (total, unused int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	probe := &domain.OneTimeCode{UserID: userID, SessionID: sessionID, Purpose: purpose}
	for _, c := range r.codes {
		if sameTuple(c, probe) {
			total++
			if !c.IsUsed {
				unused++
			}
		}
	}
	return total, unused
}
