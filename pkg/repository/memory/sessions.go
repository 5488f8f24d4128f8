package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tendant/simple-idm-otp/pkg/domain"
)

// SessionsRepository stores sessions keyed by the client session identifier.
type SessionsRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

// NewSessionsRepository creates an empty sessions repository.
func NewSessionsRepository() *SessionsRepository {
	return &SessionsRepository{sessions: make(map[string]*domain.Session)}
}

// CreateIfAbsent inserts session unless its SessionID is taken.
func (r *SessionsRepository) CreateIfAbsent(ctx context.Context, session *domain.Session) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.SessionID]; ok {
		return false, nil
	}
	c := *session
	r.sessions[c.SessionID] = &c
	return true, nil
}

// Touch updates the last-activity time.
func (r *SessionsRepository) Touch(ctx context.Context, sessionID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.LastActivity = at
	return nil
}

// Get returns a session by its client identifier.
func (r *SessionsRepository) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	c := *s
	return &c, nil
}

// Len returns the number of stored sessions.
func (r *SessionsRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
