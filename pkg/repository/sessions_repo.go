package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tendant/simple-idm-otp/pkg/domain"
)

// SessionsRepository handles session persistence.
type SessionsRepository struct {
	db *sql.DB
}

// NewSessionsRepository creates a new sessions repository.
func NewSessionsRepository(db *sql.DB) *SessionsRepository {
	return &SessionsRepository{db: db}
}

// CreateIfAbsent inserts the session unless its session_id is already recorded.
func (r *SessionsRepository) CreateIfAbsent(ctx context.Context, session *domain.Session) (bool, error) {
	query := `
		INSERT INTO sessions (id, user_id, session_id, user_agent, ip_address, is_active, last_activity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query,
		session.ID, session.UserID, session.SessionID, session.UserAgent, session.IPAddress,
		session.IsActive, session.LastActivity, session.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// Touch updates last_activity of an active session.
func (r *SessionsRepository) Touch(ctx context.Context, sessionID string, at time.Time) error {
	return execOne(ctx, r.db, domain.ErrSessionNotFound,
		`UPDATE sessions SET last_activity = $2 WHERE session_id = $1 AND is_active = TRUE`, sessionID, at)
}

// Get retrieves a session by its client identifier.
func (r *SessionsRepository) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	query := `
		SELECT id, user_id, session_id, user_agent, ip_address, is_active, last_activity, created_at
		FROM sessions
		WHERE session_id = $1
	`
	s := &domain.Session{}
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&s.ID, &s.UserID, &s.SessionID, &s.UserAgent, &s.IPAddress,
		&s.IsActive, &s.LastActivity, &s.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
