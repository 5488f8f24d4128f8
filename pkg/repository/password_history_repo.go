package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/tendant/simple-idm-otp/pkg/domain"
)

// PasswordHistoryRepository handles password history persistence.
type PasswordHistoryRepository struct {
	db *sql.DB
}

// NewPasswordHistoryRepository creates a new password history repository.
func NewPasswordHistoryRepository(db *sql.DB) *PasswordHistoryRepository {
	return &PasswordHistoryRepository{db: db}
}

// ListRecent returns up to limit entries, newest first.
func (r *PasswordHistoryRepository) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.PasswordHistoryEntry, error) {
	query := `
		SELECT id, user_id, password_hash, created_at
		FROM password_history
		WHERE user_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.PasswordHistoryEntry
	for rows.Next() {
		e := &domain.PasswordHistoryEntry{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.PasswordHash, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Append inserts a history entry.
func (r *PasswordHistoryRepository) Append(ctx context.Context, entry *domain.PasswordHistoryEntry) error {
	query := `
		INSERT INTO password_history (id, user_id, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query, entry.ID, entry.UserID, entry.PasswordHash, entry.CreatedAt)
	return err
}

// Prune deletes all but the keep newest entries of the user.
func (r *PasswordHistoryRepository) Prune(ctx context.Context, userID uuid.UUID, keep int) error {
	query := `
		DELETE FROM password_history
		WHERE user_id = $1
		  AND id NOT IN (
		      SELECT id FROM password_history
		      WHERE user_id = $1
		      ORDER BY created_at DESC, seq DESC
		      LIMIT $2
		  )
	`
	_, err := r.db.ExecContext(ctx, query, userID, keep)
	return err
}
