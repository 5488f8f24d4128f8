package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/tendant/simple-idm-otp/pkg/domain"
)

// OTPRepository handles one-time code persistence.
type OTPRepository struct {
	db *sql.DB
}

// NewOTPRepository creates a new OTP repository.
func NewOTPRepository(db *sql.DB) *OTPRepository {
	return &OTPRepository{db: db}
}

// Replace deletes unconsumed codes for the tuple and inserts code in one
// transaction. A transaction-scoped advisory lock on the tuple serializes
// concurrent issuers.
func (r *OTPRepository) Replace(ctx context.Context, code *domain.OneTimeCode) error {
	return Tx(ctx, r.db, func(tx *sql.Tx) error {
		lockKey := code.UserID.String() + "|" + code.SessionID + "|" + string(code.Purpose)
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
			return err
		}

		deleteQuery := `
			DELETE FROM otps
			WHERE user_id = $1 AND session_id = $2 AND purpose = $3 AND is_used = FALSE
		`
		if _, err := tx.ExecContext(ctx, deleteQuery, code.UserID, code.SessionID, code.Purpose); err != nil {
			return err
		}

		insertQuery := `
			INSERT INTO otps (id, user_id, code, session_id, purpose, expires_at, is_used, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		`
		_, err := tx.ExecContext(ctx, insertQuery,
			code.ID, code.UserID, code.Code, code.SessionID, code.Purpose, code.ExpiresAt, code.CreatedAt,
		)
		return err
	})
}

// FindUnused returns the unconsumed code matching all fields.
func (r *OTPRepository) FindUnused(ctx context.Context, userID uuid.UUID, code, sessionID string, purpose domain.OTPPurpose) (*domain.OneTimeCode, error) {
	query := `
		SELECT id, user_id, code, session_id, purpose, expires_at, is_used, created_at
		FROM otps
		WHERE user_id = $1 AND code = $2 AND session_id = $3 AND purpose = $4 AND is_used = FALSE
	`
	otp := &domain.OneTimeCode{}
	err := r.db.QueryRowContext(ctx, query, userID, code, sessionID, purpose).Scan(
		&otp.ID, &otp.UserID, &otp.Code, &otp.SessionID, &otp.Purpose,
		&otp.ExpiresAt, &otp.IsUsed, &otp.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrInvalidCode
	}
	if err != nil {
		return nil, err
	}
	return otp, nil
}

// MarkUsed flips is_used only if it is still false.
func (r *OTPRepository) MarkUsed(ctx context.Context, code *domain.OneTimeCode) error {
	return execOne(ctx, r.db, domain.ErrInvalidCode,
		`UPDATE otps SET is_used = TRUE WHERE id = $1 AND is_used = FALSE`, code.ID)
}
