package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-idm-otp/pkg/domain"
)

// UsersRepository handles user persistence.
type UsersRepository struct {
	db *sql.DB
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *sql.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

const userColumns = `id, name, email, password_hash, is_active, failed_login_attempts, locked_until,
	last_password_change, is_invited, invited_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	var invitedBy uuid.NullUUID
	var lockedUntil sql.NullTime
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.IsActive,
		&user.FailedLoginAttempts, &lockedUntil, &user.LastPasswordChange,
		&user.IsInvited, &invitedBy, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lockedUntil.Valid {
		user.LockedUntil = &lockedUntil.Time
	}
	if invitedBy.Valid {
		user.InvitedBy = &invitedBy.UUID
	}
	return user, nil
}

// Create creates a new user.
func (r *UsersRepository) Create(ctx context.Context, user *domain.User) error {
	return r.CreateTx(ctx, r.db, user)
}

// CreateTx creates a new user using q, which may be a transaction.
func (r *UsersRepository) CreateTx(ctx context.Context, q Querier, user *domain.User) error {
	query := `
		INSERT INTO users (id, name, email, password_hash, is_active, failed_login_attempts,
		                   last_password_change, is_invited, invited_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, $9, $10)
	`
	var invitedBy uuid.NullUUID
	if user.InvitedBy != nil {
		invitedBy = uuid.NullUUID{UUID: *user.InvitedBy, Valid: true}
	}
	_, err := q.ExecContext(ctx, query,
		user.ID, user.Name, user.Email, user.PasswordHash, user.IsActive,
		user.LastPasswordChange, user.IsInvited, invitedBy, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrUserAlreadyExists
	}
	return err
}

// GetByID retrieves a user by ID.
func (r *UsersRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	return user, err
}

// GetByEmail retrieves a user by email.
func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	return user, err
}

// ExistsByEmail checks if a user with the given email exists.
func (r *UsersRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	return exists, err
}

// List returns all users ordered by creation time.
func (r *UsersRepository) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// IncrementFailedLoginAttempts increments the counter and, once it reaches
// maxAttempts, sets locked_until in the same statement.
func (r *UsersRepository) IncrementFailedLoginAttempts(ctx context.Context, id uuid.UUID, maxAttempts int, lockUntil time.Time) (*domain.LockState, error) {
	query := `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = CASE
		        WHEN failed_login_attempts + 1 >= $2 THEN $3::timestamptz
		        ELSE locked_until
		    END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING failed_login_attempts, locked_until
	`
	var state domain.LockState
	var lockedUntil sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id, maxAttempts, lockUntil).Scan(&state.Attempts, &lockedUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if state.Attempts >= maxAttempts && lockedUntil.Valid {
		state.Locked = true
		state.LockedUntil = &lockedUntil.Time
	}
	return &state, nil
}

// ResetFailedLoginAttempts resets the failed login attempts and clears lockout.
func (r *UsersRepository) ResetFailedLoginAttempts(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0,
		    locked_until = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`
	return execOne(ctx, r.db, domain.ErrUserNotFound, query, id)
}

// UpdatePassword stores a new password hash and its change time.
func (r *UsersRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string, changedAt time.Time) error {
	query := `
		UPDATE users
		SET password_hash = $2, last_password_change = $3, updated_at = $3
		WHERE id = $1
	`
	return execOne(ctx, r.db, domain.ErrUserNotFound, query, id, hash, changedAt)
}

// SetActive enables or disables a user.
func (r *UsersRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return execOne(ctx, r.db, domain.ErrUserNotFound,
		`UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
}

// execOne runs a statement that must touch exactly one row, returning notFound otherwise.
func execOne(ctx context.Context, q Querier, notFound error, query string, args ...any) error {
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
