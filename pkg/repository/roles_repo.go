package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/tendant/simple-idm-otp/pkg/domain"
)

// RolesRepository handles roles, permissions and their links to users.
type RolesRepository struct {
	db *sql.DB
}

// NewRolesRepository creates a new roles repository.
func NewRolesRepository(db *sql.DB) *RolesRepository {
	return &RolesRepository{db: db}
}

const roleSelect = `
	SELECT r.id, r.name, r.description, r.is_system,
	       COALESCE(array_agg(p.name ORDER BY p.name) FILTER (WHERE p.name IS NOT NULL), '{}')
	FROM roles r
	LEFT JOIN role_permissions rp ON rp.role_id = r.id
	LEFT JOIN permissions p ON p.id = rp.permission_id
`

func scanRole(row rowScanner) (*domain.Role, error) {
	role := &domain.Role{}
	var perms pq.StringArray
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem, &perms); err != nil {
		return nil, err
	}
	role.Permissions = []string(perms)
	return role, nil
}

// GetByName retrieves a role by name.
func (r *RolesRepository) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	query := roleSelect + ` WHERE r.name = $1 GROUP BY r.id`
	role, err := scanRole(r.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRoleNotFound
	}
	return role, err
}

// GetByID retrieves a role by ID.
func (r *RolesRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Role, error) {
	query := roleSelect + ` WHERE r.id = $1 GROUP BY r.id`
	role, err := scanRole(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRoleNotFound
	}
	return role, err
}

// AttachToUser links a role to a user. Attaching twice is a no-op.
func (r *RolesRepository) AttachToUser(ctx context.Context, userID, roleID uuid.UUID) error {
	query := `
		INSERT INTO user_roles (user_id, role_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, role_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, userID, roleID)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" {
		return domain.ErrRoleNotFound
	}
	return err
}

// ListForUser returns the user's roles sorted by name.
func (r *RolesRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Role, error) {
	query := roleSelect + `
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		GROUP BY r.id
		ORDER BY r.name
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*domain.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// HasPermission reports whether any of the user's roles grants permission.
func (r *RolesRepository) HasPermission(ctx context.Context, userID uuid.UUID, permission string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1
			FROM user_roles ur
			JOIN role_permissions rp ON rp.role_id = ur.role_id
			JOIN permissions p ON p.id = rp.permission_id
			WHERE ur.user_id = $1 AND p.name = $2
		)
	`
	var ok bool
	err := r.db.QueryRowContext(ctx, query, userID, permission).Scan(&ok)
	return ok, err
}

// UpsertPermission creates or updates a permission by name.
func (r *RolesRepository) UpsertPermission(ctx context.Context, p *domain.Permission) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query := `
		INSERT INTO permissions (id, name, description, category)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description, category = EXCLUDED.category
		RETURNING id
	`
	return r.db.QueryRowContext(ctx, query, p.ID, p.Name, p.Description, p.Category).Scan(&p.ID)
}

// UpsertRole creates or updates a role by name and replaces its permission set
// in one transaction. Every permission must already exist.
func (r *RolesRepository) UpsertRole(ctx context.Context, role *domain.Role) error {
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	return Tx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO roles (id, name, description, is_system)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description, is_system = EXCLUDED.is_system
			RETURNING id
		`
		if err := tx.QueryRowContext(ctx, query, role.ID, role.Name, role.Description, role.IsSystem).Scan(&role.ID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, role.ID); err != nil {
			return err
		}

		link := `
			INSERT INTO role_permissions (role_id, permission_id)
			SELECT $1, id FROM permissions WHERE name = ANY($2)
		`
		result, err := tx.ExecContext(ctx, link, role.ID, pq.Array(role.Permissions))
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if int(n) != len(role.Permissions) {
			return fmt.Errorf("role %q: %d of %d permissions exist", role.Name, n, len(role.Permissions))
		}
		return nil
	})
}
