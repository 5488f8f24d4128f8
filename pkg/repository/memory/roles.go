package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-idm-otp/pkg/domain"
)

// RolesRepository holds roles, permissions and user-role links.
type RolesRepository struct {
	mu          sync.RWMutex
	roles       map[uuid.UUID]*domain.Role
	roleByName  map[string]uuid.UUID
	permissions map[string]*domain.Permission
	userRoles   map[uuid.UUID]map[uuid.UUID]bool
}

// NewRolesRepository creates an empty roles repository.
func NewRolesRepository() *RolesRepository {
	return &RolesRepository{
		roles:       make(map[uuid.UUID]*domain.Role),
		roleByName:  make(map[string]uuid.UUID),
		permissions: make(map[string]*domain.Permission),
		userRoles:   make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func cloneRole(r *domain.Role) *domain.Role {
	c := *r
	c.Permissions = append([]string(nil), r.Permissions...)
	return &c
}

// GetByName retrieves a role by name.
func (r *RolesRepository) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.roleByName[name]
	if !ok {
		return nil, domain.ErrRoleNotFound
	}
	return cloneRole(r.roles[id]), nil
}

// GetByID retrieves a role by ID.
func (r *RolesRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	role, ok := r.roles[id]
	if !ok {
		return nil, domain.ErrRoleNotFound
	}
	return cloneRole(role), nil
}

// AttachToUser links a role to a user. Attaching twice is a no-op.
func (r *RolesRepository) AttachToUser(ctx context.Context, userID, roleID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roles[roleID]; !ok {
		return domain.ErrRoleNotFound
	}
	if r.userRoles[userID] == nil {
		r.userRoles[userID] = make(map[uuid.UUID]bool)
	}
	r.userRoles[userID][roleID] = true
	return nil
}

// ListForUser returns the user's roles sorted by name.
func (r *RolesRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roles := make([]*domain.Role, 0, len(r.userRoles[userID]))
	for id := range r.userRoles[userID] {
		roles = append(roles, cloneRole(r.roles[id]))
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

// HasPermission reports whether any of the user's roles grants permission.
func (r *RolesRepository) HasPermission(ctx context.Context, userID uuid.UUID, permission string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id := range r.userRoles[userID] {
		for _, p := range r.roles[id].Permissions {
			if p == permission {
				return true, nil
			}
		}
	}
	return false, nil
}

// UpsertPermission creates or updates a permission by name.
func (r *RolesRepository) UpsertPermission(ctx context.Context, p *domain.Permission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.permissions[p.Name]; ok {
		p.ID = existing.ID
	} else if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	c := *p
	r.permissions[p.Name] = &c
	return nil
}

// UpsertRole creates or updates a role by name and replaces its permissions.
// Every permission must already exist.
func (r *RolesRepository) UpsertRole(ctx context.Context, role *domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range role.Permissions {
		if _, ok := r.permissions[name]; !ok {
			return fmt.Errorf("role %q: unknown permission %q", role.Name, name)
		}
	}

	if id, ok := r.roleByName[role.Name]; ok {
		role.ID = id
	} else if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	r.roles[role.ID] = cloneRole(role)
	r.roleByName[role.Name] = role.ID
	return nil
}
