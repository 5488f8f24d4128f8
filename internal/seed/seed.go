// Package seed loads the permission and role catalogue from YAML and writes
// it to the role store. Seeding upserts by name, so it is safe on every start.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/tendant/simple-idm-otp/pkg/auth"
	"github.com/tendant/simple-idm-otp/pkg/domain"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultSeed []byte

// AllPermissions in a role's permission list expands to every permission in
// the file.
const AllPermissions = "*"

type Permission struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
}

type Role struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	System      bool     `yaml:"system"`
	Permissions []string `yaml:"permissions"`
}

// File is the seed document.
type File struct {
	Permissions []Permission `yaml:"permissions"`
	Roles       []Role       `yaml:"roles"`
}

// Store is the write side of the role store.
type Store interface {
	UpsertPermission(ctx context.Context, p *domain.Permission) error
	UpsertRole(ctx context.Context, role *domain.Role) error
}

// Load reads the seed file at path, or the embedded default when path is empty.
func Load(path string) (*File, error) {
	data := defaultSeed
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read seed file: %w", err)
		}
	}
	return Parse(data)
}

// Parse decodes and validates a seed document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	known := make(map[string]bool, len(f.Permissions))
	for _, p := range f.Permissions {
		if p.Name == "" {
			return nil, errors.New("seed permission without name")
		}
		known[p.Name] = true
	}
	for _, r := range f.Roles {
		if r.Name == "" {
			return nil, errors.New("seed role without name")
		}
		for _, name := range r.Permissions {
			if name != AllPermissions && !known[name] {
				return nil, fmt.Errorf("role %q references unknown permission %q", r.Name, name)
			}
		}
	}
	return &f, nil
}

// Apply upserts every permission, then every role.
func Apply(ctx context.Context, store Store, f *File, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	all := make([]string, 0, len(f.Permissions))
	for _, p := range f.Permissions {
		perm := &domain.Permission{Name: p.Name, Description: p.Description, Category: p.Category}
		if err := store.UpsertPermission(ctx, perm); err != nil {
			return fmt.Errorf("seed permission %q: %w", p.Name, err)
		}
		all = append(all, p.Name)
	}

	for _, r := range f.Roles {
		role := &domain.Role{
			Name:        r.Name,
			Description: r.Description,
			IsSystem:    r.System,
			Permissions: expand(r.Permissions, all),
		}
		if err := store.UpsertRole(ctx, role); err != nil {
			return fmt.Errorf("seed role %q: %w", r.Name, err)
		}
	}

	logger.Info("seed applied", "permissions", len(f.Permissions), "roles", len(f.Roles))
	return nil
}

func expand(names, all []string) []string {
	for _, n := range names {
		if n == AllPermissions {
			return append([]string(nil), all...)
		}
	}
	return append([]string(nil), names...)
}

// Accounts is the part of the auth service the bootstrap needs.
type Accounts interface {
	Signup(ctx context.Context, in auth.SignupInput) (*domain.User, error)
	AttachRole(ctx context.Context, userID uuid.UUID, roleName string) error
}

// BootstrapAdmin signs up an administrator and grants it Super Admin. An
// existing account with that email is left untouched.
func BootstrapAdmin(ctx context.Context, accounts Accounts, email, password string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	user, err := accounts.Signup(ctx, auth.SignupInput{Name: "Administrator", Email: email, Password: password})
	if errors.Is(err, domain.ErrUserAlreadyExists) {
		logger.Info("bootstrap admin already exists", "email", auth.MaskEmail(email))
		return nil
	}
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	if err := accounts.AttachRole(ctx, user.ID, domain.RoleSuperAdmin); err != nil {
		return fmt.Errorf("bootstrap admin role: %w", err)
	}
	logger.Info("bootstrap admin created", "user_id", user.ID, "email", auth.MaskEmail(email))
	return nil
}
