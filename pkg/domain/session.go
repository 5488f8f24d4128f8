package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session records the client that reached the OTP stage of a login.
type Session struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	SessionID    string
	UserAgent    string
	IPAddress    string
	IsActive     bool
	LastActivity time.Time
	CreatedAt    time.Time
}

// TokenClaims is the identity embedded in an issued bearer token.
type TokenClaims struct {
	UserID    uuid.UUID
	Email     string
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Role is a named group of permissions.
type Role struct {
	ID          uuid.UUID
	Name        string
	Description string
	IsSystem    bool
	Permissions []string
}

// Permission is a named capability such as "user.create".
type Permission struct {
	ID          uuid.UUID
	Name        string
	Description string
	Category    string
}

// Default role and permission names.
const (
	RoleSuperAdmin = "Super Admin"
	RoleViewer     = "Viewer"

	PermissionUserCreate = "user.create"
	PermissionUserView   = "user.view"
)
