package domain

import (
	"context"
	"time"
)

// Tenant represents an isolated company account. Every other entity hangs off
// a tenant through its TenantID; tenants are created at registration and never
// deleted.
type Tenant struct {
	ID        string // UUID
	Name      string // Unique tenant name
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TenantRepository defines data access for tenants
type TenantRepository interface {
	GetByID(ctx context.Context, id string) (*Tenant, error)
	GetByName(ctx context.Context, name string) (*Tenant, error)
	// CreateWithOwner atomically creates the tenant and its first (owner) user.
	// Either both rows exist afterwards or neither does.
	CreateWithOwner(ctx context.Context, tenant *Tenant, owner *User) error
}

// User belongs to exactly one tenant; (TenantID, Email) is unique. Users are
// soft-disabled via Active=false, never hard-deleted.
type User struct {
	ID           string // UUID
	TenantID     string
	Email        string
	Name         string
	PasswordHash string // Bcrypt hash, never serialized to clients
	Active       bool
	IsOwner      bool
	IsSuperAdmin bool
	Roles        []Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserRepository defines data access for users. Every lookup is scoped by
// tenant: a primary key alone never crosses the tenant boundary.
type UserRepository interface {
	Create(ctx context.Context, user *User, roleIDs []string) error
	GetByID(ctx context.Context, tenantID, id string) (*User, error)
	// GetByEmailWithAccess loads the user plus their roles and each role's
	// permissions, as needed to build a session at login.
	GetByEmailWithAccess(ctx context.Context, tenantID, email string) (*User, error)
	EmailExists(ctx context.Context, tenantID, email string) (bool, error)
	UpdateProfile(ctx context.Context, tenantID, id string, name, email, passwordHash *string) (*User, error)
	SetActive(ctx context.Context, tenantID, id string, active bool) (*User, error)
	// ReconcileRoles diffs the user's current role set against roleIDs and
	// applies only the additions and removals, atomically.
	ReconcileRoles(ctx context.Context, tenantID, id string, roleIDs []string) error
	ListByTenant(ctx context.Context, tenantID string) ([]*User, error)
}

// Role groups permissions inside a tenant. A role carrying at least one
// assigned user cannot be deleted.
type Role struct {
	ID          string // UUID
	TenantID    string
	Name        string
	Description string
	Permissions []Permission
	UserCount   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RoleRepository defines data access for roles
type RoleRepository interface {
	Create(ctx context.Context, role *Role, permissionIDs []string) error
	GetByID(ctx context.Context, tenantID, id string) (*Role, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*Role, error)
	// Update writes the scalar fields when non-nil and, when permissionIDs is
	// non-nil, reconciles the role's permission set by connect/disconnect diff
	// rather than full replacement. Runs in a single transaction.
	Update(ctx context.Context, tenantID, id string, name, description *string, permissionIDs []string) (*Role, error)
	// Delete removes the role; it fails with a ReferencedError when the role
	// is still assigned to one or more users.
	Delete(ctx context.Context, tenantID, id string) error
	CountUsers(ctx context.Context, tenantID, id string) (int, error)
}

// Permission is immutable reference data: one (resource, action) pair per
// tenant, e.g. ("lubrifiant", "read").
type Permission struct {
	ID       string // UUID
	TenantID string
	Resource string
	Action   string
}

// PermissionRepository defines data access for permissions
type PermissionRepository interface {
	ListByTenant(ctx context.Context, tenantID string) ([]Permission, error)
	// ExistAll reports whether every id belongs to the tenant.
	ExistAll(ctx context.Context, tenantID string, ids []string) (bool, error)
	// Seed inserts the (resource, action) catalog for a tenant, skipping pairs
	// that already exist.
	Seed(ctx context.Context, tenantID string, perms []Permission) (int, error)
}
