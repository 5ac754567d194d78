package domain

import (
	"context"
	"time"
)

// Lubrifiant is a lubricant product owned by a tenant. It references a
// TypeLubrifiant and is associated to parcs through an explicit join table.
type Lubrifiant struct {
	ID               string // UUID
	TenantID         string
	Name             string
	TypeLubrifiantID string
	TypeLubrifiant   *TypeLubrifiant
	Parcs            []ParcRef
	SaisieCount      int // usage records referencing this lubricant
	ParcCount        int // join rows referencing this lubricant
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ParcRef is the trimmed parc shape embedded in lubricant responses.
type ParcRef struct {
	ID   string
	Name string
}

// LubrifiantUpdate carries the optional fields of a lubricant update. A nil
// field is left untouched; a nil ParcIDs keeps the current associations.
type LubrifiantUpdate struct {
	Name             *string
	TypeLubrifiantID *string
	ParcIDs          []string
}

// LubrifiantRepository defines data access for lubricants.
//
// Create and Update run in a single transaction: scalar fields first, then the
// parc associations are rebuilt by deleting every existing join row and
// bulk-inserting the submitted set. Readers never observe a half-reconciled
// join table.
type LubrifiantRepository interface {
	Create(ctx context.Context, l *Lubrifiant, parcIDs []string) error
	GetByID(ctx context.Context, tenantID, id string) (*Lubrifiant, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*Lubrifiant, error)
	Update(ctx context.Context, tenantID, id string, upd LubrifiantUpdate) (*Lubrifiant, error)
	// Delete fails with a ReferencedError while usage records or parc
	// associations still reference the lubricant.
	Delete(ctx context.Context, tenantID, id string) error
	ListParcs(ctx context.Context, tenantID, id string) ([]ParcRef, error)
}

// TypeLubrifiant categorizes lubricants within a tenant.
type TypeLubrifiant struct {
	ID              string // UUID
	TenantID        string
	Name            string
	LubrifiantCount int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TypeLubrifiantRepository defines data access for lubricant types
type TypeLubrifiantRepository interface {
	Create(ctx context.Context, t *TypeLubrifiant) error
	GetByID(ctx context.Context, tenantID, id string) (*TypeLubrifiant, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*TypeLubrifiant, error)
	Update(ctx context.Context, tenantID, id string, name *string) (*TypeLubrifiant, error)
	// Delete fails with a ReferencedError while lubricants reference the type.
	Delete(ctx context.Context, tenantID, id string) error
	Exists(ctx context.Context, tenantID, id string) (bool, error)
}

// Parc is an equipment park inside a tenant.
type Parc struct {
	ID        string // UUID
	TenantID  string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ParcRepository defines data access for parcs
type ParcRepository interface {
	Create(ctx context.Context, p *Parc) error
	ListByTenant(ctx context.Context, tenantID string) ([]*Parc, error)
	// ExistAll reports whether every id belongs to the tenant.
	ExistAll(ctx context.Context, tenantID string, ids []string) (bool, error)
}

// DashboardStats are the tenant-scoped counters shown on the dashboard.
type DashboardStats struct {
	TotalUsers       int `json:"totalUsers"`
	TotalRoles       int `json:"totalRoles"`
	TotalPermissions int `json:"totalPermissions"`
	ActiveSites      int `json:"activeSites"`
}

// StatsRepository computes dashboard counters
type StatsRepository interface {
	DashboardStats(ctx context.Context, tenantID string) (*DashboardStats, error)
	ListTenantIDs(ctx context.Context) ([]string, error)
}
