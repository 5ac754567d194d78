package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"

	"github.com/yourorg/parcfleet/internal/domain"
)

// PostgresTenantRepository implements domain.TenantRepository using PostgreSQL
type PostgresTenantRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresTenantRepository creates a new tenant repository
func NewPostgresTenantRepository(db *sql.DB, logger *slog.Logger) *PostgresTenantRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTenantRepository{db: db, logger: logger}
}

// GetByID retrieves a tenant by ID
func (r *PostgresTenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	t := &domain.Tenant{}
	query := `
		SELECT id, name, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, translate(err, "tenant")
	}
	return t, nil
}

// GetByName retrieves a tenant by its unique name
func (r *PostgresTenantRepository) GetByName(ctx context.Context, name string) (*domain.Tenant, error) {
	t := &domain.Tenant{}
	query := `
		SELECT id, name, created_at, updated_at
		FROM tenants
		WHERE name = $1
	`
	err := r.db.QueryRowContext(ctx, query, name).Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, translate(err, "tenant")
	}
	return t, nil
}

// CreateWithOwner creates the tenant and its first user in one transaction so
// a failed owner insert never leaves a tenant without an owner behind.
func (r *PostgresTenantRepository) CreateWithOwner(ctx context.Context, tenant *domain.Tenant, owner *domain.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return translate(err, "tenant")
	}
	defer tx.Rollback()

	if tenant.ID == "" {
		tenant.ID = uuid.NewString()
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO tenants (id, name)
		VALUES ($1, $2)
		RETURNING created_at, updated_at
	`, tenant.ID, tenant.Name).Scan(&tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		return translate(err, "tenant")
	}

	if owner.ID == "" {
		owner.ID = uuid.NewString()
	}
	owner.TenantID = tenant.ID
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (id, tenant_id, email, name, password_hash, active, is_owner, is_super_admin)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, owner.ID, owner.TenantID, owner.Email, owner.Name, owner.PasswordHash,
		owner.Active, owner.IsOwner, owner.IsSuperAdmin,
	).Scan(&owner.CreatedAt, &owner.UpdatedAt)
	if err != nil {
		return translate(err, "user")
	}

	if err := tx.Commit(); err != nil {
		return translate(err, "tenant")
	}

	r.logger.Info("tenant registered",
		slog.String("tenant_id", tenant.ID),
		slog.String("owner_id", owner.ID),
	)
	return nil
}
