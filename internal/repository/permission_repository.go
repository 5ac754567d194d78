package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/yourorg/parcfleet/internal/domain"
)

// PostgresPermissionRepository implements domain.PermissionRepository using
// PostgreSQL. Permissions are reference data: seeded once per tenant, read
// often, never mutated through the API.
type PostgresPermissionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresPermissionRepository creates a new permission repository
func NewPostgresPermissionRepository(db *sql.DB, logger *slog.Logger) *PostgresPermissionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresPermissionRepository{db: db, logger: logger}
}

// ListByTenant returns the tenant's permission catalog.
func (r *PostgresPermissionRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.Permission, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, resource, action
		FROM permissions
		WHERE tenant_id = $1
		ORDER BY resource ASC, action ASC
	`, tenantID)
	if err != nil {
		return nil, translate(err, "permission")
	}
	defer rows.Close()

	var out []domain.Permission
	for rows.Next() {
		p := domain.Permission{}
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Resource, &p.Action); err != nil {
			return nil, translate(err, "permission")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ExistAll reports whether every id belongs to the tenant.
func (r *PostgresPermissionRepository) ExistAll(ctx context.Context, tenantID string, ids []string) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM permissions WHERE tenant_id = $1 AND id = ANY($2)
	`, tenantID, pq.Array(ids)).Scan(&count)
	if err != nil {
		return false, translate(err, "permission")
	}
	return count == len(ids), nil
}

// Seed inserts the catalog rows that do not exist yet and returns how many
// were added. Safe to run repeatedly.
func (r *PostgresPermissionRepository) Seed(ctx context.Context, tenantID string, perms []domain.Permission) (int, error) {
	inserted := 0
	for _, p := range perms {
		id := p.ID
		if id == "" {
			id = uuid.NewString()
		}
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO permissions (id, tenant_id, resource, action)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (tenant_id, resource, action) DO NOTHING
		`, id, tenantID, p.Resource, p.Action)
		if err != nil {
			return inserted, translate(err, "permission")
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return inserted, translate(err, "permission")
		}
		inserted += int(rows)
	}
	return inserted, nil
}
