package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/yourorg/parcfleet/internal/domain"
	"github.com/yourorg/parcfleet/internal/observability/metrics"
)

// PostgresTypeLubrifiantRepository implements domain.TypeLubrifiantRepository
// using PostgreSQL
type PostgresTypeLubrifiantRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresTypeLubrifiantRepository creates a new lubricant type repository
func NewPostgresTypeLubrifiantRepository(db *sql.DB, logger *slog.Logger) *PostgresTypeLubrifiantRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTypeLubrifiantRepository{db: db, logger: logger}
}

// Create inserts a lubricant type.
func (r *PostgresTypeLubrifiantRepository) Create(ctx context.Context, t *domain.TypeLubrifiant) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO typelubrifiants (id, tenant_id, name)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`, t.ID, t.TenantID, t.Name).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return translate(err, "type de lubrifiant")
	}
	return nil
}

// GetByID retrieves a lubricant type within the tenant, with the count of
// lubricants referencing it.
func (r *PostgresTypeLubrifiantRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.TypeLubrifiant, error) {
	t := &domain.TypeLubrifiant{}
	err := r.db.QueryRowContext(ctx, `
		SELECT t.id, t.tenant_id, t.name, t.created_at, t.updated_at,
		       (SELECT COUNT(*) FROM lubrifiants l WHERE l.typelubrifiant_id = t.id AND l.tenant_id = t.tenant_id)
		FROM typelubrifiants t
		WHERE t.id = $1 AND t.tenant_id = $2
	`, id, tenantID).Scan(&t.ID, &t.TenantID, &t.Name, &t.CreatedAt, &t.UpdatedAt, &t.LubrifiantCount)
	if err != nil {
		return nil, translate(err, "type de lubrifiant")
	}
	return t, nil
}

// ListByTenant returns the tenant's lubricant types with reference counts.
func (r *PostgresTypeLubrifiantRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.TypeLubrifiant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.tenant_id, t.name, t.created_at, t.updated_at,
		       (SELECT COUNT(*) FROM lubrifiants l WHERE l.typelubrifiant_id = t.id AND l.tenant_id = t.tenant_id)
		FROM typelubrifiants t
		WHERE t.tenant_id = $1
		ORDER BY t.name ASC
	`, tenantID)
	if err != nil {
		return nil, translate(err, "type de lubrifiant")
	}
	defer rows.Close()

	var out []*domain.TypeLubrifiant
	for rows.Next() {
		t := &domain.TypeLubrifiant{}
		if err := rows.Scan(&t.ID, &t.TenantID, &t.Name, &t.CreatedAt, &t.UpdatedAt, &t.LubrifiantCount); err != nil {
			return nil, translate(err, "type de lubrifiant")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Update renames the type when a name is submitted.
func (r *PostgresTypeLubrifiantRepository) Update(ctx context.Context, tenantID, id string, name *string) (*domain.TypeLubrifiant, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE typelubrifiants
		SET name = COALESCE($3, name), updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID, name)
	if err != nil {
		return nil, translate(err, "type de lubrifiant")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, translate(err, "type de lubrifiant")
	}
	if rows == 0 {
		return nil, translate(sql.ErrNoRows, "type de lubrifiant")
	}
	return r.GetByID(ctx, tenantID, id)
}

// Delete removes a type no lubricant references. The reference count and the
// delete share one transaction; a referenced type yields a ReferencedError
// carrying the count.
func (r *PostgresTypeLubrifiantRepository) Delete(ctx context.Context, tenantID, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return translate(err, "type de lubrifiant")
	}
	defer tx.Rollback()

	var lubCount int
	err = tx.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM lubrifiants l WHERE l.typelubrifiant_id = t.id AND l.tenant_id = t.tenant_id)
		FROM typelubrifiants t
		WHERE t.id = $1 AND t.tenant_id = $2
	`, id, tenantID).Scan(&lubCount)
	if err != nil {
		return translate(err, "type de lubrifiant")
	}

	if lubCount > 0 {
		metrics.ObserveGuardedDeleteRejection("type_lubrifiant")
		return &domain.ReferencedError{
			Resource: "type_lubrifiant",
			Count:    lubCount,
			Message: fmt.Sprintf(
				"Impossible de supprimer ce type de lubrifiant car il est utilisé par %d lubrifiant(s)",
				lubCount),
		}
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM typelubrifiants WHERE id = $1 AND tenant_id = $2
	`, id, tenantID); err != nil {
		return translate(err, "type de lubrifiant")
	}

	if err := tx.Commit(); err != nil {
		return translate(err, "type de lubrifiant")
	}
	return nil
}

// Exists reports whether the type id belongs to the tenant.
func (r *PostgresTypeLubrifiantRepository) Exists(ctx context.Context, tenantID, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM typelubrifiants WHERE id = $1 AND tenant_id = $2)
	`, id, tenantID).Scan(&exists)
	if err != nil {
		return false, translate(err, "type de lubrifiant")
	}
	return exists, nil
}
