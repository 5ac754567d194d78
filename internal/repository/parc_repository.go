package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/yourorg/parcfleet/internal/domain"
)

// PostgresParcRepository implements domain.ParcRepository using PostgreSQL
type PostgresParcRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresParcRepository creates a new parc repository
func NewPostgresParcRepository(db *sql.DB, logger *slog.Logger) *PostgresParcRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresParcRepository{db: db, logger: logger}
}

// Create inserts a parc.
func (r *PostgresParcRepository) Create(ctx context.Context, p *domain.Parc) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO parcs (id, tenant_id, name)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`, p.ID, p.TenantID, p.Name).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return translate(err, "parc")
	}
	return nil
}

// ListByTenant returns the tenant's parcs.
func (r *PostgresParcRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Parc, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, created_at, updated_at
		FROM parcs
		WHERE tenant_id = $1
		ORDER BY name ASC
	`, tenantID)
	if err != nil {
		return nil, translate(err, "parc")
	}
	defer rows.Close()

	var out []*domain.Parc
	for rows.Next() {
		p := &domain.Parc{}
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, translate(err, "parc")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ExistAll reports whether every id belongs to the tenant.
func (r *PostgresParcRepository) ExistAll(ctx context.Context, tenantID string, ids []string) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM parcs WHERE tenant_id = $1 AND id = ANY($2)
	`, tenantID, pq.Array(ids)).Scan(&count)
	if err != nil {
		return false, translate(err, "parc")
	}
	return count == len(ids), nil
}
