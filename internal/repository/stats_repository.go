package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/yourorg/parcfleet/internal/domain"
)

// PostgresStatsRepository computes the dashboard counters straight from the
// base tables. The handler and the warmer cache the result; this type stays
// cache-free.
type PostgresStatsRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStatsRepository creates a new stats repository
func NewPostgresStatsRepository(db *sql.DB, logger *slog.Logger) *PostgresStatsRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStatsRepository{db: db, logger: logger}
}

// DashboardStats returns the tenant's dashboard counters in one round trip.
func (r *PostgresStatsRepository) DashboardStats(ctx context.Context, tenantID string) (*domain.DashboardStats, error) {
	stats := &domain.DashboardStats{}
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users WHERE tenant_id = $1),
			(SELECT COUNT(*) FROM roles WHERE tenant_id = $1),
			(SELECT COUNT(*) FROM permissions WHERE tenant_id = $1),
			(SELECT COUNT(*) FROM sites WHERE tenant_id = $1 AND active = TRUE)
	`, tenantID).Scan(&stats.TotalUsers, &stats.TotalRoles, &stats.TotalPermissions, &stats.ActiveSites)
	if err != nil {
		return nil, translate(err, "stats")
	}
	return stats, nil
}

// ListTenantIDs returns every tenant id. The warmer iterates this to refresh
// each tenant's cached counters.
func (r *PostgresStatsRepository) ListTenantIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM tenants ORDER BY created_at ASC`)
	if err != nil {
		return nil, translate(err, "tenant")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, translate(err, "tenant")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
