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

// PostgresLubrifiantRepository implements domain.LubrifiantRepository using
// PostgreSQL.
//
// Parc associations are rebuilt wholesale on update: inside one transaction
// every existing join row is deleted and the submitted set re-inserted.
// Simpler than diffing, at the cost of join-row timestamps; the role
// repository diffs instead because permission links are long-lived.
type PostgresLubrifiantRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresLubrifiantRepository creates a new lubricant repository
func NewPostgresLubrifiantRepository(db *sql.DB, logger *slog.Logger) *PostgresLubrifiantRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresLubrifiantRepository{db: db, logger: logger}
}

// Create inserts the lubricant and its parc associations in one transaction.
func (r *PostgresLubrifiantRepository) Create(ctx context.Context, l *domain.Lubrifiant, parcIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return translate(err, "lubrifiant")
	}
	defer tx.Rollback()

	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO lubrifiants (id, tenant_id, name, typelubrifiant_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, l.ID, l.TenantID, l.Name, l.TypeLubrifiantID).Scan(&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return translate(err, "lubrifiant")
	}

	if err := insertParcLinks(ctx, tx, l.TenantID, l.ID, parcIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return translate(err, "lubrifiant")
	}
	return nil
}

// GetByID retrieves a lubricant within the tenant, with its type, reference
// counts, and associated parcs.
func (r *PostgresLubrifiantRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Lubrifiant, error) {
	l := &domain.Lubrifiant{TypeLubrifiant: &domain.TypeLubrifiant{}}
	query := `
		SELECT l.id, l.tenant_id, l.name, l.typelubrifiant_id, l.created_at, l.updated_at,
		       t.id, t.tenant_id, t.name,
		       (SELECT COUNT(*) FROM saisielubrifiants s WHERE s.lubrifiant_id = l.id AND s.tenant_id = l.tenant_id),
		       (SELECT COUNT(*) FROM lubrifiant_parcs lp WHERE lp.lubrifiant_id = l.id AND lp.tenant_id = l.tenant_id)
		FROM lubrifiants l
		JOIN typelubrifiants t ON t.id = l.typelubrifiant_id
		WHERE l.id = $1 AND l.tenant_id = $2
	`
	err := r.db.QueryRowContext(ctx, query, id, tenantID).Scan(
		&l.ID, &l.TenantID, &l.Name, &l.TypeLubrifiantID, &l.CreatedAt, &l.UpdatedAt,
		&l.TypeLubrifiant.ID, &l.TypeLubrifiant.TenantID, &l.TypeLubrifiant.Name,
		&l.SaisieCount, &l.ParcCount,
	)
	if err != nil {
		return nil, translate(err, "lubrifiant")
	}

	parcs, err := r.ListParcs(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	l.Parcs = parcs
	return l, nil
}

// ListByTenant returns the tenant's lubricants with types, counts and parcs.
func (r *PostgresLubrifiantRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Lubrifiant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT l.id, l.tenant_id, l.name, l.typelubrifiant_id, l.created_at, l.updated_at,
		       t.id, t.tenant_id, t.name,
		       (SELECT COUNT(*) FROM saisielubrifiants s WHERE s.lubrifiant_id = l.id AND s.tenant_id = l.tenant_id),
		       (SELECT COUNT(*) FROM lubrifiant_parcs lp WHERE lp.lubrifiant_id = l.id AND lp.tenant_id = l.tenant_id)
		FROM lubrifiants l
		JOIN typelubrifiants t ON t.id = l.typelubrifiant_id
		WHERE l.tenant_id = $1
		ORDER BY l.name ASC
	`, tenantID)
	if err != nil {
		return nil, translate(err, "lubrifiant")
	}
	defer rows.Close()

	var out []*domain.Lubrifiant
	byID := map[string]*domain.Lubrifiant{}
	for rows.Next() {
		l := &domain.Lubrifiant{TypeLubrifiant: &domain.TypeLubrifiant{}}
		if err := rows.Scan(
			&l.ID, &l.TenantID, &l.Name, &l.TypeLubrifiantID, &l.CreatedAt, &l.UpdatedAt,
			&l.TypeLubrifiant.ID, &l.TypeLubrifiant.TenantID, &l.TypeLubrifiant.Name,
			&l.SaisieCount, &l.ParcCount,
		); err != nil {
			return nil, translate(err, "lubrifiant")
		}
		l.Parcs = []domain.ParcRef{}
		out = append(out, l)
		byID[l.ID] = l
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "lubrifiant")
	}

	// One pass over the join table groups parcs by lubricant.
	parcRows, err := r.db.QueryContext(ctx, `
		SELECT lp.lubrifiant_id, p.id, p.name
		FROM lubrifiant_parcs lp
		JOIN parcs p ON p.id = lp.parc_id
		WHERE lp.tenant_id = $1
		ORDER BY p.name ASC
	`, tenantID)
	if err != nil {
		return nil, translate(err, "lubrifiant parc")
	}
	defer parcRows.Close()

	for parcRows.Next() {
		var lubID string
		ref := domain.ParcRef{}
		if err := parcRows.Scan(&lubID, &ref.ID, &ref.Name); err != nil {
			return nil, translate(err, "lubrifiant parc")
		}
		if l, ok := byID[lubID]; ok {
			l.Parcs = append(l.Parcs, ref)
		}
	}
	return out, parcRows.Err()
}

// Update writes the non-nil scalar fields and, when ParcIDs is non-nil,
// rebuilds the parc associations (delete-all then bulk insert) in the same
// transaction. A concurrent reader never observes a half-reconciled join set.
func (r *PostgresLubrifiantRepository) Update(ctx context.Context, tenantID, id string, upd domain.LubrifiantUpdate) (*domain.Lubrifiant, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, translate(err, "lubrifiant")
	}
	defer tx.Rollback()

	var existingID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM lubrifiants WHERE id = $1 AND tenant_id = $2
	`, id, tenantID).Scan(&existingID)
	if err != nil {
		return nil, translate(err, "lubrifiant")
	}

	if upd.Name != nil || upd.TypeLubrifiantID != nil {
		if _, err := tx.ExecContext(ctx, `
			UPDATE lubrifiants
			SET name = COALESCE($3, name),
			    typelubrifiant_id = COALESCE($4, typelubrifiant_id),
			    updated_at = NOW()
			WHERE id = $1 AND tenant_id = $2
		`, id, tenantID, upd.Name, upd.TypeLubrifiantID); err != nil {
			return nil, translate(err, "lubrifiant")
		}
	}

	if upd.ParcIDs != nil {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM lubrifiant_parcs WHERE lubrifiant_id = $1 AND tenant_id = $2
		`, id, tenantID); err != nil {
			return nil, translate(err, "lubrifiant parc")
		}
		if err := insertParcLinks(ctx, tx, tenantID, id, upd.ParcIDs); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, translate(err, "lubrifiant")
	}
	return r.GetByID(ctx, tenantID, id)
}

// Delete removes an unreferenced lubricant. Usage records and parc
// associations are counted first; a nonzero count rejects the delete with the
// count-bearing message. Check and delete share a transaction, though not a
// serializable one: a usage row inserted between them can still slip through.
func (r *PostgresLubrifiantRepository) Delete(ctx context.Context, tenantID, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return translate(err, "lubrifiant")
	}
	defer tx.Rollback()

	var existingID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM lubrifiants WHERE id = $1 AND tenant_id = $2
	`, id, tenantID).Scan(&existingID)
	if err != nil {
		return translate(err, "lubrifiant")
	}

	var saisieCount int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM saisielubrifiants WHERE lubrifiant_id = $1 AND tenant_id = $2
	`, id, tenantID).Scan(&saisieCount)
	if err != nil {
		return translate(err, "saisielubrifiant")
	}
	if saisieCount > 0 {
		metrics.ObserveGuardedDeleteRejection("lubrifiant")
		return &domain.ReferencedError{
			Resource: "lubrifiant",
			Count:    saisieCount,
			Message: fmt.Sprintf(
				"Impossible de supprimer ce lubrifiant car il est utilisé dans %d saisie(s) de lubrifiant",
				saisieCount),
		}
	}

	var parcCount int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM lubrifiant_parcs WHERE lubrifiant_id = $1 AND tenant_id = $2
	`, id, tenantID).Scan(&parcCount)
	if err != nil {
		return translate(err, "lubrifiant parc")
	}
	if parcCount > 0 {
		metrics.ObserveGuardedDeleteRejection("lubrifiant")
		return &domain.ReferencedError{
			Resource: "lubrifiant",
			Count:    parcCount,
			Message: fmt.Sprintf(
				"Impossible de supprimer ce lubrifiant car il est associé à %d parc(s)",
				parcCount),
		}
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM lubrifiants WHERE id = $1 AND tenant_id = $2
	`, id, tenantID); err != nil {
		return translate(err, "lubrifiant")
	}

	if err := tx.Commit(); err != nil {
		return translate(err, "lubrifiant")
	}
	return nil
}

// ListParcs returns the parcs associated to a lubricant.
func (r *PostgresLubrifiantRepository) ListParcs(ctx context.Context, tenantID, id string) ([]domain.ParcRef, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.name
		FROM lubrifiant_parcs lp
		JOIN parcs p ON p.id = lp.parc_id
		WHERE lp.lubrifiant_id = $1 AND lp.tenant_id = $2
		ORDER BY p.name ASC
	`, id, tenantID)
	if err != nil {
		return nil, translate(err, "lubrifiant parc")
	}
	defer rows.Close()

	out := []domain.ParcRef{}
	for rows.Next() {
		ref := domain.ParcRef{}
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, translate(err, "lubrifiant parc")
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertParcLinks(ctx context.Context, tx execer, tenantID, lubrifiantID string, parcIDs []string) error {
	for _, parcID := range parcIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO lubrifiant_parcs (lubrifiant_id, parc_id, tenant_id)
			VALUES ($1, $2, $3)
		`, lubrifiantID, parcID, tenantID); err != nil {
			return translate(err, "lubrifiant parc")
		}
	}
	return nil
}
