package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/yourorg/parcfleet/internal/domain"
)

// PostgresRoleRepository implements domain.RoleRepository using PostgreSQL
type PostgresRoleRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRoleRepository creates a new role repository
func NewPostgresRoleRepository(db *sql.DB, logger *slog.Logger) *PostgresRoleRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRoleRepository{db: db, logger: logger}
}

// Create inserts the role and links its permission set in one transaction.
func (r *PostgresRoleRepository) Create(ctx context.Context, role *domain.Role, permissionIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return translate(err, "role")
	}
	defer tx.Rollback()

	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO roles (id, tenant_id, name, description)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING created_at, updated_at
	`, role.ID, role.TenantID, role.Name, role.Description).Scan(&role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return translate(err, "role")
	}

	for _, permID := range permissionIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO role_permissions (role_id, permission_id, tenant_id)
			VALUES ($1, $2, $3)
		`, role.ID, permID, role.TenantID); err != nil {
			return translate(err, "role permission")
		}
	}

	if err := tx.Commit(); err != nil {
		return translate(err, "role")
	}
	return nil
}

// GetByID retrieves a role by id within the tenant, permissions and assigned
// user count included.
func (r *PostgresRoleRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Role, error) {
	role := &domain.Role{}
	query := `
		SELECT r.id, r.tenant_id, r.name, COALESCE(r.description, ''), r.created_at, r.updated_at,
		       (SELECT COUNT(*) FROM user_roles ur WHERE ur.role_id = r.id) AS user_count
		FROM roles r
		WHERE r.id = $1 AND r.tenant_id = $2
	`
	err := r.db.QueryRowContext(ctx, query, id, tenantID).Scan(
		&role.ID, &role.TenantID, &role.Name, &role.Description,
		&role.CreatedAt, &role.UpdatedAt, &role.UserCount,
	)
	if err != nil {
		return nil, translate(err, "role")
	}

	perms, err := loadRolePermissions(ctx, r.db, tenantID, role.ID)
	if err != nil {
		return nil, err
	}
	role.Permissions = perms
	return role, nil
}

// ListByTenant returns all roles of the tenant with permissions and counts.
func (r *PostgresRoleRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Role, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.tenant_id, r.name, COALESCE(r.description, ''), r.created_at, r.updated_at,
		       (SELECT COUNT(*) FROM user_roles ur WHERE ur.role_id = r.id) AS user_count
		FROM roles r
		WHERE r.tenant_id = $1
		ORDER BY r.name ASC
	`, tenantID)
	if err != nil {
		return nil, translate(err, "role")
	}
	defer rows.Close()

	var out []*domain.Role
	for rows.Next() {
		role := &domain.Role{}
		if err := rows.Scan(
			&role.ID, &role.TenantID, &role.Name, &role.Description,
			&role.CreatedAt, &role.UpdatedAt, &role.UserCount,
		); err != nil {
			return nil, translate(err, "role")
		}
		out = append(out, role)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "role")
	}

	for _, role := range out {
		perms, err := loadRolePermissions(ctx, r.db, tenantID, role.ID)
		if err != nil {
			return nil, err
		}
		role.Permissions = perms
	}
	return out, nil
}

// Update writes the non-nil scalar fields and, when permissionIDs is non-nil,
// reconciles the permission set by diff: only the delta is connected or
// disconnected, existing links and their metadata stay untouched. Everything
// runs in one transaction.
func (r *PostgresRoleRepository) Update(ctx context.Context, tenantID, id string, name, description *string, permissionIDs []string) (*domain.Role, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, translate(err, "role")
	}
	defer tx.Rollback()

	var existingID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM roles WHERE id = $1 AND tenant_id = $2
	`, id, tenantID).Scan(&existingID)
	if err != nil {
		return nil, translate(err, "role")
	}

	if name != nil || description != nil {
		// An explicitly submitted empty description clears the column.
		if _, err := tx.ExecContext(ctx, `
			UPDATE roles
			SET name = COALESCE($3, name),
			    description = CASE WHEN $5 THEN NULLIF($4, '') ELSE description END,
			    updated_at = NOW()
			WHERE id = $1 AND tenant_id = $2
		`, id, tenantID, name, orEmpty(description), description != nil); err != nil {
			return nil, translate(err, "role")
		}
	}

	if permissionIDs != nil {
		rows, err := tx.QueryContext(ctx, `
			SELECT permission_id FROM role_permissions WHERE role_id = $1 AND tenant_id = $2
		`, id, tenantID)
		if err != nil {
			return nil, translate(err, "role permission")
		}
		var current []string
		for rows.Next() {
			var permID string
			if err := rows.Scan(&permID); err != nil {
				rows.Close()
				return nil, translate(err, "role permission")
			}
			current = append(current, permID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, translate(err, "role permission")
		}

		toAdd, toRemove := DiffIDs(current, permissionIDs)
		for _, permID := range toAdd {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO role_permissions (role_id, permission_id, tenant_id)
				VALUES ($1, $2, $3)
			`, id, permID, tenantID); err != nil {
				return nil, translate(err, "role permission")
			}
		}
		if len(toRemove) > 0 {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM role_permissions
				WHERE role_id = $1 AND tenant_id = $2 AND permission_id = ANY($3)
			`, id, tenantID, pq.Array(toRemove)); err != nil {
				return nil, translate(err, "role permission")
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, translate(err, "role")
	}
	return r.GetByID(ctx, tenantID, id)
}

// Delete removes a role that no user holds. The user-count check and the
// delete share one transaction; a role still assigned yields a
// ReferencedError carrying the count.
func (r *PostgresRoleRepository) Delete(ctx context.Context, tenantID, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return translate(err, "role")
	}
	defer tx.Rollback()

	var userCount int
	err = tx.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM user_roles ur WHERE ur.role_id = r.id)
		FROM roles r
		WHERE r.id = $1 AND r.tenant_id = $2
	`, id, tenantID).Scan(&userCount)
	if err != nil {
		return translate(err, "role")
	}

	if userCount > 0 {
		return &domain.ReferencedError{
			Resource: "role",
			Count:    userCount,
			Message: fmt.Sprintf(
				"Ce rôle est utilisé par %d utilisateur(s). Vous ne pouvez pas le supprimer tant qu'il est attribué à des utilisateurs.",
				userCount),
		}
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM role_permissions WHERE role_id = $1 AND tenant_id = $2
	`, id, tenantID); err != nil {
		return translate(err, "role permission")
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM roles WHERE id = $1 AND tenant_id = $2
	`, id, tenantID); err != nil {
		return translate(err, "role")
	}

	if err := tx.Commit(); err != nil {
		return translate(err, "role")
	}
	return nil
}

// CountUsers returns the number of users holding the role.
func (r *PostgresRoleRepository) CountUsers(ctx context.Context, tenantID, id string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.role_id = $1 AND r.tenant_id = $2
	`, id, tenantID).Scan(&count)
	if err != nil {
		return 0, translate(err, "role")
	}
	return count, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func loadRolePermissions(ctx context.Context, q querier, tenantID, roleID string) ([]domain.Permission, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT p.id, p.tenant_id, p.resource, p.action
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1 AND p.tenant_id = $2
		ORDER BY p.resource ASC, p.action ASC
	`, roleID, tenantID)
	if err != nil {
		return nil, translate(err, "permission")
	}
	defer rows.Close()

	var perms []domain.Permission
	for rows.Next() {
		p := domain.Permission{}
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Resource, &p.Action); err != nil {
			return nil, translate(err, "permission")
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
