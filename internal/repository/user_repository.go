package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/yourorg/parcfleet/internal/domain"
)

// PostgresUserRepository implements domain.UserRepository using PostgreSQL.
// Every query predicate carries the tenant id: a guessed primary key from
// another tenant never resolves.
type PostgresUserRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresUserRepository creates a new user repository
func NewPostgresUserRepository(db *sql.DB, logger *slog.Logger) *PostgresUserRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresUserRepository{db: db, logger: logger}
}

// Create inserts the user and links the given roles in one transaction.
func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User, roleIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return translate(err, "user")
	}
	defer tx.Rollback()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (id, tenant_id, email, name, password_hash, active, is_owner, is_super_admin)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, user.ID, user.TenantID, user.Email, user.Name, user.PasswordHash,
		user.Active, user.IsOwner, user.IsSuperAdmin,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return translate(err, "user")
	}

	for _, roleID := range roleIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_roles (user_id, role_id, tenant_id)
			VALUES ($1, $2, $3)
		`, user.ID, roleID, user.TenantID); err != nil {
			return translate(err, "user role")
		}
	}

	if err := tx.Commit(); err != nil {
		return translate(err, "user")
	}
	return nil
}

// GetByID retrieves a user by id within the tenant, roles included.
func (r *PostgresUserRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.User, error) {
	user := &domain.User{}
	query := `
		SELECT id, tenant_id, email, name, password_hash, active, is_owner, is_super_admin, created_at, updated_at
		FROM users
		WHERE id = $1 AND tenant_id = $2
	`
	err := r.db.QueryRowContext(ctx, query, id, tenantID).Scan(
		&user.ID, &user.TenantID, &user.Email, &user.Name, &user.PasswordHash,
		&user.Active, &user.IsOwner, &user.IsSuperAdmin, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, translate(err, "user")
	}

	roles, err := r.loadRoles(ctx, tenantID, user.ID, false)
	if err != nil {
		return nil, err
	}
	user.Roles = roles
	return user, nil
}

// GetByEmailWithAccess loads a user by (tenant, email) together with their
// roles and each role's permissions. This is the login query: everything the
// session needs comes back in one call.
func (r *PostgresUserRepository) GetByEmailWithAccess(ctx context.Context, tenantID, email string) (*domain.User, error) {
	user := &domain.User{}
	query := `
		SELECT id, tenant_id, email, name, password_hash, active, is_owner, is_super_admin, created_at, updated_at
		FROM users
		WHERE tenant_id = $1 AND email = $2
	`
	err := r.db.QueryRowContext(ctx, query, tenantID, email).Scan(
		&user.ID, &user.TenantID, &user.Email, &user.Name, &user.PasswordHash,
		&user.Active, &user.IsOwner, &user.IsSuperAdmin, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, translate(err, "user")
	}

	roles, err := r.loadRoles(ctx, tenantID, user.ID, true)
	if err != nil {
		return nil, err
	}
	user.Roles = roles
	return user, nil
}

// EmailExists reports whether the email is taken inside the tenant.
func (r *PostgresUserRepository) EmailExists(ctx context.Context, tenantID, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE tenant_id = $1 AND email = $2)
	`, tenantID, email).Scan(&exists)
	if err != nil {
		return false, translate(err, "user")
	}
	return exists, nil
}

// UpdateProfile writes the non-nil fields and returns the fresh row.
func (r *PostgresUserRepository) UpdateProfile(ctx context.Context, tenantID, id string, name, email, passwordHash *string) (*domain.User, error) {
	query := `
		UPDATE users
		SET name = COALESCE($3, name),
		    email = COALESCE($4, email),
		    password_hash = COALESCE($5, password_hash),
		    updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING id
	`
	var updatedID string
	err := r.db.QueryRowContext(ctx, query, id, tenantID, name, email, passwordHash).Scan(&updatedID)
	if err != nil {
		return nil, translate(err, "user")
	}
	return r.GetByID(ctx, tenantID, id)
}

// SetActive toggles the soft-disable flag. Users are never hard-deleted.
func (r *PostgresUserRepository) SetActive(ctx context.Context, tenantID, id string, active bool) (*domain.User, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET active = $3, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID, active)
	if err != nil {
		return nil, translate(err, "user")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, translate(err, "user")
	}
	if rows == 0 {
		return nil, translate(sql.ErrNoRows, "user")
	}
	return r.GetByID(ctx, tenantID, id)
}

// ReconcileRoles moves the user's role set to roleIDs by connect/disconnect
// diff inside one transaction.
func (r *PostgresUserRepository) ReconcileRoles(ctx context.Context, tenantID, id string, roleIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return translate(err, "user role")
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT role_id FROM user_roles WHERE user_id = $1 AND tenant_id = $2
	`, id, tenantID)
	if err != nil {
		return translate(err, "user role")
	}
	var current []string
	for rows.Next() {
		var roleID string
		if err := rows.Scan(&roleID); err != nil {
			rows.Close()
			return translate(err, "user role")
		}
		current = append(current, roleID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return translate(err, "user role")
	}

	toAdd, toRemove := DiffIDs(current, roleIDs)
	for _, roleID := range toAdd {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_roles (user_id, role_id, tenant_id) VALUES ($1, $2, $3)
		`, id, roleID, tenantID); err != nil {
			return translate(err, "user role")
		}
	}
	if len(toRemove) > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM user_roles WHERE user_id = $1 AND tenant_id = $2 AND role_id = ANY($3)
		`, id, tenantID, pq.Array(toRemove)); err != nil {
			return translate(err, "user role")
		}
	}

	if err := tx.Commit(); err != nil {
		return translate(err, "user role")
	}
	return nil
}

// ListByTenant returns all users of the tenant, roles included.
func (r *PostgresUserRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, email, name, password_hash, active, is_owner, is_super_admin, created_at, updated_at
		FROM users
		WHERE tenant_id = $1
		ORDER BY name ASC
	`, tenantID)
	if err != nil {
		return nil, translate(err, "user")
	}
	defer rows.Close()

	var out []*domain.User
	for rows.Next() {
		user := &domain.User{}
		if err := rows.Scan(
			&user.ID, &user.TenantID, &user.Email, &user.Name, &user.PasswordHash,
			&user.Active, &user.IsOwner, &user.IsSuperAdmin, &user.CreatedAt, &user.UpdatedAt,
		); err != nil {
			return nil, translate(err, "user")
		}
		out = append(out, user)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "user")
	}

	for _, user := range out {
		roles, err := r.loadRoles(ctx, tenantID, user.ID, false)
		if err != nil {
			return nil, err
		}
		user.Roles = roles
	}
	return out, nil
}

// loadRoles fetches the user's roles; withPermissions also expands each
// role's permission set (needed at login to flatten into the session).
func (r *PostgresUserRepository) loadRoles(ctx context.Context, tenantID, userID string, withPermissions bool) ([]domain.Role, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.tenant_id, r.name, COALESCE(r.description, ''), r.created_at, r.updated_at
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1 AND r.tenant_id = $2
		ORDER BY r.name ASC
	`, userID, tenantID)
	if err != nil {
		return nil, translate(err, "role")
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		role := domain.Role{}
		if err := rows.Scan(&role.ID, &role.TenantID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, translate(err, "role")
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "role")
	}

	if !withPermissions {
		return roles, nil
	}

	for i := range roles {
		perms, err := loadRolePermissions(ctx, r.db, tenantID, roles[i].ID)
		if err != nil {
			return nil, err
		}
		roles[i].Permissions = perms
	}
	return roles, nil
}
