package rbac

import (
	"github.com/yourorg/parcfleet/internal/domain"
	"github.com/yourorg/parcfleet/internal/security/auth"
)

// Actions checked against a resource.
const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Flatten expands a user's roles into the flat permission list stored in the
// session at login. Each entry keeps the granting role's id and name, and a
// (resource, action) pair granted by several roles appears once per role:
// Can only tests for existence, so duplicates are harmless.
func Flatten(roles []domain.Role) []auth.SessionPermission {
	var out []auth.SessionPermission
	for _, role := range roles {
		for _, perm := range role.Permissions {
			out = append(out, auth.SessionPermission{
				ID:       perm.ID,
				Resource: perm.Resource,
				Action:   perm.Action,
				RoleID:   role.ID,
				RoleName: role.Name,
			})
		}
	}
	return out
}

// RoleNames extracts the role names stored alongside the permissions.
func RoleNames(roles []domain.Role) []string {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	return names
}

// Can decides whether the session may perform action on resource.
//
// Super admins bypass every check, globally. Owners bypass checks for any
// resource inside their own tenant; since every repository call is already
// scoped to session.Tenant.ID, the owner bypass cannot cross tenants.
// Otherwise a matching (resource, action) entry must exist in the session.
//
// Active is not re-checked here: login refuses inactive accounts, so a valid
// session implies the account was active when it was issued. A deactivated
// user keeps resource permissions until the session expires or is revoked.
func Can(session auth.Session, resource, action string) bool {
	if !session.IsLoggedIn {
		return false
	}
	if session.IsSuperAdmin {
		return true
	}
	if session.IsOwner && session.Tenant.ID != "" {
		return true
	}
	for _, perm := range session.Permissions {
		if perm.Resource == resource && perm.Action == action {
			return true
		}
	}
	return false
}
