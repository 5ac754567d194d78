package rbac

import (
	"testing"

	"github.com/yourorg/parcfleet/internal/domain"
	"github.com/yourorg/parcfleet/internal/security/auth"
)

func TestFlattenAnnotatesGrantingRole(t *testing.T) {
	roles := []domain.Role{
		{
			ID:   "r1",
			Name: "mecanicien",
			Permissions: []domain.Permission{
				{ID: "p1", Resource: "lubrifiant", Action: "read"},
				{ID: "p2", Resource: "lubrifiant", Action: "create"},
			},
		},
		{
			ID:   "r2",
			Name: "chef",
			Permissions: []domain.Permission{
				{ID: "p1", Resource: "lubrifiant", Action: "read"},
			},
		},
	}

	flat := Flatten(roles)
	if len(flat) != 3 {
		t.Fatalf("expected 3 entries including the duplicate, got %d", len(flat))
	}

	// The duplicated (resource, action) keeps one entry per granting role.
	var grantingRoles []string
	for _, p := range flat {
		if p.Resource == "lubrifiant" && p.Action == "read" {
			grantingRoles = append(grantingRoles, p.RoleName)
		}
	}
	if len(grantingRoles) != 2 {
		t.Fatalf("expected the read permission once per role, got %v", grantingRoles)
	}
	if grantingRoles[0] != "mecanicien" || grantingRoles[1] != "chef" {
		t.Fatalf("unexpected role annotations: %v", grantingRoles)
	}
}

func TestFlattenEmptyRoles(t *testing.T) {
	if flat := Flatten(nil); len(flat) != 0 {
		t.Fatalf("expected no permissions, got %d", len(flat))
	}
	if flat := Flatten([]domain.Role{{ID: "r1", Name: "vide"}}); len(flat) != 0 {
		t.Fatalf("expected no permissions for a role without any, got %d", len(flat))
	}
}

func TestCanRequiresLogin(t *testing.T) {
	session := auth.Session{
		Permissions: []auth.SessionPermission{
			{Resource: "lubrifiant", Action: "read"},
		},
	}
	if Can(session, "lubrifiant", ActionRead) {
		t.Fatalf("logged-out session must never pass, even with permissions present")
	}
}

func TestCanSuperAdminBypassesEverything(t *testing.T) {
	session := auth.Session{IsLoggedIn: true, IsSuperAdmin: true}
	if !Can(session, "anything", ActionDelete) {
		t.Fatalf("super admin should bypass permission checks")
	}
}

func TestCanOwnerBypassesWithinTenant(t *testing.T) {
	session := auth.Session{
		IsLoggedIn: true,
		IsOwner:    true,
		Tenant:     auth.SessionTenant{ID: "t1", Name: "acme"},
	}
	if !Can(session, "role", ActionDelete) {
		t.Fatalf("owner should bypass checks inside their tenant")
	}

	// An owner flag without a tenant grants nothing.
	session.Tenant = auth.SessionTenant{}
	if Can(session, "role", ActionDelete) {
		t.Fatalf("owner without tenant context must not bypass")
	}
}

func TestCanMatchesResourceAndAction(t *testing.T) {
	session := auth.Session{
		IsLoggedIn: true,
		Tenant:     auth.SessionTenant{ID: "t1"},
		Permissions: []auth.SessionPermission{
			{Resource: "lubrifiant", Action: "read"},
			{Resource: "role", Action: "update"},
		},
	}

	if !Can(session, "lubrifiant", ActionRead) {
		t.Fatalf("expected read on lubrifiant to be allowed")
	}
	if Can(session, "lubrifiant", ActionDelete) {
		t.Fatalf("expected delete on lubrifiant to be denied")
	}
	if Can(session, "parc", ActionRead) {
		t.Fatalf("expected read on parc to be denied")
	}
}
