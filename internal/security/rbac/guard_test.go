package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yourorg/parcfleet/internal/security/auth"
)

func requestWithSession(t *testing.T, session auth.Session) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/api/lubrifiant", nil)
	return r.WithContext(auth.NewContext(r.Context(), session))
}

func TestGuardDeniesAnonymous(t *testing.T) {
	g := NewGuard(nil)
	r := requestWithSession(t, auth.Session{})

	denial := g.ProtectRead(r, "lubrifiant")
	if denial == nil {
		t.Fatalf("expected a denial for the zero session")
	}
	if denial.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", denial.Status)
	}
	if denial.Message != "Non authentifié, veuillez vous connecter" {
		t.Fatalf("unexpected message: %q", denial.Message)
	}
}

func TestGuardDeniesMissingPermission(t *testing.T) {
	g := NewGuard(nil)
	session := auth.Session{
		IsLoggedIn: true,
		UserID:     "u1",
		Tenant:     auth.SessionTenant{ID: "t1"},
		Permissions: []auth.SessionPermission{
			{Resource: "lubrifiant", Action: "read"},
		},
	}
	r := requestWithSession(t, session)

	denial := g.ProtectDelete(r, "lubrifiant")
	if denial == nil {
		t.Fatalf("expected a denial without the delete permission")
	}
	if denial.Status != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", denial.Status)
	}
}

func TestGuardAllowsMatchingPermission(t *testing.T) {
	g := NewGuard(nil)
	session := auth.Session{
		IsLoggedIn: true,
		UserID:     "u1",
		Tenant:     auth.SessionTenant{ID: "t1"},
		Permissions: []auth.SessionPermission{
			{Resource: "lubrifiant", Action: "read"},
		},
	}
	r := requestWithSession(t, session)

	if denial := g.ProtectRead(r, "lubrifiant"); denial != nil {
		t.Fatalf("expected no denial, got %d %q", denial.Status, denial.Message)
	}
}

func TestDenialWrite(t *testing.T) {
	d := &Denial{Status: http.StatusForbidden, Message: "Accès refusé : permission delete requise sur role"}
	rec := httptest.NewRecorder()
	d.Write(rec)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json content type, got %q", ct)
	}
	if body := rec.Body.String(); body == "" || body[0] != '{' {
		t.Fatalf("expected a json body, got %q", body)
	}
}
