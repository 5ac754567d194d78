package handler

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/yourorg/parcfleet/internal/domain"
	"github.com/yourorg/parcfleet/internal/security/auth"
	"github.com/yourorg/parcfleet/internal/security/rbac"
	"github.com/yourorg/parcfleet/pkg/cache"
)

func newUserFixture() (*UserHandler, *fakeUserRepo, *fakeRoleRepo, *cache.Cache) {
	users := &fakeUserRepo{byID: map[string]*domain.User{
		"user-2": {
			ID:       "user-2",
			TenantID: testTenantID,
			Email:    "jean@acme.fr",
			Name:     "Jean",
			Active:   false,
		},
	}}
	roles := &fakeRoleRepo{byID: map[string]*domain.Role{
		"role-1": {ID: "role-1", TenantID: testTenantID, Name: "mecanicien"},
	}}
	statsCache := cache.New()
	h := NewUserHandler(users, roles, auth.NewHasher(4), testGuard(), statsCache, testAudit(), testLogger())
	return h, users, roles, statsCache
}

func TestUserCreateStartsInactive(t *testing.T) {
	h, users, _, _ := newUserFixture()

	session := testSession(perm("user", rbac.ActionCreate))
	r := jsonRequest(t, http.MethodPost, "/api/users", UserCreateRequest{
		Email:    "paul@acme.fr",
		Name:     "Paul",
		Password: "secret123",
		RoleIDs:  []string{"role-1"},
	}, session)
	w := httptest.NewRecorder()
	h.Create(w, r)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	created := users.byID["user-new"]
	if created == nil {
		t.Fatalf("user was not created")
	}
	if created.Active {
		t.Fatalf("new accounts must start inactive")
	}
	if created.TenantID != testTenantID {
		t.Fatalf("tenant id = %q", created.TenantID)
	}
	if strings.Contains(w.Body.String(), "password") || strings.Contains(w.Body.String(), created.PasswordHash) {
		t.Fatalf("response must not leak credentials: %s", w.Body.String())
	}
}

func TestUserCreateEmailTaken(t *testing.T) {
	h, users, _, _ := newUserFixture()
	users.emailTaken = true

	session := testSession(perm("user", rbac.ActionCreate))
	r := jsonRequest(t, http.MethodPost, "/api/users", UserCreateRequest{
		Email:    "jean@acme.fr",
		Name:     "Jean bis",
		Password: "secret123",
	}, session)
	w := httptest.NewRecorder()
	h.Create(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if msg := decodeMessage(t, w); msg != "Cet email est déjà utilisé" {
		t.Fatalf("message = %q", msg)
	}
}

func TestUserCreateRejectsUnknownRole(t *testing.T) {
	h, _, _, _ := newUserFixture()

	session := testSession(perm("user", rbac.ActionCreate))
	r := jsonRequest(t, http.MethodPost, "/api/users", UserCreateRequest{
		Email:    "paul@acme.fr",
		Name:     "Paul",
		Password: "secret123",
		RoleIDs:  []string{"role-missing"},
	}, session)
	w := httptest.NewRecorder()
	h.Create(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if msg := decodeMessage(t, w); msg != "Un ou plusieurs rôles spécifiés n'existent pas" {
		t.Fatalf("message = %q", msg)
	}
}

func TestUserUpdateReconcilesRoles(t *testing.T) {
	h, users, _, _ := newUserFixture()

	session := testSession(perm("user", rbac.ActionUpdate))
	r := jsonRequest(t, http.MethodPatch, "/api/users/user-2", UserUpdateRequest{
		RoleIDs: []string{"role-1"},
	}, session)
	r.SetPathValue("id", "user-2")
	w := httptest.NewRecorder()
	h.Update(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !reflect.DeepEqual(users.reconciledRoles, []string{"role-1"}) {
		t.Fatalf("reconciled roles = %v", users.reconciledRoles)
	}
	if users.setActive != nil {
		t.Fatalf("activation must stay untouched when not submitted")
	}
}

func TestUserUpdateActivates(t *testing.T) {
	h, users, _, _ := newUserFixture()

	active := true
	session := testSession(perm("user", rbac.ActionUpdate))
	r := jsonRequest(t, http.MethodPatch, "/api/users/user-2", UserUpdateRequest{Active: &active}, session)
	r.SetPathValue("id", "user-2")
	w := httptest.NewRecorder()
	h.Update(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !users.byID["user-2"].Active {
		t.Fatalf("user must be active after the update")
	}
	if users.reconciledRoles != nil {
		t.Fatalf("roles must stay untouched when not submitted")
	}
}

func TestUserCreateInvalidatesStatsCache(t *testing.T) {
	h, _, _, statsCache := newUserFixture()
	statsCache.Set("stats:"+testTenantID, &domain.DashboardStats{TotalUsers: 1}, time.Minute)

	session := testSession(perm("user", rbac.ActionCreate))
	r := jsonRequest(t, http.MethodPost, "/api/users", UserCreateRequest{
		Email:    "paul@acme.fr",
		Name:     "Paul",
		Password: "secret123",
	}, session)
	w := httptest.NewRecorder()
	h.Create(w, r)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	if _, ok := statsCache.Get("stats:" + testTenantID); ok {
		t.Fatalf("stale dashboard counters must be dropped after a user create")
	}
}
