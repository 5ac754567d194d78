package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yourorg/parcfleet/internal/domain"
	"github.com/yourorg/parcfleet/internal/security/audit"
	"github.com/yourorg/parcfleet/internal/security/auth"
	"github.com/yourorg/parcfleet/internal/security/rbac"
)

const testTenantID = "tenant-1"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAudit() *audit.Logger {
	return audit.NewLogger(testLogger())
}

func testGuard() *rbac.Guard {
	return rbac.NewGuard(testLogger())
}

// testSession builds a logged-in session scoped to testTenantID and holding
// the given permissions.
func testSession(perms ...auth.SessionPermission) auth.Session {
	return auth.Session{
		UserID:      "user-1",
		Email:       "marie@acme.fr",
		Name:        "Marie",
		Permissions: perms,
		IsLoggedIn:  true,
		Tenant:      auth.SessionTenant{ID: testTenantID, Name: "acme"},
	}
}

func perm(resource, action string) auth.SessionPermission {
	return auth.SessionPermission{
		ID:       resource + ":" + action,
		Resource: resource,
		Action:   action,
		RoleID:   "role-1",
		RoleName: "mecanicien",
	}
}

// jsonRequest builds a request with a JSON body and the session attached the
// way the middleware would.
func jsonRequest(t *testing.T, method, target string, body interface{}, session auth.Session) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	r := httptest.NewRequest(method, target, &buf)
	return r.WithContext(auth.NewContext(r.Context(), session))
}

func decodeMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body.Message
}

type fakeTenantRepo struct {
	byName    map[string]*domain.Tenant
	createErr error
	created   *domain.Tenant
}

func (f *fakeTenantRepo) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	for _, t := range f.byName {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeTenantRepo) GetByName(ctx context.Context, name string) (*domain.Tenant, error) {
	if t, ok := f.byName[name]; ok {
		return t, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeTenantRepo) CreateWithOwner(ctx context.Context, tenant *domain.Tenant, owner *domain.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	tenant.ID = "tenant-new"
	owner.ID = "user-new"
	owner.TenantID = tenant.ID
	f.created = tenant
	return nil
}

type fakeUserRepo struct {
	byEmail map[string]*domain.User
	byID    map[string]*domain.User

	emailTaken      bool
	reconciledRoles []string
	setActive       *bool
}

func (f *fakeUserRepo) Create(ctx context.Context, user *domain.User, roleIDs []string) error {
	user.ID = "user-new"
	if f.byID == nil {
		f.byID = map[string]*domain.User{}
	}
	f.byID[user.ID] = user
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, tenantID, id string) (*domain.User, error) {
	if u, ok := f.byID[id]; ok && u.TenantID == tenantID {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUserRepo) GetByEmailWithAccess(ctx context.Context, tenantID, email string) (*domain.User, error) {
	if u, ok := f.byEmail[email]; ok && u.TenantID == tenantID {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUserRepo) EmailExists(ctx context.Context, tenantID, email string) (bool, error) {
	return f.emailTaken, nil
}

func (f *fakeUserRepo) UpdateProfile(ctx context.Context, tenantID, id string, name, email, passwordHash *string) (*domain.User, error) {
	u, err := f.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if name != nil {
		u.Name = *name
	}
	if email != nil {
		u.Email = *email
	}
	if passwordHash != nil {
		u.PasswordHash = *passwordHash
	}
	return u, nil
}

func (f *fakeUserRepo) SetActive(ctx context.Context, tenantID, id string, active bool) (*domain.User, error) {
	u, err := f.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	u.Active = active
	f.setActive = &active
	return u, nil
}

func (f *fakeUserRepo) ReconcileRoles(ctx context.Context, tenantID, id string, roleIDs []string) error {
	f.reconciledRoles = roleIDs
	return nil
}

func (f *fakeUserRepo) ListByTenant(ctx context.Context, tenantID string) ([]*domain.User, error) {
	var out []*domain.User
	for _, u := range f.byID {
		if u.TenantID == tenantID {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeLubrifiantRepo struct {
	byID map[string]*domain.Lubrifiant

	createdParcIDs []string
	updated        *domain.LubrifiantUpdate
	deleteErr      error
	deleted        []string
	listCalls      int
}

func (f *fakeLubrifiantRepo) Create(ctx context.Context, l *domain.Lubrifiant, parcIDs []string) error {
	l.ID = "lub-new"
	f.createdParcIDs = parcIDs
	if f.byID == nil {
		f.byID = map[string]*domain.Lubrifiant{}
	}
	f.byID[l.ID] = l
	return nil
}

func (f *fakeLubrifiantRepo) GetByID(ctx context.Context, tenantID, id string) (*domain.Lubrifiant, error) {
	if l, ok := f.byID[id]; ok && l.TenantID == tenantID {
		return l, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeLubrifiantRepo) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Lubrifiant, error) {
	f.listCalls++
	var out []*domain.Lubrifiant
	for _, l := range f.byID {
		if l.TenantID == tenantID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLubrifiantRepo) Update(ctx context.Context, tenantID, id string, upd domain.LubrifiantUpdate) (*domain.Lubrifiant, error) {
	l, err := f.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	f.updated = &upd
	if upd.Name != nil {
		l.Name = *upd.Name
	}
	return l, nil
}

func (f *fakeLubrifiantRepo) Delete(ctx context.Context, tenantID, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, err := f.GetByID(ctx, tenantID, id); err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	delete(f.byID, id)
	return nil
}

func (f *fakeLubrifiantRepo) ListParcs(ctx context.Context, tenantID, id string) ([]domain.ParcRef, error) {
	l, err := f.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return l.Parcs, nil
}

type fakeTypeRepo struct {
	exists bool
}

func (f *fakeTypeRepo) Create(ctx context.Context, t *domain.TypeLubrifiant) error { return nil }

func (f *fakeTypeRepo) GetByID(ctx context.Context, tenantID, id string) (*domain.TypeLubrifiant, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeTypeRepo) ListByTenant(ctx context.Context, tenantID string) ([]*domain.TypeLubrifiant, error) {
	return nil, nil
}

func (f *fakeTypeRepo) Update(ctx context.Context, tenantID, id string, name *string) (*domain.TypeLubrifiant, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeTypeRepo) Delete(ctx context.Context, tenantID, id string) error { return nil }

func (f *fakeTypeRepo) Exists(ctx context.Context, tenantID, id string) (bool, error) {
	return f.exists, nil
}

type fakeParcRepo struct {
	allExist bool
}

func (f *fakeParcRepo) Create(ctx context.Context, p *domain.Parc) error { return nil }

func (f *fakeParcRepo) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Parc, error) {
	return nil, nil
}

func (f *fakeParcRepo) ExistAll(ctx context.Context, tenantID string, ids []string) (bool, error) {
	return f.allExist, nil
}

type fakeRoleRepo struct {
	byID map[string]*domain.Role

	createdPermIDs []string
	updatedPermIDs []string
	deleteErr      error
	deleted        []string
}

func (f *fakeRoleRepo) Create(ctx context.Context, role *domain.Role, permissionIDs []string) error {
	role.ID = "role-new"
	f.createdPermIDs = permissionIDs
	if f.byID == nil {
		f.byID = map[string]*domain.Role{}
	}
	f.byID[role.ID] = role
	return nil
}

func (f *fakeRoleRepo) GetByID(ctx context.Context, tenantID, id string) (*domain.Role, error) {
	if role, ok := f.byID[id]; ok && role.TenantID == tenantID {
		return role, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRoleRepo) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Role, error) {
	var out []*domain.Role
	for _, role := range f.byID {
		if role.TenantID == tenantID {
			out = append(out, role)
		}
	}
	return out, nil
}

func (f *fakeRoleRepo) Update(ctx context.Context, tenantID, id string, name, description *string, permissionIDs []string) (*domain.Role, error) {
	role, err := f.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	f.updatedPermIDs = permissionIDs
	if name != nil {
		role.Name = *name
	}
	return role, nil
}

func (f *fakeRoleRepo) Delete(ctx context.Context, tenantID, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, err := f.GetByID(ctx, tenantID, id); err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	delete(f.byID, id)
	return nil
}

func (f *fakeRoleRepo) CountUsers(ctx context.Context, tenantID, id string) (int, error) {
	role, err := f.GetByID(ctx, tenantID, id)
	if err != nil {
		return 0, err
	}
	return role.UserCount, nil
}

type fakePermissionRepo struct {
	perms    []domain.Permission
	allExist bool
}

func (f *fakePermissionRepo) ListByTenant(ctx context.Context, tenantID string) ([]domain.Permission, error) {
	return f.perms, nil
}

func (f *fakePermissionRepo) ExistAll(ctx context.Context, tenantID string, ids []string) (bool, error) {
	return f.allExist, nil
}

func (f *fakePermissionRepo) Seed(ctx context.Context, tenantID string, perms []domain.Permission) (int, error) {
	return len(perms), nil
}
