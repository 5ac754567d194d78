package handler

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/yourorg/parcfleet/internal/domain"
	"github.com/yourorg/parcfleet/internal/security/auth"
	"github.com/yourorg/parcfleet/internal/security/rbac"
)

func newLubrifiantFixture() (*LubrifiantHandler, *fakeLubrifiantRepo, *fakeTypeRepo, *fakeParcRepo) {
	lubs := &fakeLubrifiantRepo{byID: map[string]*domain.Lubrifiant{
		"lub-1": {
			ID:               "lub-1",
			TenantID:         testTenantID,
			Name:             "Huile 15W40",
			TypeLubrifiantID: "type-1",
			TypeLubrifiant:   &domain.TypeLubrifiant{ID: "type-1", Name: "Huile moteur"},
			Parcs:            []domain.ParcRef{{ID: "parc-1", Name: "Parc Nord"}},
		},
		"lub-other": {
			ID:       "lub-other",
			TenantID: "tenant-2",
			Name:     "Graisse",
		},
	}}
	types := &fakeTypeRepo{exists: true}
	parcs := &fakeParcRepo{allExist: true}
	h := NewLubrifiantHandler(lubs, types, parcs, testGuard(), testAudit(), testLogger())
	return h, lubs, types, parcs
}

func TestLubrifiantListRejectsAnonymous(t *testing.T) {
	h, lubs, _, _ := newLubrifiantFixture()

	r := jsonRequest(t, http.MethodGet, "/api/lubrifiant", nil, auth.Session{})
	w := httptest.NewRecorder()
	h.List(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if msg := decodeMessage(t, w); msg != "Non authentifié, veuillez vous connecter" {
		t.Fatalf("message = %q", msg)
	}
	if lubs.listCalls != 0 {
		t.Fatalf("repository must not be reached after a denial")
	}
}

func TestLubrifiantListRejectsMissingPermission(t *testing.T) {
	h, lubs, _, _ := newLubrifiantFixture()

	// A write permission on the same resource does not grant reads.
	session := testSession(perm("lubrifiant", rbac.ActionCreate))
	r := jsonRequest(t, http.MethodGet, "/api/lubrifiant", nil, session)
	w := httptest.NewRecorder()
	h.List(w, r)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if msg := decodeMessage(t, w); msg != "Accès refusé : permission read requise sur lubrifiant" {
		t.Fatalf("message = %q", msg)
	}
	if lubs.listCalls != 0 {
		t.Fatalf("repository must not be reached after a denial")
	}
}

func TestLubrifiantGetScopedToTenant(t *testing.T) {
	h, _, _, _ := newLubrifiantFixture()

	session := testSession(perm("lubrifiant", rbac.ActionRead))
	r := jsonRequest(t, http.MethodGet, "/api/lubrifiant/lub-other", nil, session)
	r.SetPathValue("id", "lub-other")
	w := httptest.NewRecorder()
	h.Get(w, r)

	// The row exists but belongs to another tenant.
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if msg := decodeMessage(t, w); msg != "Lubrifiant non trouvé" {
		t.Fatalf("message = %q", msg)
	}
}

func TestLubrifiantCreateValidation(t *testing.T) {
	h, _, _, _ := newLubrifiantFixture()
	session := testSession(perm("lubrifiant", rbac.ActionCreate))

	tests := []struct {
		name string
		req  LubrifiantCreateRequest
		want string
	}{
		{
			name: "missing name",
			req:  LubrifiantCreateRequest{TypeLubrifiantID: "type-1", ParcIDs: []string{"parc-1"}},
			want: "Le nom du lubrifiant est requis",
		},
		{
			name: "missing type",
			req:  LubrifiantCreateRequest{Name: "Huile", ParcIDs: []string{"parc-1"}},
			want: "Le type de lubrifiant est requis",
		},
		{
			name: "missing parcs",
			req:  LubrifiantCreateRequest{Name: "Huile", TypeLubrifiantID: "type-1"},
			want: "Au moins un parc doit être sélectionné",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := jsonRequest(t, http.MethodPost, "/api/lubrifiant", tt.req, session)
			w := httptest.NewRecorder()
			h.Create(w, r)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if msg := decodeMessage(t, w); msg != tt.want {
				t.Fatalf("message = %q, want %q", msg, tt.want)
			}
		})
	}
}

func TestLubrifiantCreateRejectsUnknownType(t *testing.T) {
	h, _, types, _ := newLubrifiantFixture()
	types.exists = false

	session := testSession(perm("lubrifiant", rbac.ActionCreate))
	r := jsonRequest(t, http.MethodPost, "/api/lubrifiant", LubrifiantCreateRequest{
		Name:             "Huile",
		TypeLubrifiantID: "type-missing",
		ParcIDs:          []string{"parc-1"},
	}, session)
	w := httptest.NewRecorder()
	h.Create(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if msg := decodeMessage(t, w); msg != "Le type de lubrifiant spécifié n'existe pas" {
		t.Fatalf("message = %q", msg)
	}
}

func TestLubrifiantCreateRejectsUnknownParc(t *testing.T) {
	h, _, _, parcs := newLubrifiantFixture()
	parcs.allExist = false

	session := testSession(perm("lubrifiant", rbac.ActionCreate))
	r := jsonRequest(t, http.MethodPost, "/api/lubrifiant", LubrifiantCreateRequest{
		Name:             "Huile",
		TypeLubrifiantID: "type-1",
		ParcIDs:          []string{"parc-missing"},
	}, session)
	w := httptest.NewRecorder()
	h.Create(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if msg := decodeMessage(t, w); msg != "Un ou plusieurs parcs spécifiés n'existent pas" {
		t.Fatalf("message = %q", msg)
	}
}

func TestLubrifiantCreatePassesParcAssociations(t *testing.T) {
	h, lubs, _, _ := newLubrifiantFixture()

	session := testSession(perm("lubrifiant", rbac.ActionCreate))
	r := jsonRequest(t, http.MethodPost, "/api/lubrifiant", LubrifiantCreateRequest{
		Name:             "Huile hydraulique",
		TypeLubrifiantID: "type-1",
		ParcIDs:          []string{"parc-1", "parc-2"},
	}, session)
	w := httptest.NewRecorder()
	h.Create(w, r)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	if !reflect.DeepEqual(lubs.createdParcIDs, []string{"parc-1", "parc-2"}) {
		t.Fatalf("parc ids = %v", lubs.createdParcIDs)
	}
	created := lubs.byID["lub-new"]
	if created == nil || created.TenantID != testTenantID {
		t.Fatalf("created row must carry the session tenant, got %+v", created)
	}
}

func TestLubrifiantUpdateSubmitsParcSet(t *testing.T) {
	h, lubs, _, _ := newLubrifiantFixture()

	session := testSession(perm("lubrifiant", rbac.ActionUpdate))
	r := jsonRequest(t, http.MethodPut, "/api/lubrifiant/lub-1", LubrifiantUpdateRequest{
		ParcIDs: []string{"parc-2", "parc-3"},
	}, session)
	r.SetPathValue("id", "lub-1")
	w := httptest.NewRecorder()
	h.Update(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if lubs.updated == nil || !reflect.DeepEqual(lubs.updated.ParcIDs, []string{"parc-2", "parc-3"}) {
		t.Fatalf("submitted parc set = %+v", lubs.updated)
	}
	if lubs.updated.Name != nil {
		t.Fatalf("name was not submitted and must stay nil")
	}
}

func TestLubrifiantUpdateRequiresAField(t *testing.T) {
	h, _, _, _ := newLubrifiantFixture()

	session := testSession(perm("lubrifiant", rbac.ActionUpdate))
	r := jsonRequest(t, http.MethodPut, "/api/lubrifiant/lub-1", LubrifiantUpdateRequest{}, session)
	r.SetPathValue("id", "lub-1")
	w := httptest.NewRecorder()
	h.Update(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if msg := decodeMessage(t, w); msg != "Au moins un champ à mettre à jour est requis" {
		t.Fatalf("message = %q", msg)
	}
}

func TestLubrifiantDeleteReferenced(t *testing.T) {
	h, lubs, _, _ := newLubrifiantFixture()
	lubs.deleteErr = &domain.ReferencedError{
		Resource: "lubrifiant",
		Count:    3,
		Message:  "Impossible de supprimer ce lubrifiant car il est utilisé dans 3 saisie(s) de lubrifiant",
	}

	session := testSession(perm("lubrifiant", rbac.ActionDelete))
	r := jsonRequest(t, http.MethodDelete, "/api/lubrifiant/lub-1", nil, session)
	r.SetPathValue("id", "lub-1")
	w := httptest.NewRecorder()
	h.Delete(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	want := "Impossible de supprimer ce lubrifiant car il est utilisé dans 3 saisie(s) de lubrifiant"
	if msg := decodeMessage(t, w); msg != want {
		t.Fatalf("message = %q", msg)
	}
}

func TestLubrifiantDeleteSuccess(t *testing.T) {
	h, lubs, _, _ := newLubrifiantFixture()

	session := testSession(perm("lubrifiant", rbac.ActionDelete))
	r := jsonRequest(t, http.MethodDelete, "/api/lubrifiant/lub-1", nil, session)
	r.SetPathValue("id", "lub-1")
	w := httptest.NewRecorder()
	h.Delete(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if msg := decodeMessage(t, w); msg != "Lubrifiant supprimé avec succès" {
		t.Fatalf("message = %q", msg)
	}
	if len(lubs.deleted) != 1 || lubs.deleted[0] != "lub-1" {
		t.Fatalf("deleted = %v", lubs.deleted)
	}
}

func TestLubrifiantSuperAdminBypassesPermissions(t *testing.T) {
	h, _, _, _ := newLubrifiantFixture()

	session := testSession()
	session.IsSuperAdmin = true
	r := jsonRequest(t, http.MethodGet, "/api/lubrifiant", nil, session)
	w := httptest.NewRecorder()
	h.List(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
