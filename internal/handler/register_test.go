package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yourorg/parcfleet/internal/domain"
	"github.com/yourorg/parcfleet/internal/security/auth"
)

func newRegisterFixture() (*RegisterHandler, *fakeTenantRepo) {
	tenants := &fakeTenantRepo{byName: map[string]*domain.Tenant{
		"acme": {ID: testTenantID, Name: "acme"},
	}}
	h := NewRegisterHandler(tenants, auth.NewHasher(4), testLogger())
	return h, tenants
}

func TestRegisterCreatesTenantAndOwner(t *testing.T) {
	h, tenants := newRegisterFixture()

	r := jsonRequest(t, http.MethodPost, "/api/auth/register", RegisterRequest{
		Email:      "paul@garage.fr",
		Password:   "secret123",
		Name:       "Paul",
		TenantName: "garage-paul",
	}, auth.Session{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}

	var resp RegisterResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Message != "Compte créé avec succès" {
		t.Fatalf("message = %q", resp.Message)
	}
	if resp.Tenant.Name != "garage-paul" || resp.User.Email != "paul@garage.fr" {
		t.Fatalf("response = %+v", resp)
	}
	if tenants.created == nil {
		t.Fatalf("tenant was not created")
	}
}

func TestRegisterDuplicateTenantName(t *testing.T) {
	h, _ := newRegisterFixture()

	r := jsonRequest(t, http.MethodPost, "/api/auth/register", RegisterRequest{
		Email:      "paul@garage.fr",
		Password:   "secret123",
		Name:       "Paul",
		TenantName: "acme",
	}, auth.Session{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if msg := decodeMessage(t, w); msg != "Ce nom d'entreprise existe déjà" {
		t.Fatalf("message = %q", msg)
	}
}

func TestRegisterDuplicateRaceMapsToSameMessage(t *testing.T) {
	h, tenants := newRegisterFixture()
	tenants.createErr = domain.ErrDuplicate

	r := jsonRequest(t, http.MethodPost, "/api/auth/register", RegisterRequest{
		Email:      "paul@garage.fr",
		Password:   "secret123",
		Name:       "Paul",
		TenantName: "garage-paul",
	}, auth.Session{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if msg := decodeMessage(t, w); msg != "Ce nom d'entreprise existe déjà" {
		t.Fatalf("message = %q", msg)
	}
}

func TestRegisterValidation(t *testing.T) {
	h, _ := newRegisterFixture()

	r := jsonRequest(t, http.MethodPost, "/api/auth/register", RegisterRequest{
		Email:    "bad",
		Password: "123",
	}, auth.Session{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
