package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yourorg/parcfleet/internal/domain"
	"github.com/yourorg/parcfleet/internal/security/auth"
)

func newLoginFixture(t *testing.T) (*LoginHandler, *fakeTenantRepo, *fakeUserRepo) {
	t.Helper()
	hasher := auth.NewHasher(4)
	hash, err := hasher.Hash("secret123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	tenants := &fakeTenantRepo{byName: map[string]*domain.Tenant{
		"acme": {ID: testTenantID, Name: "acme"},
	}}
	users := &fakeUserRepo{byEmail: map[string]*domain.User{
		"marie@acme.fr": {
			ID:           "user-1",
			TenantID:     testTenantID,
			Email:        "marie@acme.fr",
			Name:         "Marie",
			PasswordHash: hash,
			Active:       true,
		},
	}}

	sessions := auth.NewSessionManager("test-secret", "", time.Hour, false, nil, testLogger())
	h := NewLoginHandler(tenants, users, hasher, sessions, testAudit(), testLogger())
	return h, tenants, users
}

func TestLoginSuccessIssuesCookie(t *testing.T) {
	h, _, _ := newLoginFixture(t)

	r := jsonRequest(t, http.MethodPost, "/api/auth/login", LoginRequest{
		Email:      "marie@acme.fr",
		Password:   "secret123",
		TenantName: "acme",
	}, auth.Session{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "true" {
		t.Fatalf("body = %q, want true", got)
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "parcfleet_session" {
		t.Fatalf("expected the session cookie, got %v", cookies)
	}
	if cookies[0].Value == "" || !cookies[0].HttpOnly {
		t.Fatalf("session cookie must be non-empty and HttpOnly")
	}
}

func TestLoginUnknownTenant(t *testing.T) {
	h, _, _ := newLoginFixture(t)

	r := jsonRequest(t, http.MethodPost, "/api/auth/login", LoginRequest{
		Email:      "marie@acme.fr",
		Password:   "secret123",
		TenantName: "nobody",
	}, auth.Session{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if msg := decodeMessage(t, w); msg != "Ce nom d'entreprise n'existe pas" {
		t.Fatalf("message = %q", msg)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h, _, _ := newLoginFixture(t)

	r := jsonRequest(t, http.MethodPost, "/api/auth/login", LoginRequest{
		Email:      "marie@acme.fr",
		Password:   "wrong-pass",
		TenantName: "acme",
	}, auth.Session{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if msg := decodeMessage(t, w); msg != "Email ou mot de passe incorrect!" {
		t.Fatalf("message = %q", msg)
	}
}

func TestLoginUnknownEmailSameMessageAsWrongPassword(t *testing.T) {
	h, _, _ := newLoginFixture(t)

	r := jsonRequest(t, http.MethodPost, "/api/auth/login", LoginRequest{
		Email:      "nobody@acme.fr",
		Password:   "secret123",
		TenantName: "acme",
	}, auth.Session{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if msg := decodeMessage(t, w); msg != "Email ou mot de passe incorrect!" {
		t.Fatalf("message = %q", msg)
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	h, _, users := newLoginFixture(t)
	users.byEmail["marie@acme.fr"].Active = false

	r := jsonRequest(t, http.MethodPost, "/api/auth/login", LoginRequest{
		Email:      "marie@acme.fr",
		Password:   "secret123",
		TenantName: "acme",
	}, auth.Session{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	want := "Votre compte n'est pas encore activé, veuillez contacter un admin pour l'activation."
	if msg := decodeMessage(t, w); msg != want {
		t.Fatalf("message = %q", msg)
	}
}

func TestLoginValidation(t *testing.T) {
	h, _, _ := newLoginFixture(t)

	r := jsonRequest(t, http.MethodPost, "/api/auth/login", LoginRequest{
		Email:    "not-an-email",
		Password: "123",
	}, auth.Session{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
