package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yourorg/parcfleet/internal/domain"
	"github.com/yourorg/parcfleet/internal/observability/metrics"
	"github.com/yourorg/parcfleet/internal/security/audit"
	"github.com/yourorg/parcfleet/internal/security/auth"
	"github.com/yourorg/parcfleet/internal/security/rbac"
)

// LoginRequest represents login credentials scoped to a tenant
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	TenantName string `json:"tenantName"`
}

// LoginHandler authenticates a user and issues the session cookie
type LoginHandler struct {
	tenants  domain.TenantRepository
	users    domain.UserRepository
	hasher   *auth.Hasher
	sessions *auth.SessionManager
	audit    *audit.Logger
	logger   *slog.Logger
}

// NewLoginHandler creates a new login handler
func NewLoginHandler(tenants domain.TenantRepository, users domain.UserRepository, hasher *auth.Hasher, sessions *auth.SessionManager, auditLogger *audit.Logger, logger *slog.Logger) *LoginHandler {
	return &LoginHandler{
		tenants:  tenants,
		users:    users,
		hasher:   hasher,
		sessions: sessions,
		audit:    auditLogger,
		logger:   logger,
	}
}

// ServeHTTP handles POST /api/auth/login requests
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	if msgs := validateLogin(req); len(msgs) > 0 {
		writeError(w, h.logger, domain.NewValidationError(msgs...), ErrorMessages{})
		return
	}

	tenant, err := h.tenants.GetByName(r.Context(), strings.TrimSpace(req.TenantName))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.ObserveLogin("unknown_tenant")
			writeMessage(w, http.StatusNotFound, "Ce nom d'entreprise n'existe pas")
			return
		}
		writeError(w, h.logger, err, ErrorMessages{})
		return
	}

	user, err := h.users.GetByEmailWithAccess(r.Context(), tenant.ID, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Same message as a wrong password to prevent enumeration.
			metrics.ObserveLogin("bad_credentials")
			h.audit.LogLogin(r.Context(), tenant.ID, "", "bad_credentials")
			writeMessage(w, http.StatusUnauthorized, "Email ou mot de passe incorrect!")
			return
		}
		writeError(w, h.logger, err, ErrorMessages{})
		return
	}

	if !h.hasher.Verify(req.Password, user.PasswordHash) {
		metrics.ObserveLogin("bad_credentials")
		h.audit.LogLogin(r.Context(), tenant.ID, user.ID, "bad_credentials")
		writeMessage(w, http.StatusUnauthorized, "Email ou mot de passe incorrect!")
		return
	}

	if !user.Active {
		metrics.ObserveLogin("inactive")
		h.audit.LogLogin(r.Context(), tenant.ID, user.ID, "inactive")
		writeMessage(w, http.StatusUnauthorized,
			"Votre compte n'est pas encore activé, veuillez contacter un admin pour l'activation.")
		return
	}

	session := auth.Session{
		UserID:       user.ID,
		Email:        user.Email,
		Name:         user.Name,
		Roles:        rbac.RoleNames(user.Roles),
		Permissions:  rbac.Flatten(user.Roles),
		IsSuperAdmin: user.IsSuperAdmin,
		IsOwner:      user.IsOwner,
		Tenant:       auth.SessionTenant{ID: tenant.ID, Name: tenant.Name},
	}
	if err := h.sessions.Issue(w, session); err != nil {
		h.logger.Error("failed to issue session",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		writeMessage(w, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	metrics.ObserveLogin("success")
	h.audit.LogLogin(r.Context(), tenant.ID, user.ID, "success")
	h.logger.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("tenant_id", tenant.ID),
	)

	writeJSON(w, http.StatusOK, true)
}

func validateLogin(req LoginRequest) []string {
	var msgs []string
	if strings.TrimSpace(req.Email) == "" || !strings.Contains(req.Email, "@") {
		msgs = append(msgs, "Email doit être une adresse email valide")
	}
	if len(req.Password) < 6 {
		msgs = append(msgs, "Mot de passe doit contenir au moins 6 caractères")
	}
	if strings.TrimSpace(req.TenantName) == "" {
		msgs = append(msgs, "Entreprise est un champ obligatoire")
	}
	return msgs
}
