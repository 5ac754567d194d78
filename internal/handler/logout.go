package handler

import (
	"log/slog"
	"net/http"

	"github.com/yourorg/parcfleet/internal/security/audit"
	"github.com/yourorg/parcfleet/internal/security/auth"
)

// LogoutHandler clears the session cookie and revokes the backing token
type LogoutHandler struct {
	sessions *auth.SessionManager
	audit    *audit.Logger
	logger   *slog.Logger
}

// NewLogoutHandler creates a new logout handler
func NewLogoutHandler(sessions *auth.SessionManager, auditLogger *audit.Logger, logger *slog.Logger) *LogoutHandler {
	return &LogoutHandler{sessions: sessions, audit: auditLogger, logger: logger}
}

// ServeHTTP handles POST /api/auth/logout requests. Logout is idempotent: a
// request without a session still gets the expired cookie back.
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	session := auth.FromContext(r.Context())
	h.sessions.Clear(r.Context(), w, session)

	if session.IsLoggedIn {
		h.audit.LogLogout(r.Context(), session.Tenant.ID, session.UserID)
	}
	writeMessage(w, http.StatusOK, "Déconnexion réussie")
}
