package rbac

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/yourorg/parcfleet/internal/observability/metrics"
	"github.com/yourorg/parcfleet/internal/security/auth"
)

// Denial is the short-circuit result of a guard check. A nil *Denial means
// the request may proceed.
type Denial struct {
	Status  int
	Message string
}

// Write sends the denial as a JSON error response.
func (d *Denial) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(d.Status)
	json.NewEncoder(w).Encode(map[string]string{"message": d.Message})
}

// Guard is the chokepoint every protected endpoint passes through before
// touching the persistence layer. It only reads the session; it never mutates
// session or store state.
type Guard struct {
	logger *slog.Logger
}

// NewGuard creates a route guard
func NewGuard(logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{logger: logger}
}

// ProtectRead guards read access to resource.
func (g *Guard) ProtectRead(r *http.Request, resource string) *Denial {
	return g.protect(r, resource, ActionRead)
}

// ProtectCreate guards create access to resource.
func (g *Guard) ProtectCreate(r *http.Request, resource string) *Denial {
	return g.protect(r, resource, ActionCreate)
}

// ProtectUpdate guards update access to resource.
func (g *Guard) ProtectUpdate(r *http.Request, resource string) *Denial {
	return g.protect(r, resource, ActionUpdate)
}

// ProtectDelete guards delete access to resource.
func (g *Guard) ProtectDelete(r *http.Request, resource string) *Denial {
	return g.protect(r, resource, ActionDelete)
}

func (g *Guard) protect(r *http.Request, resource, action string) *Denial {
	session := auth.FromContext(r.Context())

	if !session.IsLoggedIn || session.UserID == "" {
		return &Denial{
			Status:  http.StatusUnauthorized,
			Message: "Non authentifié, veuillez vous connecter",
		}
	}

	if !Can(session, resource, action) {
		g.logger.Warn("permission denied",
			slog.String("user_id", session.UserID),
			slog.String("tenant_id", session.Tenant.ID),
			slog.String("resource", resource),
			slog.String("action", action),
		)
		metrics.ObservePermissionDenied(resource, action)
		return &Denial{
			Status:  http.StatusForbidden,
			Message: fmt.Sprintf("Accès refusé : permission %s requise sur %s", action, resource),
		}
	}

	return nil
}
