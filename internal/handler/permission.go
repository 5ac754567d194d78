package handler

import (
	"log/slog"
	"net/http"

	"github.com/yourorg/parcfleet/internal/domain"
	"github.com/yourorg/parcfleet/internal/security/auth"
	"github.com/yourorg/parcfleet/internal/security/rbac"
)

const permissionResource = "permission"

// PermissionResponse is the permission API shape
type PermissionResponse struct {
	ID       string `json:"id"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// PermissionHandler serves the tenant's permission catalog
type PermissionHandler struct {
	permissions domain.PermissionRepository
	guard       *rbac.Guard
	logger      *slog.Logger
}

// NewPermissionHandler creates a new permission handler
func NewPermissionHandler(permissions domain.PermissionRepository, guard *rbac.Guard, logger *slog.Logger) *PermissionHandler {
	return &PermissionHandler{permissions: permissions, guard: guard, logger: logger}
}

// List handles GET /api/permissions requests
func (h *PermissionHandler) List(w http.ResponseWriter, r *http.Request) {
	if denial := h.guard.ProtectRead(r, permissionResource); denial != nil {
		denial.Write(w)
		return
	}
	session := auth.FromContext(r.Context())

	perms, err := h.permissions.ListByTenant(r.Context(), session.Tenant.ID)
	if err != nil {
		writeError(w, h.logger, err, ErrorMessages{Internal: "Erreur lors de la récupération des permissions"})
		return
	}

	out := make([]PermissionResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, PermissionResponse{ID: p.ID, Resource: p.Resource, Action: p.Action})
	}
	writeJSON(w, http.StatusOK, out)
}
