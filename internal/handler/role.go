package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yourorg/parcfleet/internal/domain"
	"github.com/yourorg/parcfleet/internal/security/audit"
	"github.com/yourorg/parcfleet/internal/security/auth"
	"github.com/yourorg/parcfleet/internal/security/rbac"
	"github.com/yourorg/parcfleet/pkg/cache"
)

const roleResource = "role"

// RoleResponse is the role API shape, permissions and user count included
type RoleResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Permissions []PermissionResponse `json:"permissions"`
	Count       RoleCounts           `json:"_count"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

// RoleCounts carries the assigned user count shown in the UI
type RoleCounts struct {
	Users int `json:"users"`
}

// RoleCreateRequest creates a role with an optional permission set
type RoleCreateRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

// RoleUpdateRequest carries the optional role changes. A nil Permissions
// keeps the current set; an empty slice disconnects everything.
type RoleUpdateRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Permissions []string `json:"permissions"`
}

// RoleHandler serves the role CRUD endpoints
type RoleHandler struct {
	roles       domain.RoleRepository
	permissions domain.PermissionRepository
	guard       *rbac.Guard
	cache       *cache.Cache
	audit       *audit.Logger
	logger      *slog.Logger
}

// NewRoleHandler creates a new role handler
func NewRoleHandler(roles domain.RoleRepository, permissions domain.PermissionRepository, guard *rbac.Guard, statsCache *cache.Cache, auditLogger *audit.Logger, logger *slog.Logger) *RoleHandler {
	return &RoleHandler{
		roles:       roles,
		permissions: permissions,
		guard:       guard,
		cache:       statsCache,
		audit:       auditLogger,
		logger:      logger,
	}
}

// List handles GET /api/roles requests
func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	if denial := h.guard.ProtectRead(r, roleResource); denial != nil {
		denial.Write(w)
		return
	}
	session := auth.FromContext(r.Context())

	roles, err := h.roles.ListByTenant(r.Context(), session.Tenant.ID)
	if err != nil {
		writeError(w, h.logger, err, ErrorMessages{Internal: "Erreur lors de la récupération des rôles"})
		return
	}

	out := make([]RoleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, roleResponse(role))
	}
	writeJSON(w, http.StatusOK, out)
}

// Get handles GET /api/roles/{id} requests
func (h *RoleHandler) Get(w http.ResponseWriter, r *http.Request) {
	if denial := h.guard.ProtectRead(r, roleResource); denial != nil {
		denial.Write(w)
		return
	}
	session := auth.FromContext(r.Context())

	id := r.PathValue("id")
	if id == "" {
		writeMessage(w, http.StatusBadRequest, "ID du rôle requis")
		return
	}

	role, err := h.roles.GetByID(r.Context(), session.Tenant.ID, id)
	if err != nil {
		writeError(w, h.logger, err, ErrorMessages{
			NotFound: "Rôle non trouvé",
			Internal: "Erreur lors de la récupération du rôle",
		})
		return
	}
	writeJSON(w, http.StatusOK, roleResponse(role))
}

// Create handles POST /api/roles requests
func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	if denial := h.guard.ProtectCreate(r, roleResource); denial != nil {
		denial.Write(w)
		return
	}
	session := auth.FromContext(r.Context())

	var req RoleCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requête invalide")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeMessage(w, http.StatusBadRequest, "Le nom du rôle est requis")
		return
	}

	if !h.validatePermissions(w, r, session.Tenant.ID, req.Permissions) {
		return
	}

	role := &domain.Role{
		TenantID:    session.Tenant.ID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
	}
	if err := h.roles.Create(r.Context(), role, req.Permissions); err != nil {
		writeError(w, h.logger, err, ErrorMessages{
			Duplicate: "Un rôle avec ce nom existe déjà",
			Internal:  "Erreur lors de la création du rôle",
		})
		return
	}

	h.cache.Delete("stats:" + session.Tenant.ID)
	h.audit.LogMutation(r.Context(), session.Tenant.ID, session.UserID, "create", roleResource, role.ID, "ok")

	created, err := h.roles.GetByID(r.Context(), session.Tenant.ID, role.ID)
	if err != nil {
		writeError(w, h.logger, err, ErrorMessages{Internal: "Erreur lors de la création du rôle"})
		return
	}
	writeJSON(w, http.StatusCreated, roleResponse(created))
}

// Update handles PUT /api/roles/{id} requests
func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	if denial := h.guard.ProtectUpdate(r, roleResource); denial != nil {
		denial.Write(w)
		return
	}
	session := auth.FromContext(r.Context())

	id := r.PathValue("id")
	if id == "" {
		writeMessage(w, http.StatusBadRequest, "ID du rôle requis")
		return
	}

	var req RoleUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	if req.Name == nil && req.Description == nil && req.Permissions == nil {
		writeMessage(w, http.StatusBadRequest, "Au moins un champ à mettre à jour est requis")
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		writeMessage(w, http.StatusBadRequest, "Le nom du rôle est requis")
		return
	}

	if !h.validatePermissions(w, r, session.Tenant.ID, req.Permissions) {
		return
	}

	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	if req.Description != nil {
		trimmed := strings.TrimSpace(*req.Description)
		req.Description = &trimmed
	}

	role, err := h.roles.Update(r.Context(), session.Tenant.ID, id, req.Name, req.Description, req.Permissions)
	if err != nil {
		writeError(w, h.logger, err, ErrorMessages{
			NotFound:  "Rôle non trouvé",
			Duplicate: "Un rôle avec ce nom existe déjà",
			Internal:  "Erreur lors de la modification du rôle",
		})
		return
	}

	h.audit.LogMutation(r.Context(), session.Tenant.ID, session.UserID, "update", roleResource, id, "ok")
	writeJSON(w, http.StatusOK, roleResponse(role))
}

// Delete handles DELETE /api/roles/{id} requests
func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if denial := h.guard.ProtectDelete(r, roleResource); denial != nil {
		denial.Write(w)
		return
	}
	session := auth.FromContext(r.Context())

	id := r.PathValue("id")
	if id == "" {
		writeMessage(w, http.StatusBadRequest, "ID du rôle requis")
		return
	}

	if err := h.roles.Delete(r.Context(), session.Tenant.ID, id); err != nil {
		writeError(w, h.logger, err, ErrorMessages{
			NotFound: "Rôle non trouvé",
			Internal: "Erreur lors de la suppression du rôle",
		})
		return
	}

	h.cache.Delete("stats:" + session.Tenant.ID)
	h.audit.LogMutation(r.Context(), session.Tenant.ID, session.UserID, "delete", roleResource, id, "ok")
	writeMessage(w, http.StatusOK, "Rôle supprimé avec succès")
}

func (h *RoleHandler) validatePermissions(w http.ResponseWriter, r *http.Request, tenantID string, ids []string) bool {
	if len(ids) == 0 {
		return true
	}
	ok, err := h.permissions.ExistAll(r.Context(), tenantID, ids)
	if err != nil {
		writeError(w, h.logger, err, ErrorMessages{Internal: "Erreur lors de la modification du rôle"})
		return false
	}
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Une ou plusieurs permissions spécifiées n'existent pas")
		return false
	}
	return true
}

func roleResponse(role *domain.Role) RoleResponse {
	perms := make([]PermissionResponse, 0, len(role.Permissions))
	for _, p := range role.Permissions {
		perms = append(perms, PermissionResponse{ID: p.ID, Resource: p.Resource, Action: p.Action})
	}
	return RoleResponse{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		Permissions: perms,
		Count:       RoleCounts{Users: role.UserCount},
		CreatedAt:   role.CreatedAt,
		UpdatedAt:   role.UpdatedAt,
	}
}
