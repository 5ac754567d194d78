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

const userResource = "user"

// UserResponse is the user API shape. The password hash never leaves the
// server.
type UserResponse struct {
	ID        string        `json:"id"`
	Email     string        `json:"email"`
	Name      string        `json:"name"`
	Active    bool          `json:"active"`
	IsOwner   bool          `json:"isOwner"`
	Roles     []RoleSummary `json:"roles"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// UserCreateRequest creates a user inside the caller's tenant. New accounts
// start inactive until an admin activates them.
type UserCreateRequest struct {
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Password string   `json:"password"`
	RoleIDs  []string `json:"roleIds"`
}

// UserUpdateRequest toggles activation or reassigns roles. A nil RoleIDs
// keeps the current set.
type UserUpdateRequest struct {
	Active  *bool    `json:"active"`
	RoleIDs []string `json:"roleIds"`
}

// UserHandler serves the tenant user management endpoints
type UserHandler struct {
	users  domain.UserRepository
	roles  domain.RoleRepository
	hasher *auth.Hasher
	guard  *rbac.Guard
	cache  *cache.Cache
	audit  *audit.Logger
	logger *slog.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(users domain.UserRepository, roles domain.RoleRepository, hasher *auth.Hasher, guard *rbac.Guard, statsCache *cache.Cache, auditLogger *audit.Logger, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		roles:  roles,
		hasher: hasher,
		guard:  guard,
		cache:  statsCache,
		audit:  auditLogger,
		logger: logger,
	}
}

// List handles GET /api/users requests
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	if denial := h.guard.ProtectRead(r, userResource); denial != nil {
		denial.Write(w)
		return
	}
	session := auth.FromContext(r.Context())

	users, err := h.users.ListByTenant(r.Context(), session.Tenant.ID)
	if err != nil {
		writeError(w, h.logger, err, ErrorMessages{Internal: "Erreur lors de la récupération des utilisateurs"})
		return
	}

	out := make([]UserResponse, 0, len(users))
	for _, user := range users {
		out = append(out, userResponse(user))
	}
	writeJSON(w, http.StatusOK, out)
}

// Create handles POST /api/users requests
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	if denial := h.guard.ProtectCreate(r, userResource); denial != nil {
		denial.Write(w)
		return
	}
	session := auth.FromContext(r.Context())

	var req UserCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	var msgs []string
	if strings.TrimSpace(req.Email) == "" || !strings.Contains(req.Email, "@") {
		msgs = append(msgs, "Email doit être une adresse email valide")
	}
	if strings.TrimSpace(req.Name) == "" {
		msgs = append(msgs, "Nom est un champ obligatoire")
	}
	if len(req.Password) < 6 {
		msgs = append(msgs, "Mot de passe doit contenir au moins 6 caractères")
	}
	if len(msgs) > 0 {
		writeError(w, h.logger, domain.NewValidationError(msgs...), ErrorMessages{})
		return
	}

	if !h.validateRoles(w, r, session.Tenant.ID, req.RoleIDs) {
		return
	}

	taken, err := h.users.EmailExists(r.Context(), session.Tenant.ID, strings.TrimSpace(req.Email))
	if err != nil {
		writeError(w, h.logger, err, ErrorMessages{Internal: "Erreur lors de la création"})
		return
	}
	if taken {
		writeMessage(w, http.StatusBadRequest, "Cet email est déjà utilisé")
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", slog.String("error", err.Error()))
		writeMessage(w, http.StatusInternalServerError, "Erreur lors de la création")
		return
	}

	user := &domain.User{
		TenantID:     session.Tenant.ID,
		Email:        strings.TrimSpace(req.Email),
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		Active:       false,
	}
	if err := h.users.Create(r.Context(), user, req.RoleIDs); err != nil {
		writeError(w, h.logger, err, ErrorMessages{
			Duplicate: "Cet email est déjà utilisé",
			Internal:  "Erreur lors de la création",
		})
		return
	}

	h.cache.Delete("stats:" + session.Tenant.ID)
	h.audit.LogMutation(r.Context(), session.Tenant.ID, session.UserID, "create", userResource, user.ID, "ok")

	created, err := h.users.GetByID(r.Context(), session.Tenant.ID, user.ID)
	if err != nil {
		writeError(w, h.logger, err, ErrorMessages{Internal: "Erreur lors de la création"})
		return
	}
	writeJSON(w, http.StatusCreated, userResponse(created))
}

// Update handles PATCH /api/users/{id} requests
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	if denial := h.guard.ProtectUpdate(r, userResource); denial != nil {
		denial.Write(w)
		return
	}
	session := auth.FromContext(r.Context())

	id := r.PathValue("id")
	if id == "" {
		writeMessage(w, http.StatusBadRequest, "ID de l'utilisateur requis")
		return
	}

	var req UserUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requête invalide")
		return
	}
	if req.Active == nil && req.RoleIDs == nil {
		writeMessage(w, http.StatusBadRequest, "Au moins un champ à mettre à jour est requis")
		return
	}

	if !h.validateRoles(w, r, session.Tenant.ID, req.RoleIDs) {
		return
	}

	if req.RoleIDs != nil {
		if err := h.users.ReconcileRoles(r.Context(), session.Tenant.ID, id, req.RoleIDs); err != nil {
			writeError(w, h.logger, err, ErrorMessages{
				NotFound: "Utilisateur introuvable",
				Internal: "Erreur lors de la modification",
			})
			return
		}
	}

	if req.Active != nil {
		if _, err := h.users.SetActive(r.Context(), session.Tenant.ID, id, *req.Active); err != nil {
			writeError(w, h.logger, err, ErrorMessages{
				NotFound: "Utilisateur introuvable",
				Internal: "Erreur lors de la modification",
			})
			return
		}
	}

	h.audit.LogMutation(r.Context(), session.Tenant.ID, session.UserID, "update", userResource, id, "ok")

	user, err := h.users.GetByID(r.Context(), session.Tenant.ID, id)
	if err != nil {
		writeError(w, h.logger, err, ErrorMessages{
			NotFound: "Utilisateur introuvable",
			Internal: "Erreur lors de la modification",
		})
		return
	}
	writeJSON(w, http.StatusOK, userResponse(user))
}

func (h *UserHandler) validateRoles(w http.ResponseWriter, r *http.Request, tenantID string, roleIDs []string) bool {
	for _, roleID := range roleIDs {
		if _, err := h.roles.GetByID(r.Context(), tenantID, roleID); err != nil {
			writeMessage(w, http.StatusBadRequest, "Un ou plusieurs rôles spécifiés n'existent pas")
			return false
		}
	}
	return true
}

func userResponse(user *domain.User) UserResponse {
	roles := make([]RoleSummary, 0, len(user.Roles))
	for _, role := range user.Roles {
		roles = append(roles, RoleSummary{ID: role.ID, Name: role.Name, Description: role.Description})
	}
	return UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Active:    user.Active,
		IsOwner:   user.IsOwner,
		Roles:     roles,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
