package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yourorg/parcfleet/internal/domain"
	"github.com/yourorg/parcfleet/internal/security/auth"
)

// ProfileResponse is the authenticated user's own account shape. The password
// hash never leaves the server.
type ProfileResponse struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Name      string         `json:"name"`
	Active    bool           `json:"active"`
	IsOwner   bool           `json:"isOwner"`
	Roles     []RoleSummary  `json:"roles"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Tenant    TenantResponse `json:"tenant"`
}

// RoleSummary is the trimmed role shape embedded in user responses
type RoleSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ProfileUpdateRequest carries the optional self-service profile changes.
// Changing the password requires the current one.
type ProfileUpdateRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	CurrentPassword string `json:"currentPassword"`
}

// ProfileHandler serves and updates the authenticated user's own account
type ProfileHandler struct {
	users  domain.UserRepository
	hasher *auth.Hasher
	logger *slog.Logger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(users domain.UserRepository, hasher *auth.Hasher, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{users: users, hasher: hasher, logger: logger}
}

// Get handles GET /api/auth/profile requests
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	session := auth.FromContext(r.Context())
	if !session.IsLoggedIn {
		writeMessage(w, http.StatusUnauthorized, "Non authentifié, veuillez vous connecter")
		return
	}

	user, err := h.users.GetByID(r.Context(), session.Tenant.ID, session.UserID)
	if err != nil {
		writeError(w, h.logger, err, ErrorMessages{NotFound: "Utilisateur introuvable"})
		return
	}
	writeJSON(w, http.StatusOK, profileResponse(user, session))
}

// Update handles PATCH /api/auth/profile requests
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	session := auth.FromContext(r.Context())
	if !session.IsLoggedIn {
		writeMessage(w, http.StatusUnauthorized, "Non authentifié, veuillez vous connecter")
		return
	}

	var req ProfileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	existing, err := h.users.GetByID(r.Context(), session.Tenant.ID, session.UserID)
	if err != nil {
		writeError(w, h.logger, err, ErrorMessages{NotFound: "Utilisateur introuvable"})
		return
	}

	var passwordHash *string
	if strings.TrimSpace(req.Password) != "" {
		if req.CurrentPassword == "" {
			writeMessage(w, http.StatusBadRequest, "Le mot de passe actuel est requis")
			return
		}
		if !h.hasher.Verify(req.CurrentPassword, existing.PasswordHash) {
			writeMessage(w, http.StatusBadRequest, "Mot de passe actuel incorrect")
			return
		}
		hash, err := h.hasher.Hash(req.Password)
		if err != nil {
			h.logger.Error("failed to hash password", slog.String("error", err.Error()))
			writeMessage(w, http.StatusInternalServerError, "Erreur lors de la mise à jour du profil")
			return
		}
		passwordHash = &hash
	}

	var name, email *string
	if strings.TrimSpace(req.Name) != "" {
		trimmed := strings.TrimSpace(req.Name)
		name = &trimmed
	}
	if strings.TrimSpace(req.Email) != "" && req.Email != existing.Email {
		taken, err := h.users.EmailExists(r.Context(), session.Tenant.ID, req.Email)
		if err != nil {
			writeError(w, h.logger, err, ErrorMessages{Internal: "Erreur lors de la mise à jour du profil"})
			return
		}
		if taken {
			writeMessage(w, http.StatusBadRequest, "Cet email est déjà utilisé")
			return
		}
		trimmed := strings.TrimSpace(req.Email)
		email = &trimmed
	}

	if name == nil && email == nil && passwordHash == nil {
		writeMessage(w, http.StatusBadRequest, "Au moins un champ à mettre à jour est requis")
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), session.Tenant.ID, session.UserID, name, email, passwordHash)
	if err != nil {
		writeError(w, h.logger, err, ErrorMessages{
			NotFound:  "Utilisateur introuvable",
			Duplicate: "Cet email est déjà utilisé",
			Internal:  "Erreur lors de la mise à jour du profil",
		})
		return
	}
	writeJSON(w, http.StatusOK, profileResponse(user, session))
}

func profileResponse(user *domain.User, session auth.Session) ProfileResponse {
	roles := make([]RoleSummary, 0, len(user.Roles))
	for _, role := range user.Roles {
		roles = append(roles, RoleSummary{ID: role.ID, Name: role.Name, Description: role.Description})
	}
	return ProfileResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Active:    user.Active,
		IsOwner:   user.IsOwner,
		Roles:     roles,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
		Tenant:    TenantResponse{ID: session.Tenant.ID, Name: session.Tenant.Name},
	}
}
