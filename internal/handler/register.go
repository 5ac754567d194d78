package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yourorg/parcfleet/internal/domain"
	"github.com/yourorg/parcfleet/internal/security/auth"
)

// RegisterRequest creates a tenant and its owner account in one call
type RegisterRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Name       string `json:"name"`
	TenantName string `json:"tenantName"`
}

// RegisterResponse confirms the created tenant and owner
type RegisterResponse struct {
	Message string         `json:"message"`
	Tenant  TenantResponse `json:"tenant"`
	User    UserSummary    `json:"user"`
}

// TenantResponse is the public tenant shape
type TenantResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserSummary is the trimmed user shape returned at registration
type UserSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// RegisterHandler handles tenant self-registration
type RegisterHandler struct {
	tenants domain.TenantRepository
	hasher  *auth.Hasher
	logger  *slog.Logger
}

// NewRegisterHandler creates a new registration handler
func NewRegisterHandler(tenants domain.TenantRepository, hasher *auth.Hasher, logger *slog.Logger) *RegisterHandler {
	return &RegisterHandler{tenants: tenants, hasher: hasher, logger: logger}
}

// ServeHTTP handles POST /api/auth/register requests
func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	if msgs := validateRegister(req); len(msgs) > 0 {
		writeError(w, h.logger, domain.NewValidationError(msgs...), ErrorMessages{})
		return
	}

	tenantName := strings.TrimSpace(req.TenantName)
	if _, err := h.tenants.GetByName(r.Context(), tenantName); err == nil {
		writeMessage(w, http.StatusBadRequest, "Ce nom d'entreprise existe déjà")
		return
	} else if !errors.Is(err, domain.ErrNotFound) {
		writeError(w, h.logger, err, ErrorMessages{Internal: "Erreur lors de la création du compte"})
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", slog.String("error", err.Error()))
		writeMessage(w, http.StatusInternalServerError, "Erreur lors de la création du compte")
		return
	}

	tenant := &domain.Tenant{Name: tenantName}
	owner := &domain.User{
		Email:        strings.TrimSpace(req.Email),
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		Active:       true,
		IsOwner:      true,
	}
	if err := h.tenants.CreateWithOwner(r.Context(), tenant, owner); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			// The tenant name check raced with another registration, or the
			// email collided inside the freshly created tenant.
			writeMessage(w, http.StatusBadRequest, "Ce nom d'entreprise existe déjà")
			return
		}
		writeError(w, h.logger, err, ErrorMessages{Internal: "Erreur lors de la création du compte"})
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{
		Message: "Compte créé avec succès",
		Tenant:  TenantResponse{ID: tenant.ID, Name: tenant.Name},
		User:    UserSummary{ID: owner.ID, Email: owner.Email, Name: owner.Name},
	})
}

func validateRegister(req RegisterRequest) []string {
	var msgs []string
	if strings.TrimSpace(req.Email) == "" || !strings.Contains(req.Email, "@") {
		msgs = append(msgs, "Email doit être une adresse email valide")
	}
	if len(req.Password) < 6 {
		msgs = append(msgs, "Mot de passe doit contenir au moins 6 caractères")
	}
	if strings.TrimSpace(req.Name) == "" {
		msgs = append(msgs, "Nom est un champ obligatoire")
	}
	if strings.TrimSpace(req.TenantName) == "" {
		msgs = append(msgs, "Entreprise est un champ obligatoire")
	}
	return msgs
}
