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
)

const typeLubrifiantResource = "type_lubrifiant"

// TypeLubrifiantResponse is the lubricant type API shape
type TypeLubrifiantResponse struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Count     TypeLubrifiantCounts `json:"_count"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// TypeLubrifiantCounts carries the reference count shown in the UI
type TypeLubrifiantCounts struct {
	Lubrifiant int `json:"lubrifiant"`
}

// TypeLubrifiantRequest creates or renames a lubricant type
type TypeLubrifiantRequest struct {
	Name string `json:"name"`
}

// TypeLubrifiantHandler serves the lubricant type CRUD endpoints
type TypeLubrifiantHandler struct {
	types  domain.TypeLubrifiantRepository
	guard  *rbac.Guard
	audit  *audit.Logger
	logger *slog.Logger
}

// NewTypeLubrifiantHandler creates a new lubricant type handler
func NewTypeLubrifiantHandler(types domain.TypeLubrifiantRepository, guard *rbac.Guard, auditLogger *audit.Logger, logger *slog.Logger) *TypeLubrifiantHandler {
	return &TypeLubrifiantHandler{types: types, guard: guard, audit: auditLogger, logger: logger}
}

// List handles GET /api/type_lubrifiant requests
func (h *TypeLubrifiantHandler) List(w http.ResponseWriter, r *http.Request) {
	if denial := h.guard.ProtectRead(r, typeLubrifiantResource); denial != nil {
		denial.Write(w)
		return
	}
	session := auth.FromContext(r.Context())

	types, err := h.types.ListByTenant(r.Context(), session.Tenant.ID)
	if err != nil {
		writeError(w, h.logger, err, ErrorMessages{Internal: "Erreur lors de la récupération des types de lubrifiant"})
		return
	}

	out := make([]TypeLubrifiantResponse, 0, len(types))
	for _, t := range types {
		out = append(out, typeLubrifiantResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// Get handles GET /api/type_lubrifiant/{id} requests
func (h *TypeLubrifiantHandler) Get(w http.ResponseWriter, r *http.Request) {
	if denial := h.guard.ProtectRead(r, typeLubrifiantResource); denial != nil {
		denial.Write(w)
		return
	}
	session := auth.FromContext(r.Context())

	id := r.PathValue("id")
	if id == "" {
		writeMessage(w, http.StatusBadRequest, "ID du type de lubrifiant requis")
		return
	}

	t, err := h.types.GetByID(r.Context(), session.Tenant.ID, id)
	if err != nil {
		writeError(w, h.logger, err, ErrorMessages{
			NotFound: "Type de lubrifiant non trouvé",
			Internal: "Erreur lors de la récupération du type de lubrifiant",
		})
		return
	}
	writeJSON(w, http.StatusOK, typeLubrifiantResponse(t))
}

// Create handles POST /api/type_lubrifiant requests
func (h *TypeLubrifiantHandler) Create(w http.ResponseWriter, r *http.Request) {
	if denial := h.guard.ProtectCreate(r, typeLubrifiantResource); denial != nil {
		denial.Write(w)
		return
	}
	session := auth.FromContext(r.Context())

	var req TypeLubrifiantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requête invalide")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeMessage(w, http.StatusBadRequest, "Le nom du type de lubrifiant est requis")
		return
	}

	t := &domain.TypeLubrifiant{
		TenantID: session.Tenant.ID,
		Name:     strings.TrimSpace(req.Name),
	}
	if err := h.types.Create(r.Context(), t); err != nil {
		writeError(w, h.logger, err, ErrorMessages{
			Duplicate: "Un type de lubrifiant avec ce nom existe déjà",
			Internal:  "Erreur lors de la création du type de lubrifiant",
		})
		return
	}

	h.audit.LogMutation(r.Context(), session.Tenant.ID, session.UserID, "create", typeLubrifiantResource, t.ID, "ok")
	writeJSON(w, http.StatusCreated, typeLubrifiantResponse(t))
}

// Update handles PUT /api/type_lubrifiant/{id} requests
func (h *TypeLubrifiantHandler) Update(w http.ResponseWriter, r *http.Request) {
	if denial := h.guard.ProtectUpdate(r, typeLubrifiantResource); denial != nil {
		denial.Write(w)
		return
	}
	session := auth.FromContext(r.Context())

	id := r.PathValue("id")
	if id == "" {
		writeMessage(w, http.StatusBadRequest, "ID du type de lubrifiant requis")
		return
	}

	var req TypeLubrifiantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requête invalide")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeMessage(w, http.StatusBadRequest, "Le nom du type de lubrifiant est requis")
		return
	}

	name := strings.TrimSpace(req.Name)
	t, err := h.types.Update(r.Context(), session.Tenant.ID, id, &name)
	if err != nil {
		writeError(w, h.logger, err, ErrorMessages{
			NotFound:  "Type de lubrifiant non trouvé",
			Duplicate: "Un type de lubrifiant avec ce nom existe déjà",
			Internal:  "Erreur lors de la modification du type de lubrifiant",
		})
		return
	}

	h.audit.LogMutation(r.Context(), session.Tenant.ID, session.UserID, "update", typeLubrifiantResource, id, "ok")
	writeJSON(w, http.StatusOK, typeLubrifiantResponse(t))
}

// Delete handles DELETE /api/type_lubrifiant/{id} requests
func (h *TypeLubrifiantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if denial := h.guard.ProtectDelete(r, typeLubrifiantResource); denial != nil {
		denial.Write(w)
		return
	}
	session := auth.FromContext(r.Context())

	id := r.PathValue("id")
	if id == "" {
		writeMessage(w, http.StatusBadRequest, "ID du type de lubrifiant requis")
		return
	}

	if err := h.types.Delete(r.Context(), session.Tenant.ID, id); err != nil {
		writeError(w, h.logger, err, ErrorMessages{
			NotFound: "Type de lubrifiant non trouvé",
			Internal: "Erreur lors de la suppression du type de lubrifiant",
		})
		return
	}

	h.audit.LogMutation(r.Context(), session.Tenant.ID, session.UserID, "delete", typeLubrifiantResource, id, "ok")
	writeMessage(w, http.StatusOK, "Type de lubrifiant supprimé avec succès")
}

func typeLubrifiantResponse(t *domain.TypeLubrifiant) TypeLubrifiantResponse {
	return TypeLubrifiantResponse{
		ID:        t.ID,
		Name:      t.Name,
		Count:     TypeLubrifiantCounts{Lubrifiant: t.LubrifiantCount},
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}
