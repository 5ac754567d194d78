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

const lubrifiantResource = "lubrifiant"

// LubrifiantResponse is the lubricant API shape, associations and reference
// counts included.
type LubrifiantResponse struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	TypeLubrifiantID string                 `json:"typelubrifiantId"`
	TypeLubrifiant   TypeLubrifiantSummary  `json:"typelubrifiant"`
	Parcs            []ParcSummary          `json:"parcs"`
	Count            LubrifiantCounts       `json:"_count"`
	CreatedAt        time.Time              `json:"createdAt"`
	UpdatedAt        time.Time              `json:"updatedAt"`
}

// TypeLubrifiantSummary is the trimmed type shape embedded in lubricants
type TypeLubrifiantSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ParcSummary is the trimmed parc shape embedded in lubricants
type ParcSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LubrifiantCounts carries the reference counts shown in the UI
type LubrifiantCounts struct {
	SaisieLubrifiant int `json:"saisielubrifiant"`
	LubrifiantParc   int `json:"lubrifiantParc"`
}

// LubrifiantCreateRequest creates a lubricant with its parc associations
type LubrifiantCreateRequest struct {
	Name             string   `json:"name"`
	TypeLubrifiantID string   `json:"typelubrifiantId"`
	ParcIDs          []string `json:"parcIds"`
}

// LubrifiantUpdateRequest carries the optional lubricant changes. A nil
// ParcIDs keeps the current associations; an empty slice clears them.
type LubrifiantUpdateRequest struct {
	Name             *string  `json:"name"`
	TypeLubrifiantID *string  `json:"typelubrifiantId"`
	ParcIDs          []string `json:"parcIds"`
}

// LubrifiantHandler serves the lubricant CRUD endpoints
type LubrifiantHandler struct {
	lubrifiants domain.LubrifiantRepository
	types       domain.TypeLubrifiantRepository
	parcs       domain.ParcRepository
	guard       *rbac.Guard
	audit       *audit.Logger
	logger      *slog.Logger
}

// NewLubrifiantHandler creates a new lubricant handler
func NewLubrifiantHandler(lubrifiants domain.LubrifiantRepository, types domain.TypeLubrifiantRepository, parcs domain.ParcRepository, guard *rbac.Guard, auditLogger *audit.Logger, logger *slog.Logger) *LubrifiantHandler {
	return &LubrifiantHandler{
		lubrifiants: lubrifiants,
		types:       types,
		parcs:       parcs,
		guard:       guard,
		audit:       auditLogger,
		logger:      logger,
	}
}

// List handles GET /api/lubrifiant requests
func (h *LubrifiantHandler) List(w http.ResponseWriter, r *http.Request) {
	if denial := h.guard.ProtectRead(r, lubrifiantResource); denial != nil {
		denial.Write(w)
		return
	}
	session := auth.FromContext(r.Context())

	lubs, err := h.lubrifiants.ListByTenant(r.Context(), session.Tenant.ID)
	if err != nil {
		writeError(w, h.logger, err, ErrorMessages{Internal: "Erreur lors de la récupération des lubrifiants"})
		return
	}

	out := make([]LubrifiantResponse, 0, len(lubs))
	for _, l := range lubs {
		out = append(out, lubrifiantResponse(l))
	}
	writeJSON(w, http.StatusOK, out)
}

// Get handles GET /api/lubrifiant/{id} requests
func (h *LubrifiantHandler) Get(w http.ResponseWriter, r *http.Request) {
	if denial := h.guard.ProtectRead(r, lubrifiantResource); denial != nil {
		denial.Write(w)
		return
	}
	session := auth.FromContext(r.Context())

	id := r.PathValue("id")
	if id == "" {
		writeMessage(w, http.StatusBadRequest, "ID du lubrifiant requis")
		return
	}

	l, err := h.lubrifiants.GetByID(r.Context(), session.Tenant.ID, id)
	if err != nil {
		writeError(w, h.logger, err, ErrorMessages{
			NotFound: "Lubrifiant non trouvé",
			Internal: "Erreur lors de la récupération du lubrifiant",
		})
		return
	}
	writeJSON(w, http.StatusOK, lubrifiantResponse(l))
}

// Create handles POST /api/lubrifiant requests
func (h *LubrifiantHandler) Create(w http.ResponseWriter, r *http.Request) {
	if denial := h.guard.ProtectCreate(r, lubrifiantResource); denial != nil {
		denial.Write(w)
		return
	}
	session := auth.FromContext(r.Context())

	var req LubrifiantCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		writeMessage(w, http.StatusBadRequest, "Le nom du lubrifiant est requis")
		return
	}
	if req.TypeLubrifiantID == "" {
		writeMessage(w, http.StatusBadRequest, "Le type de lubrifiant est requis")
		return
	}
	if len(req.ParcIDs) == 0 {
		writeMessage(w, http.StatusBadRequest, "Au moins un parc doit être sélectionné")
		return
	}

	if !h.validateRefs(w, r, session.Tenant.ID, req.TypeLubrifiantID, req.ParcIDs) {
		return
	}

	l := &domain.Lubrifiant{
		TenantID:         session.Tenant.ID,
		Name:             strings.TrimSpace(req.Name),
		TypeLubrifiantID: req.TypeLubrifiantID,
	}
	if err := h.lubrifiants.Create(r.Context(), l, req.ParcIDs); err != nil {
		writeError(w, h.logger, err, ErrorMessages{
			Duplicate: "Un lubrifiant avec ce nom existe déjà",
			Internal:  "Erreur lors de la création du lubrifiant",
		})
		return
	}

	h.audit.LogMutation(r.Context(), session.Tenant.ID, session.UserID, "create", lubrifiantResource, l.ID, "ok")

	created, err := h.lubrifiants.GetByID(r.Context(), session.Tenant.ID, l.ID)
	if err != nil {
		writeError(w, h.logger, err, ErrorMessages{Internal: "Erreur lors de la création du lubrifiant"})
		return
	}
	writeJSON(w, http.StatusCreated, lubrifiantResponse(created))
}

// Update handles PUT /api/lubrifiant/{id} requests
func (h *LubrifiantHandler) Update(w http.ResponseWriter, r *http.Request) {
	if denial := h.guard.ProtectUpdate(r, lubrifiantResource); denial != nil {
		denial.Write(w)
		return
	}
	session := auth.FromContext(r.Context())

	id := r.PathValue("id")
	if id == "" {
		writeMessage(w, http.StatusBadRequest, "ID du lubrifiant requis")
		return
	}

	var req LubrifiantUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	if req.Name == nil && req.TypeLubrifiantID == nil && req.ParcIDs == nil {
		writeMessage(w, http.StatusBadRequest, "Au moins un champ à mettre à jour est requis")
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		writeMessage(w, http.StatusBadRequest, "Le nom du lubrifiant est requis")
		return
	}

	typeID := ""
	if req.TypeLubrifiantID != nil {
		typeID = *req.TypeLubrifiantID
	}
	if !h.validateRefs(w, r, session.Tenant.ID, typeID, req.ParcIDs) {
		return
	}

	upd := domain.LubrifiantUpdate{
		TypeLubrifiantID: req.TypeLubrifiantID,
		ParcIDs:          req.ParcIDs,
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		upd.Name = &trimmed
	}

	l, err := h.lubrifiants.Update(r.Context(), session.Tenant.ID, id, upd)
	if err != nil {
		writeError(w, h.logger, err, ErrorMessages{
			NotFound:  "Lubrifiant non trouvé",
			Duplicate: "Un lubrifiant avec ce nom existe déjà",
			Internal:  "Erreur lors de la modification du lubrifiant",
		})
		return
	}

	h.audit.LogMutation(r.Context(), session.Tenant.ID, session.UserID, "update", lubrifiantResource, id, "ok")
	writeJSON(w, http.StatusOK, lubrifiantResponse(l))
}

// Delete handles DELETE /api/lubrifiant/{id} requests
func (h *LubrifiantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if denial := h.guard.ProtectDelete(r, lubrifiantResource); denial != nil {
		denial.Write(w)
		return
	}
	session := auth.FromContext(r.Context())

	id := r.PathValue("id")
	if id == "" {
		writeMessage(w, http.StatusBadRequest, "ID du lubrifiant requis")
		return
	}

	if err := h.lubrifiants.Delete(r.Context(), session.Tenant.ID, id); err != nil {
		writeError(w, h.logger, err, ErrorMessages{
			NotFound: "Lubrifiant non trouvé",
			Internal: "Erreur lors de la suppression du lubrifiant",
		})
		return
	}

	h.audit.LogMutation(r.Context(), session.Tenant.ID, session.UserID, "delete", lubrifiantResource, id, "ok")
	writeMessage(w, http.StatusOK, "Lubrifiant supprimé avec succès")
}

// validateRefs rejects dangling foreign references before the write reaches
// the repository. An empty typeID or nil parcIDs means "not submitted".
func (h *LubrifiantHandler) validateRefs(w http.ResponseWriter, r *http.Request, tenantID, typeID string, parcIDs []string) bool {
	if typeID != "" {
		ok, err := h.types.Exists(r.Context(), tenantID, typeID)
		if err != nil {
			writeError(w, h.logger, err, ErrorMessages{Internal: "Erreur lors de la création du lubrifiant"})
			return false
		}
		if !ok {
			writeMessage(w, http.StatusBadRequest, "Le type de lubrifiant spécifié n'existe pas")
			return false
		}
	}
	if len(parcIDs) > 0 {
		ok, err := h.parcs.ExistAll(r.Context(), tenantID, parcIDs)
		if err != nil {
			writeError(w, h.logger, err, ErrorMessages{Internal: "Erreur lors de la création du lubrifiant"})
			return false
		}
		if !ok {
			writeMessage(w, http.StatusBadRequest, "Un ou plusieurs parcs spécifiés n'existent pas")
			return false
		}
	}
	return true
}

func lubrifiantResponse(l *domain.Lubrifiant) LubrifiantResponse {
	resp := LubrifiantResponse{
		ID:               l.ID,
		Name:             l.Name,
		TypeLubrifiantID: l.TypeLubrifiantID,
		Parcs:            make([]ParcSummary, 0, len(l.Parcs)),
		Count: LubrifiantCounts{
			SaisieLubrifiant: l.SaisieCount,
			LubrifiantParc:   l.ParcCount,
		},
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
	if l.TypeLubrifiant != nil {
		resp.TypeLubrifiant = TypeLubrifiantSummary{ID: l.TypeLubrifiant.ID, Name: l.TypeLubrifiant.Name}
	}
	for _, p := range l.Parcs {
		resp.Parcs = append(resp.Parcs, ParcSummary{ID: p.ID, Name: p.Name})
	}
	return resp
}
