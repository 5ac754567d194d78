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

const parcResource = "parc"

// ParcResponse is the parc API shape
type ParcResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ParcCreateRequest creates a parc
type ParcCreateRequest struct {
	Name string `json:"name"`
}

// ParcHandler serves the parc endpoints
type ParcHandler struct {
	parcs  domain.ParcRepository
	guard  *rbac.Guard
	audit  *audit.Logger
	logger *slog.Logger
}

// NewParcHandler creates a new parc handler
func NewParcHandler(parcs domain.ParcRepository, guard *rbac.Guard, auditLogger *audit.Logger, logger *slog.Logger) *ParcHandler {
	return &ParcHandler{parcs: parcs, guard: guard, audit: auditLogger, logger: logger}
}

// List handles GET /api/parc requests
func (h *ParcHandler) List(w http.ResponseWriter, r *http.Request) {
	if denial := h.guard.ProtectRead(r, parcResource); denial != nil {
		denial.Write(w)
		return
	}
	session := auth.FromContext(r.Context())

	parcs, err := h.parcs.ListByTenant(r.Context(), session.Tenant.ID)
	if err != nil {
		writeError(w, h.logger, err, ErrorMessages{Internal: "Erreur lors de la récupération des parcs"})
		return
	}

	out := make([]ParcResponse, 0, len(parcs))
	for _, p := range parcs {
		out = append(out, ParcResponse{ID: p.ID, Name: p.Name, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

// Create handles POST /api/parc requests
func (h *ParcHandler) Create(w http.ResponseWriter, r *http.Request) {
	if denial := h.guard.ProtectCreate(r, parcResource); denial != nil {
		denial.Write(w)
		return
	}
	session := auth.FromContext(r.Context())

	var req ParcCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requête invalide")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeMessage(w, http.StatusBadRequest, "Le nom du parc est requis")
		return
	}

	p := &domain.Parc{
		TenantID: session.Tenant.ID,
		Name:     strings.TrimSpace(req.Name),
	}
	if err := h.parcs.Create(r.Context(), p); err != nil {
		writeError(w, h.logger, err, ErrorMessages{
			Duplicate: "Un parc avec ce nom existe déjà",
			Internal:  "Erreur lors de la création du parc",
		})
		return
	}

	h.audit.LogMutation(r.Context(), session.Tenant.ID, session.UserID, "create", parcResource, p.ID, "ok")
	writeJSON(w, http.StatusCreated, ParcResponse{ID: p.ID, Name: p.Name, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt})
}
