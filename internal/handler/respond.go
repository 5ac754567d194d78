package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/yourorg/parcfleet/internal/domain"
)

// ErrorMessages are the product-facing texts a handler substitutes for the
// repository sentinels. Unset fields fall back to generic wording.
type ErrorMessages struct {
	NotFound  string
	Duplicate string
	Internal  string
}

const internalErrorMessage = "Erreur interne du serveur"

// writeJSON sends v with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeMessage sends a {"message": ...} body.
func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeError maps a repository or domain error to an HTTP response.
// ReferencedError and ValidationError carry their own text; the sentinels use
// the handler-supplied messages. Anything unrecognized is a 500 whose detail
// stays in the log, never in the body.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error, msgs ErrorMessages) {
	var refErr *domain.ReferencedError
	if errors.As(err, &refErr) {
		writeMessage(w, http.StatusBadRequest, refErr.Message)
		return
	}

	var valErr *domain.ValidationError
	if errors.As(err, &valErr) {
		if len(valErr.Messages) > 1 {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"message": valErr.Messages})
			return
		}
		writeMessage(w, http.StatusBadRequest, valErr.Error())
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeMessage(w, http.StatusNotFound, orDefault(msgs.NotFound, "Ressource non trouvée"))
	case errors.Is(err, domain.ErrDuplicate):
		writeMessage(w, http.StatusBadRequest, orDefault(msgs.Duplicate, "Cette ressource existe déjà"))
	case errors.Is(err, domain.ErrInvalidInput):
		writeMessage(w, http.StatusBadRequest, orDefault(msgs.Internal, internalErrorMessage))
	default:
		logger.Error("request failed", slog.String("error", err.Error()))
		writeMessage(w, http.StatusInternalServerError, orDefault(msgs.Internal, internalErrorMessage))
	}
}

func orDefault(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
