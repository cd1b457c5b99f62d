package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/precisesoft/DocQueryAI/internal/core"
)

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses and emits the standard
// `{"error": ...}` payload. Anything outside the taxonomy is a 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, core.ErrEmbeddingUnavailable), errors.Is(err, core.ErrUpstreamUnavailable):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
