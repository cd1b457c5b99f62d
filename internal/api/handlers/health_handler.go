package handlers

import (
	"net/http"

	"github.com/precisesoft/DocQueryAI/internal/retrieval"
)

type HealthHandler struct {
	engine *retrieval.Engine
}

func NewHealthHandler(engine *retrieval.Engine) *HealthHandler {
	return &HealthHandler{engine: engine}
}

// Health reports liveness plus the embedding availability flag set by the
// startup probe.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":               "ok",
		"embeddings_available": h.engine.Available(),
	})
}

// EmbeddingTest re-runs the embedding probe on demand, refreshing the
// availability flag and reporting the outcome.
func (h *HealthHandler) EmbeddingTest(w http.ResponseWriter, r *http.Request) {
	ok := h.engine.Probe(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"embeddings_available": ok})
}
