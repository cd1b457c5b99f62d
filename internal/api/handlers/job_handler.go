package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/precisesoft/DocQueryAI/internal/core"
	"github.com/precisesoft/DocQueryAI/internal/orchestrator"
)

type JobHandler struct {
	manager *orchestrator.Manager
	logger  *slog.Logger
}

func NewJobHandler(manager *orchestrator.Manager, logger *slog.Logger) *JobHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobHandler{manager: manager, logger: logger}
}

// CreateJob enqueues an extraction job and returns its record immediately;
// the job runs on a background worker.
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, core.Validationf("body", "invalid request body"))
		return
	}

	job, err := h.manager.Enqueue(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// RunJob enqueues an extraction job and waits for it to finish, returning
// the terminal record. If the wait times out the job keeps running and the
// current record is returned instead.
func (h *JobHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, core.Validationf("body", "invalid request body"))
		return
	}

	job, err := h.manager.RunSync(r.Context(), req, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// ListJobs returns summaries of every tracked job.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": h.manager.List()})
}

// GetJob returns the full job record including its event log.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.manager.Get(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// GetJobResult returns the job's extraction result. A job that has not
// produced one yet is a conflict, not an error.
func (h *JobHandler) GetJobResult(w http.ResponseWriter, r *http.Request) {
	job, err := h.manager.Get(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if job.Result == nil {
		writeError(w, fmt.Errorf("job %s is %s and has no result: %w", job.JobID, job.Status, core.ErrConflict))
		return
	}
	writeJSON(w, http.StatusOK, job.Result)
}

// CancelJob requests cancellation. Queued jobs cancel immediately; running
// jobs acknowledge the request and stop at the next checkpoint.
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	status, err := h.manager.Cancel(jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": jobID, "status": status})
}

// DeleteJob removes a job record. Running or cancel-pending jobs cannot be
// deleted.
func (h *JobHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Delete(chi.URLParam(r, "jobID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
