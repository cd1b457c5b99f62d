package core

import (
	"github.com/precisesoft/DocQueryAI/internal/models"
)

// DocumentStore owns all uploaded documents. Operations are atomic so
// concurrent request handlers never observe a partially-updated record.
type DocumentStore interface {
	// Put stores a document, replacing any previous entry for the filename.
	Put(doc *models.Document)
	// Get returns a snapshot of the document or ErrNotFound.
	Get(filename string) (*models.Document, error)
	// List returns snapshots of all documents in upload order.
	List() []*models.Document
	// Clear drops every document and returns how many were removed.
	Clear() int
}

// JobSummary is the listing row returned by List; it omits events and the
// full result payload.
type JobSummary struct {
	JobID             string           `json:"job_id"`
	Filename          string           `json:"filename"`
	Status            models.JobStatus `json:"status"`
	CreatedAt         string           `json:"created_at"`
	ElapsedSec        float64          `json:"elapsed_sec"`
	OverallConfidence *float64         `json:"overall_confidence,omitempty"`
}

// JobStore owns all job records. It is the single mutation point for job
// state: transitions are validated against the status graph and elapsed time
// is finalized exactly once, on entry to a terminal state.
type JobStore interface {
	// Create registers a new job in QUEUED state.
	Create(job *models.Job) error
	// Get returns a deep copy of the job or ErrNotFound.
	Get(jobID string) (*models.Job, error)
	// List returns a snapshot of summaries; it never blocks on running work.
	List() []JobSummary
	// Transition moves the job to next, rejecting illegal moves with
	// ErrConflict. Returns the resulting status.
	Transition(jobID string, next models.JobStatus) (models.JobStatus, error)
	// AppendEvent adds a timestamped message to the job's event log.
	AppendEvent(jobID, message string) error
	// SetResult attaches (or overwrites) the job's result payload.
	SetResult(jobID string, result *models.JobResult) error
	// Delete removes the job; ErrConflict while RUNNING or CANCEL_REQUESTED.
	Delete(jobID string) error
	// Clear drops every job record.
	Clear()
}
