package models

import (
	"time"
)

// Document represents an uploaded document held by the document store.
// Chunks are built once during ingestion and never mutated afterwards;
// re-uploading the same filename replaces the whole entry.
type Document struct {
	Filename   string    `json:"filename"`
	RawText    string    `json:"-"`
	Chunks     []Chunk   `json:"chunks,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// HasEmbeddings reports whether at least one chunk carries an embedding.
func (d *Document) HasEmbeddings() bool {
	for i := range d.Chunks {
		if len(d.Chunks[i].Embedding) > 0 {
			return true
		}
	}
	return false
}

// Chunk represents one text chunk from a document.
// StartOffset/EndOffset index into the owning document's raw text so callers
// can cite the source span. Embedding is nil when the embedding service was
// unavailable at ingest time; absence is permanent for that chunk.
type Chunk struct {
	ID          int       `json:"chunk_id"`
	Text        string    `json:"text"`
	StartOffset int       `json:"start_offset"`
	EndOffset   int       `json:"end_offset"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

// JobStatus is the lifecycle state of an extraction job.
type JobStatus string

const (
	StatusQueued          JobStatus = "QUEUED"
	StatusRunning         JobStatus = "RUNNING"
	StatusDone            JobStatus = "DONE"
	StatusError           JobStatus = "ERROR"
	StatusCancelRequested JobStatus = "CANCEL_REQUESTED"
	StatusCancelled       JobStatus = "CANCELLED"
)

// Terminal reports whether the status is an end state.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusDone, StatusError, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal step on the
// job state graph. Everything not listed here is rejected, not ignored.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case StatusQueued:
		return next == StatusRunning || next == StatusCancelled
	case StatusRunning:
		return next == StatusDone || next == StatusError || next == StatusCancelRequested
	case StatusCancelRequested:
		return next == StatusCancelled || next == StatusError
	}
	return false
}

// JobParams are the caller-supplied knobs for one extraction run.
type JobParams struct {
	MaxPages     int     `json:"max_pages"`
	Scale        float64 `json:"scale"`
	ModelName    string  `json:"model"`
	AgentVersion string  `json:"agent_version"`
}

// JobEvent is one timestamped line in a job's event log.
type JobEvent struct {
	TS      time.Time `json:"ts"`
	Message string    `json:"message"`
}

// ResultMeta summarizes validation and confidence for an extraction result.
type ResultMeta struct {
	SchemaOK             bool     `json:"schema_ok"`
	OverallConfidence    float64  `json:"overall_confidence"`
	MissingEvidencePaths []string `json:"missing_evidence_paths"`
	Warnings             []string `json:"warnings"`
	ElapsedSec           float64  `json:"elapsed_sec"`
}

// JobResult holds the structured output of a completed (or partially
// completed) extraction. Data is the model's extracted object as-is.
type JobResult struct {
	Data map[string]any `json:"data"`
	Meta ResultMeta     `json:"meta"`
}

// Job is a tracked unit of asynchronous extraction work. Mutated only through
// the job store so concurrent readers never observe a torn record.
type Job struct {
	JobID      string     `json:"job_id"`
	Filename   string     `json:"filename"`
	Params     JobParams  `json:"params"`
	Status     JobStatus  `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ElapsedSec float64    `json:"elapsed_sec"`
	Events     []JobEvent `json:"events"`
	Result     *JobResult `json:"result,omitempty"`
}
