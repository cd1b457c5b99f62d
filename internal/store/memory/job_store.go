package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/precisesoft/DocQueryAI/internal/core"
	"github.com/precisesoft/DocQueryAI/internal/models"
)

// JobStore is the in-memory job repository and the single mutation point for
// job state. Every operation takes the store lock, so concurrent readers
// always see a consistent record.
type JobStore struct {
	mu      sync.RWMutex
	jobs    map[string]*models.Job
	started map[string]time.Time
}

func NewJobStore() *JobStore {
	return &JobStore{
		jobs:    make(map[string]*models.Job),
		started: make(map[string]time.Time),
	}
}

// Create registers a new job. Duplicate job IDs are rejected.
func (s *JobStore) Create(job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.JobID]; exists {
		return fmt.Errorf("job %s already exists: %w", job.JobID, core.ErrConflict)
	}
	cp := *job
	s.jobs[job.JobID] = &cp
	return nil
}

// Get returns a deep copy of the job record.
func (s *JobStore) Get(jobID string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return copyJob(job), nil
}

// List returns a snapshot of job summaries, newest first. It never blocks on
// a running pipeline beyond the brief read lock.
func (s *JobStore) List() []core.JobSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.JobSummary, 0, len(s.jobs))
	for _, job := range s.jobs {
		sum := core.JobSummary{
			JobID:      job.JobID,
			Filename:   job.Filename,
			Status:     job.Status,
			CreatedAt:  job.CreatedAt.UTC().Format(time.RFC3339),
			ElapsedSec: job.ElapsedSec,
		}
		if job.Result != nil {
			conf := job.Result.Meta.OverallConfidence
			sum.OverallConfidence = &conf
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt == out[j].CreatedAt {
			return out[i].JobID < out[j].JobID
		}
		return out[i].CreatedAt > out[j].CreatedAt
	})
	return out
}

// Transition moves the job along the status graph. Illegal moves are
// rejected with ErrConflict; nothing is silently ignored. Entering a
// terminal state finalizes ElapsedSec exactly once.
func (s *JobStore) Transition(jobID string, next models.JobStatus) (models.JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return "", core.ErrNotFound
	}
	if !job.Status.CanTransition(next) {
		return job.Status, fmt.Errorf("cannot move job %s from %s to %s: %w",
			jobID, job.Status, next, core.ErrConflict)
	}

	now := time.Now()
	if next == models.StatusRunning {
		s.started[jobID] = now
	}
	if next.Terminal() {
		started, ok := s.started[jobID]
		if !ok {
			// Never picked up by a worker (QUEUED -> CANCELLED).
			started = job.CreatedAt
		}
		job.ElapsedSec = now.Sub(started).Seconds()
		if job.Result != nil {
			job.Result.Meta.ElapsedSec = job.ElapsedSec
		}
	}
	job.Status = next
	job.UpdatedAt = now
	return next, nil
}

// AppendEvent adds a timestamped message to the job's event log.
func (s *JobStore) AppendEvent(jobID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return core.ErrNotFound
	}
	job.Events = append(job.Events, models.JobEvent{TS: time.Now(), Message: message})
	job.UpdatedAt = time.Now()
	return nil
}

// SetResult attaches the result payload. Partial results written before a
// stage failure are kept for diagnostics.
func (s *JobStore) SetResult(jobID string, result *models.JobResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return core.ErrNotFound
	}
	job.Result = result
	job.UpdatedAt = time.Now()
	return nil
}

// Delete removes the job record. Valid from any terminal state or QUEUED;
// a running or cancel-requested job must be cancelled first.
func (s *JobStore) Delete(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return core.ErrNotFound
	}
	if job.Status == models.StatusRunning || job.Status == models.StatusCancelRequested {
		return fmt.Errorf("job %s is %s: %w", jobID, job.Status, core.ErrConflict)
	}
	delete(s.jobs, jobID)
	delete(s.started, jobID)
	return nil
}

// Clear drops every job record.
func (s *JobStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = make(map[string]*models.Job)
	s.started = make(map[string]time.Time)
}

func copyJob(job *models.Job) *models.Job {
	cp := *job
	cp.Events = append([]models.JobEvent(nil), job.Events...)
	if job.Result != nil {
		res := *job.Result
		res.Meta.MissingEvidencePaths = append([]string(nil), job.Result.Meta.MissingEvidencePaths...)
		res.Meta.Warnings = append([]string(nil), job.Result.Meta.Warnings...)
		cp.Result = &res
	}
	return &cp
}

var _ core.JobStore = (*JobStore)(nil)
