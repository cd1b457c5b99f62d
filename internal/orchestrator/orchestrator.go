package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/precisesoft/DocQueryAI/internal/core"
	"github.com/precisesoft/DocQueryAI/internal/models"
)

// DefaultWorkers keeps the pool small: each job spends most of its life in
// an external model call, so extra workers only add queueing pressure on
// the model server.
const DefaultWorkers = 2

// DefaultRunSyncTimeout bounds how long a run-and-wait caller blocks.
const DefaultRunSyncTimeout = 10 * time.Minute

// Config tunes the job manager.
type Config struct {
	Workers         int
	DefaultModel    string
	DefaultMaxPages int
	DefaultScale    float64
	AgentVersion    string
	RunSyncTimeout  time.Duration
	Contract        Contract
}

func DefaultConfig() Config {
	return Config{
		Workers:         DefaultWorkers,
		DefaultModel:    "gemma3:12b",
		DefaultMaxPages: 2,
		DefaultScale:    1.6,
		AgentVersion:    "v1",
		RunSyncTimeout:  DefaultRunSyncTimeout,
		Contract:        DefaultContract(),
	}
}

// cancelToken is the cooperative cancellation signal threaded through the
// pipeline and observed at checkpoints.
type cancelToken struct {
	once sync.Once
	ch   chan struct{}
}

func newCancelToken() *cancelToken {
	return &cancelToken{ch: make(chan struct{})}
}

func (t *cancelToken) Cancel() {
	t.once.Do(func() { close(t.ch) })
}

func (t *cancelToken) Cancelled() bool {
	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}

// Manager owns job records and runs extraction pipelines on a fixed-size
// worker pool. Each job is submitted to the pool exactly once; job state
// changes flow through the job store's validated transitions.
type Manager struct {
	jobs   core.JobStore
	docs   core.DocumentStore
	cfg    Config
	pool   *ants.Pool
	pipe   *pipeline
	logger *slog.Logger

	mu     sync.Mutex
	tokens map[string]*cancelToken
	done   map[string]chan struct{}
}

func NewManager(jobs core.JobStore, docs core.DocumentStore, pages core.PageSource, model core.ExtractionModel, cfg Config, logger *slog.Logger) (*Manager, error) {
	if cfg.Workers < 1 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.RunSyncTimeout <= 0 {
		cfg.RunSyncTimeout = DefaultRunSyncTimeout
	}
	if cfg.Contract.SchemaID == "" {
		cfg.Contract = DefaultContract()
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return &Manager{
		jobs:   jobs,
		docs:   docs,
		cfg:    cfg,
		pool:   pool,
		pipe:   &pipeline{jobs: jobs, pages: pages, model: model, contract: cfg.Contract},
		logger: logger,
		tokens: make(map[string]*cancelToken),
		done:   make(map[string]chan struct{}),
	}, nil
}

// Release shuts down the worker pool. Running jobs finish their current
// submission; the manager should not be used afterwards.
func (m *Manager) Release() {
	m.pool.Release()
}

// SubmitRequest is one extraction request. Zero-valued params fall back to
// the manager defaults.
type SubmitRequest struct {
	Filename     string  `json:"filename"`
	MaxPages     int     `json:"max_pages"`
	Scale        float64 `json:"scale"`
	Model        string  `json:"model"`
	AgentVersion string  `json:"agent_version"`
}

// Enqueue creates a job in QUEUED state and schedules it onto the pool.
// It returns as soon as the job record exists; execution happens on a
// background worker, never on the caller's goroutine.
func (m *Manager) Enqueue(ctx context.Context, req SubmitRequest) (*models.Job, error) {
	if req.Filename == "" {
		return nil, core.Validationf("filename", "filename is required")
	}
	if req.MaxPages < 0 {
		return nil, core.Validationf("max_pages", "must not be negative")
	}
	if req.Scale < 0 {
		return nil, core.Validationf("scale", "must not be negative")
	}
	if _, err := m.docs.Get(req.Filename); err != nil {
		return nil, fmt.Errorf("document %q: %w", req.Filename, err)
	}

	params := models.JobParams{
		MaxPages:     req.MaxPages,
		Scale:        req.Scale,
		ModelName:    req.Model,
		AgentVersion: req.AgentVersion,
	}
	if params.MaxPages == 0 {
		params.MaxPages = m.cfg.DefaultMaxPages
	}
	if params.Scale == 0 {
		params.Scale = m.cfg.DefaultScale
	}
	if params.ModelName == "" {
		params.ModelName = m.cfg.DefaultModel
	}
	if params.AgentVersion == "" {
		params.AgentVersion = m.cfg.AgentVersion
	}

	now := time.Now()
	job := &models.Job{
		JobID:     uuid.NewString(),
		Filename:  req.Filename,
		Params:    params,
		Status:    models.StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.jobs.Create(job); err != nil {
		return nil, err
	}
	_ = m.jobs.AppendEvent(job.JobID, "job queued")

	m.mu.Lock()
	m.tokens[job.JobID] = newCancelToken()
	m.done[job.JobID] = make(chan struct{})
	m.mu.Unlock()

	jobID := job.JobID
	if err := m.pool.Submit(func() { m.run(jobID) }); err != nil {
		// Pool rejected the task; the job can never run.
		_, _ = m.jobs.Transition(jobID, models.StatusCancelled)
		_ = m.jobs.AppendEvent(jobID, "worker pool rejected job: "+err.Error())
		m.finish(jobID)
		return nil, fmt.Errorf("schedule job: %w", err)
	}

	m.logger.Info("job enqueued", "job_id", job.JobID, "filename", job.Filename)
	return m.jobs.Get(job.JobID)
}

// RunSync enqueues the job and blocks until it reaches a terminal state or
// the timeout elapses. On timeout the job keeps running in the background
// and the current (non-terminal) record is returned.
func (m *Manager) RunSync(ctx context.Context, req SubmitRequest, timeout time.Duration) (*models.Job, error) {
	if timeout <= 0 {
		timeout = m.cfg.RunSyncTimeout
	}

	job, err := m.Enqueue(ctx, req)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	done := m.done[job.JobID]
	m.mu.Unlock()
	if done == nil {
		// Already finished before we could start waiting.
		return m.jobs.Get(job.JobID)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		m.logger.Warn("run-and-wait timed out; job continues in background", "job_id", job.JobID)
	case <-ctx.Done():
	}
	return m.jobs.Get(job.JobID)
}

// Cancel requests cancellation. From QUEUED the job moves to CANCELLED
// synchronously and the worker skips it at pickup; from RUNNING the job
// moves to CANCEL_REQUESTED and the pipeline stops at its next checkpoint.
// Any other state is a conflict.
func (m *Manager) Cancel(jobID string) (models.JobStatus, error) {
	job, err := m.jobs.Get(jobID)
	if err != nil {
		return "", err
	}

	switch job.Status {
	case models.StatusQueued:
		status, err := m.jobs.Transition(jobID, models.StatusCancelled)
		if err != nil {
			// Lost the race with a worker picking the job up; fall through
			// to the running path.
			return m.cancelRunning(jobID)
		}
		_ = m.jobs.AppendEvent(jobID, "cancelled before execution started")
		m.signalToken(jobID)
		m.finish(jobID)
		return status, nil
	case models.StatusRunning:
		return m.cancelRunning(jobID)
	default:
		return job.Status, fmt.Errorf("job %s is %s: %w", jobID, job.Status, core.ErrConflict)
	}
}

func (m *Manager) cancelRunning(jobID string) (models.JobStatus, error) {
	status, err := m.jobs.Transition(jobID, models.StatusCancelRequested)
	if err != nil {
		return status, err
	}
	_ = m.jobs.AppendEvent(jobID, "cancellation requested")
	m.signalToken(jobID)
	return status, nil
}

// Delete removes a job record. The job store rejects deletion while the
// job is RUNNING or CANCEL_REQUESTED.
func (m *Manager) Delete(jobID string) error {
	if err := m.jobs.Delete(jobID); err != nil {
		return err
	}
	m.finish(jobID)
	return nil
}

// Get returns a snapshot of the job record.
func (m *Manager) Get(jobID string) (*models.Job, error) {
	return m.jobs.Get(jobID)
}

// List returns a snapshot of all job summaries.
func (m *Manager) List() []core.JobSummary {
	return m.jobs.List()
}

// run executes one job on a pool worker. A panicking stage marks the job
// ERROR; nothing escapes to the pool.
func (m *Manager) run(jobID string) {
	defer m.markDone(jobID)
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("pipeline panic", "job_id", jobID, "panic", r)
			_ = m.jobs.AppendEvent(jobID, fmt.Sprintf("stage panic: %v", r))
			_, _ = m.jobs.Transition(jobID, models.StatusError)
		}
	}()

	if _, err := m.jobs.Transition(jobID, models.StatusRunning); err != nil {
		// Cancelled (or deleted) before pickup; nothing to run.
		m.logger.Info("skipping job not in queued state", "job_id", jobID)
		return
	}
	_ = m.jobs.AppendEvent(jobID, "job started")

	job, err := m.jobs.Get(jobID)
	if err != nil {
		return
	}

	m.mu.Lock()
	token := m.tokens[jobID]
	m.mu.Unlock()
	if token == nil {
		token = newCancelToken()
	}

	result, runErr := m.pipe.run(context.Background(), job, token)

	switch {
	case errors.Is(runErr, errCancelled):
		_ = m.jobs.AppendEvent(jobID, "job cancelled at checkpoint")
		if _, err := m.jobs.Transition(jobID, models.StatusCancelled); err != nil {
			m.logger.Error("cancel transition failed", "job_id", jobID, "err", err)
		}
	case runErr != nil:
		_ = m.jobs.AppendEvent(jobID, "stage failed: "+runErr.Error())
		if result != nil {
			// Keep whatever the pipeline produced for diagnostics.
			_ = m.jobs.SetResult(jobID, result)
		}
		_, _ = m.jobs.Transition(jobID, models.StatusError)
		m.logger.Warn("job failed", "job_id", jobID, "err", runErr)
	default:
		_ = m.jobs.SetResult(jobID, result)
		if _, err := m.jobs.Transition(jobID, models.StatusDone); err != nil {
			// Cancellation landed after the pipeline's last checkpoint; the
			// work finished but the requested cancel still wins. The result
			// stays attached for diagnostics.
			_ = m.jobs.AppendEvent(jobID, "job cancelled at completion")
			if _, cerr := m.jobs.Transition(jobID, models.StatusCancelled); cerr != nil {
				m.logger.Error("terminal transition failed", "job_id", jobID, "err", cerr)
			}
			return
		}
		_ = m.jobs.AppendEvent(jobID, "job done")
		m.logger.Info("job done", "job_id", jobID,
			"schema_ok", result.Meta.SchemaOK, "confidence", result.Meta.OverallConfidence)
	}
}

// signalToken fires the job's cancellation token if one is registered.
func (m *Manager) signalToken(jobID string) {
	m.mu.Lock()
	token := m.tokens[jobID]
	m.mu.Unlock()
	if token != nil {
		token.Cancel()
	}
}

// markDone closes the job's done channel so run-and-wait callers unblock,
// and drops the cancellation token.
func (m *Manager) markDone(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.done[jobID]; ok {
		close(ch)
		delete(m.done, jobID)
	}
	delete(m.tokens, jobID)
}

// finish cleans up tracking state for a job that will never run (cancelled
// before pickup) or no longer exists.
func (m *Manager) finish(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, jobID)
	if ch, ok := m.done[jobID]; ok {
		select {
		case <-ch:
		default:
			close(ch)
		}
		delete(m.done, jobID)
	}
}
