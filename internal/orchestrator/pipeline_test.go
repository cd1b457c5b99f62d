package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/precisesoft/DocQueryAI/internal/core"
	"github.com/precisesoft/DocQueryAI/internal/models"
	"github.com/precisesoft/DocQueryAI/internal/store/memory"
)

func newPipelineJob(t *testing.T, jobs core.JobStore) *models.Job {
	t.Helper()
	job := &models.Job{
		JobID:    "job-1",
		Filename: "invoice.pdf",
		Params: models.JobParams{
			MaxPages:     2,
			Scale:        1.6,
			ModelName:    "gemma3:12b",
			AgentVersion: "v1",
		},
		Status:    models.StatusQueued,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, jobs.Create(job))
	return job
}

func TestPipelineProducesResult(t *testing.T) {
	jobs := memory.NewJobStore()
	job := newPipelineJob(t, jobs)
	model := &fakeModel{output: validOutput(job.JobID)}
	p := &pipeline{
		jobs: jobs,
		pages: &fakePages{pages: []core.Page{
			{Number: 1, Text: "Invoice #42", PNGBase64: "aW1n"},
			{Number: 2, Text: "Total: 142.50"},
		}},
		model:    model,
		contract: DefaultContract(),
	}

	result, err := p.run(context.Background(), job, newCancelToken())
	require.NoError(t, err)

	assert.True(t, result.Meta.SchemaOK)
	assert.Equal(t, "142.50", result.Data["fields"].(map[string]any)["total"])

	model.mu.Lock()
	defer model.mu.Unlock()
	assert.Equal(t, []string{"aW1n"}, model.lastReq.Images)
	assert.Contains(t, model.lastReq.Prompt, "--- page 1 ---")
	assert.Contains(t, model.lastReq.Prompt, "--- page 2 ---")
	assert.Contains(t, model.lastReq.Prompt, "page_count=2")

	stored, err := jobs.Get(job.JobID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.Events, "stages report progress to the event log")
}

func TestPipelineStopsAtFirstCheckpointWhenCancelled(t *testing.T) {
	jobs := memory.NewJobStore()
	job := newPipelineJob(t, jobs)
	model := &fakeModel{output: validOutput(job.JobID)}
	p := &pipeline{
		jobs:     jobs,
		pages:    &fakePages{pages: []core.Page{{Number: 1, Text: "x"}}},
		model:    model,
		contract: DefaultContract(),
	}

	token := newCancelToken()
	token.Cancel()

	_, err := p.run(context.Background(), job, token)
	assert.ErrorIs(t, err, errCancelled)

	model.mu.Lock()
	defer model.mu.Unlock()
	assert.Zero(t, model.calls, "cancelled before any stage ran")
}

func TestPipelineTruncatesLongPageText(t *testing.T) {
	jobs := memory.NewJobStore()
	job := newPipelineJob(t, jobs)
	model := &fakeModel{output: validOutput(job.JobID)}
	p := &pipeline{
		jobs:     jobs,
		pages:    &fakePages{pages: []core.Page{{Number: 1, Text: strings.Repeat("a", pageExcerptLen*3)}}},
		model:    model,
		contract: DefaultContract(),
	}

	_, err := p.run(context.Background(), job, newCancelToken())
	require.NoError(t, err)

	model.mu.Lock()
	defer model.mu.Unlock()
	assert.Less(t, len(model.lastReq.Prompt), pageExcerptLen*2,
		"page text in the prompt is capped per page")
}

func TestPipelineWrapsPageSourceFailure(t *testing.T) {
	jobs := memory.NewJobStore()
	job := newPipelineJob(t, jobs)
	p := &pipeline{
		jobs:     jobs,
		pages:    &fakePages{err: core.ErrNotFound},
		model:    &fakeModel{},
		contract: DefaultContract(),
	}

	_, err := p.run(context.Background(), job, newCancelToken())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestTextPageSourceSplitsOnFormFeed(t *testing.T) {
	docs := memory.NewDocumentStore()
	docs.Put(&models.Document{
		Filename:   "invoice.pdf",
		RawText:    "page one\fpage two\fpage three",
		UploadedAt: time.Now(),
	})
	src := NewTextPageSource(docs)

	pages, err := src.RenderPages(context.Background(), "invoice.pdf", 2, 1.6)
	require.NoError(t, err)

	require.Len(t, pages, 2, "page count is clamped to the requested maximum")
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, "page one", pages[0].Text)
	assert.Equal(t, "page two", pages[1].Text)
}

func TestTextPageSourceSlicesPlainText(t *testing.T) {
	docs := memory.NewDocumentStore()
	docs.Put(&models.Document{
		Filename:   "big.txt",
		RawText:    strings.Repeat("b", textPageSize+100),
		UploadedAt: time.Now(),
	})
	src := NewTextPageSource(docs)

	pages, err := src.RenderPages(context.Background(), "big.txt", 0, 1)
	require.NoError(t, err)

	require.Len(t, pages, 2)
	assert.Len(t, pages[0].Text, textPageSize)
	assert.Len(t, pages[1].Text, 100)
}

func TestTextPageSourceUnknownDocument(t *testing.T) {
	src := NewTextPageSource(memory.NewDocumentStore())
	_, err := src.RenderPages(context.Background(), "missing.pdf", 2, 1)
	assert.ErrorIs(t, err, core.ErrNotFound)
}
