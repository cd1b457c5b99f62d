package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/precisesoft/DocQueryAI/internal/core"
	"github.com/precisesoft/DocQueryAI/internal/models"
)

// errCancelled aborts a pipeline at the next checkpoint after cancellation
// was requested. It is a control-flow signal, not a stage failure.
var errCancelled = errors.New("job cancelled")

// pageExcerptLen caps how much of each page's text is quoted in the prompt.
const pageExcerptLen = 1500

// pipeline runs the extraction stages for one job: render pages, extract
// per page, assemble the prompt, call the model, validate and score. A
// cancellation checkpoint sits between stages and between page iterations;
// a model call already issued is never forcibly aborted.
type pipeline struct {
	jobs     core.JobStore
	pages    core.PageSource
	model    core.ExtractionModel
	contract Contract
}

func (p *pipeline) run(ctx context.Context, job *models.Job, token *cancelToken) (*models.JobResult, error) {
	checkpoint := func() error {
		if token.Cancelled() {
			return errCancelled
		}
		return nil
	}
	event := func(format string, args ...any) {
		_ = p.jobs.AppendEvent(job.JobID, fmt.Sprintf(format, args...))
	}

	// Stage 1: render pages.
	if err := checkpoint(); err != nil {
		return nil, err
	}
	pages, err := p.pages.RenderPages(ctx, job.Filename, job.Params.MaxPages, job.Params.Scale)
	if err != nil {
		return nil, fmt.Errorf("render pages: %w", err)
	}
	event("rendered %d page(s) at scale %.2f", len(pages), job.Params.Scale)

	// Stage 2: per-page extraction, checkpointed per page so cancellation
	// latency stays bounded by one page of work.
	var images []string
	var excerpts []string
	for _, pg := range pages {
		if err := checkpoint(); err != nil {
			return nil, err
		}
		if pg.PNGBase64 != "" {
			images = append(images, pg.PNGBase64)
		}
		excerpt := pg.Text
		if len(excerpt) > pageExcerptLen {
			excerpt = excerpt[:pageExcerptLen]
		}
		excerpts = append(excerpts, fmt.Sprintf("--- page %d ---\n%s", pg.Number, excerpt))
		event("extracted text from page %d/%d", pg.Number, len(pages))
	}

	// Stage 3: assemble the extraction prompt.
	if err := checkpoint(); err != nil {
		return nil, err
	}
	prompt := p.buildPrompt(job, len(pages), excerpts)
	event("extraction prompt assembled (%d chars, %d image(s))", len(prompt), len(images))

	// Stage 4: model call. The call gets the pipeline context; once issued
	// it runs to completion even if cancellation is requested meanwhile.
	if err := checkpoint(); err != nil {
		return nil, err
	}
	t0 := time.Now()
	raw, err := p.model.Extract(ctx, core.ExtractRequest{
		Model:       job.Params.ModelName,
		Prompt:      prompt,
		Images:      images,
		Format:      wrapperSchema(p.contract),
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction model: %w", err)
	}
	event("model call completed in %.1fs", time.Since(t0).Seconds())

	// Stage 5: parse and validate against the contract.
	if err := checkpoint(); err != nil {
		return nil, err
	}
	w, err := parseWrapper(raw)
	if err != nil {
		return nil, err
	}
	meta := validate(w, p.contract)
	event("validation: schema_ok=%t, %d warning(s)", meta.SchemaOK, len(meta.Warnings))

	// Stage 6: confidence scoring was folded into validation; report it.
	event("overall confidence %.2f (%d claim(s) without evidence)",
		meta.OverallConfidence, len(meta.MissingEvidencePaths))

	return &models.JobResult{Data: w.Data, Meta: meta}, nil
}

// buildPrompt steers the model toward the wrapper contract, echoing the
// document identity so the output can be tied back to the job.
func (p *pipeline) buildPrompt(job *models.Job, pageCount int, excerpts []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a document extraction agent. Fill the contract for this document.\n")
	fmt.Fprintf(&b,
		"Return only the wrapper object with keys schema_id='%s', schema_version='%s', data, and meta.\n",
		p.contract.SchemaID, p.contract.SchemaVersion)
	fmt.Fprintf(&b, "Inside data, set doc.filename and doc.page_count exactly as provided and put every extracted value under fields. Use null when a field is absent.\n")
	fmt.Fprintf(&b,
		"Set meta.agent_version='%s', meta.model='%s', meta.generated_at='%s', meta.job_id='%s'.\n",
		job.Params.AgentVersion, job.Params.ModelName, time.Now().UTC().Format(time.RFC3339), job.JobID)
	fmt.Fprintf(&b, "Set meta.validation with schema_ok and missing_required/warnings as needed, and report per-field confidence and evidence.\n")
	fmt.Fprintf(&b, "Document: filename=%s, page_count=%d.\n", job.Filename, pageCount)
	if len(excerpts) > 0 {
		fmt.Fprintf(&b, "\nPage text:\n%s\n", strings.Join(excerpts, "\n"))
	}
	return b.String()
}
