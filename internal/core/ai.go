package core

import "context"

// EmbeddingProvider vectorizes text via the external embedding service.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// LLMProvider streams a chat completion. deltas receives incremental content
// fragments as they arrive from upstream; the call returns once the stream is
// exhausted or fails. A non-nil callback error aborts the stream.
type LLMProvider interface {
	StreamChat(ctx context.Context, systemPrompt, userPrompt string, deltas func(delta string) error) error
}

// ExtractRequest is one structured-extraction call to the vision model.
// Images carry base64 PNG pages when a real renderer is wired; Format is a
// JSON-schema grammar the model output must conform to.
type ExtractRequest struct {
	Model       string
	Prompt      string
	Images      []string
	Format      map[string]any
	Temperature float64
}

// ExtractionModel runs a single non-streaming structured generation and
// returns the raw model output (expected to be a JSON document).
type ExtractionModel interface {
	Extract(ctx context.Context, req ExtractRequest) (string, error)
}

// Page is one rendered document page handed to the extraction pipeline.
type Page struct {
	Number    int
	Text      string
	PNGBase64 string
}

// PageSource renders a bounded number of pages for a document. The PDF→image
// renderer is an external collaborator; the default implementation paginates
// the stored raw text.
type PageSource interface {
	RenderPages(ctx context.Context, filename string, maxPages int, scale float64) ([]Page, error)
}
