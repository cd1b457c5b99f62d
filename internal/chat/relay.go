package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/precisesoft/DocQueryAI/internal/core"
	"github.com/precisesoft/DocQueryAI/internal/models"
	"github.com/precisesoft/DocQueryAI/internal/retrieval"
)

// relayBufferSize bounds the channel between the upstream token producer
// and the response writer, so a slow client applies backpressure instead of
// buffering unbounded output.
const relayBufferSize = 16

// fallbackContextLen caps the document-prefix context used when retrieval
// cannot rank chunks for the query.
const fallbackContextLen = 2000

// EventType discriminates relay frames.
type EventType int

const (
	// EventData carries one incremental text fragment.
	EventData EventType = iota
	// EventEnd marks normal stream completion.
	EventEnd
	// EventError replaces EventEnd when the upstream call fails mid-stream.
	EventError
)

// Event is one frame relayed to the caller. Exactly one terminal frame
// (EventEnd or EventError) ends every stream.
type Event struct {
	Type  EventType
	Delta string
	Err   string
}

// Request is a chat turn from the client.
type Request struct {
	Message      string   `json:"message"`
	UseDocuments bool     `json:"use_documents"`
	Documents    []string `json:"documents"`
}

// Service assembles retrieval-augmented context and relays a streaming
// completion to the caller.
type Service struct {
	docs   core.DocumentStore
	engine *retrieval.Engine
	llm    core.LLMProvider
	topK   int
	logger *slog.Logger
}

func NewService(docs core.DocumentStore, engine *retrieval.Engine, llm core.LLMProvider, topK int, logger *slog.Logger) *Service {
	if topK <= 0 {
		topK = retrieval.DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, engine: engine, llm: llm, topK: topK, logger: logger}
}

// Stream validates the request, builds context and returns a bounded event
// channel. The channel delivers zero or more EventData frames followed by
// exactly one EventEnd or EventError, then closes.
func (s *Service) Stream(ctx context.Context, req Request) (<-chan Event, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, core.Validationf("message", "no message provided")
	}

	systemPrompt, err := s.buildSystemPrompt(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(chan Event, relayBufferSize)
	go func() {
		defer close(out)

		streamErr := s.llm.StreamChat(ctx, systemPrompt, req.Message, func(delta string) error {
			select {
			case out <- Event{Type: EventData, Delta: delta}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})

		terminal := Event{Type: EventEnd}
		if streamErr != nil {
			s.logger.Error("chat stream failed", "err", streamErr)
			terminal = Event{Type: EventError, Err: streamErr.Error()}
		}
		select {
		case out <- terminal:
		case <-ctx.Done():
		}
	}()
	return out, nil
}

// buildSystemPrompt returns the plain assistant prompt, or one grounded in
// retrieved excerpts when the request selects a document.
func (s *Service) buildSystemPrompt(ctx context.Context, req Request) (string, error) {
	const plain = "You are a helpful assistant."

	if !req.UseDocuments || len(req.Documents) == 0 {
		return plain, nil
	}

	docName := req.Documents[0]
	doc, err := s.docs.Get(docName)
	if err != nil {
		return "", fmt.Errorf("document %q: %w", docName, err)
	}

	res, err := s.engine.Retrieve(ctx, doc, req.Message, s.topK)
	if err != nil {
		// Embedding hiccup at query time: fall back to the document head so
		// the chat still answers with some grounding.
		s.logger.Warn("retrieval failed, using document prefix", "document", docName, "err", err)
		return prefixPrompt(doc), nil
	}
	if len(res.Chunks) == 0 {
		return prefixPrompt(doc), nil
	}

	excerpts := make([]string, len(res.Chunks))
	for i, c := range res.Chunks {
		excerpts[i] = c.Text
	}
	s.logger.Info("chat context assembled", "document", docName, "chunks", len(res.Chunks), "ranked", res.Ranked)

	return fmt.Sprintf(
		"You are a helpful assistant. Use the following document excerpts as context to answer questions.\n\nDocument: %s\n\n%s",
		docName, strings.Join(excerpts, "\n\n---\n\n")), nil
}

func prefixPrompt(doc *models.Document) string {
	text := doc.RawText
	if len(text) > fallbackContextLen {
		text = text[:fallbackContextLen]
	}
	return fmt.Sprintf(
		"You are a helpful assistant. Use the following document as context to answer questions:\n\n%s", text)
}
