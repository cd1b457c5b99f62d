package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/precisesoft/DocQueryAI/internal/core"
	"github.com/precisesoft/DocQueryAI/internal/models"
	"github.com/precisesoft/DocQueryAI/internal/retrieval"
	"github.com/precisesoft/DocQueryAI/internal/store/memory"
)

type testEmbedder struct{}

func (testEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

// testLLM implements core.LLMProvider, replaying canned deltas.
type testLLM struct {
	deltas     []string
	failAfter  int // fail once this many deltas were sent; -1 never fails
	lastSystem string
}

func (m *testLLM) StreamChat(ctx context.Context, systemPrompt, userPrompt string, deltas func(string) error) error {
	m.lastSystem = systemPrompt
	for i, d := range m.deltas {
		if m.failAfter >= 0 && i == m.failAfter {
			return errors.New("upstream reset")
		}
		if err := deltas(d); err != nil {
			return err
		}
	}
	if m.failAfter >= 0 && m.failAfter >= len(m.deltas) {
		return errors.New("upstream reset")
	}
	return nil
}

func newTestService(llm *testLLM) (*Service, *memory.DocumentStore) {
	docs := memory.NewDocumentStore()
	engine := retrieval.NewEngine(testEmbedder{})
	engine.Probe(context.Background())
	return NewService(docs, engine, llm, 3, nil), docs
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestStream_DeltasThenEnd(t *testing.T) {
	llm := &testLLM{deltas: []string{"Hello", ", ", "world"}, failAfter: -1}
	svc, _ := newTestService(llm)

	events, err := svc.Stream(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 4)
	assert.Equal(t, EventData, got[0].Type)
	assert.Equal(t, "Hello", got[0].Delta)
	assert.Equal(t, EventEnd, got[3].Type, "stream must end with an explicit end frame")
}

func TestStream_UpstreamFailureEmitsErrorFrame(t *testing.T) {
	llm := &testLLM{deltas: []string{"partial"}, failAfter: 1}
	svc, _ := newTestService(llm)

	events, err := svc.Stream(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)

	got := collect(t, events)
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, EventError, last.Type, "failure must be an explicit error frame, not a silent close")
	assert.Contains(t, last.Err, "upstream reset")
	for _, ev := range got[:len(got)-1] {
		assert.Equal(t, EventData, ev.Type)
	}
}

func TestStream_EmptyMessageRejected(t *testing.T) {
	svc, _ := newTestService(&testLLM{failAfter: -1})

	_, err := svc.Stream(context.Background(), Request{Message: "   "})
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestStream_UnknownDocument(t *testing.T) {
	svc, _ := newTestService(&testLLM{failAfter: -1})

	_, err := svc.Stream(context.Background(), Request{
		Message:      "what does it say",
		UseDocuments: true,
		Documents:    []string{"nope.pdf"},
	})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStream_GroundsPromptInRetrievedChunks(t *testing.T) {
	llm := &testLLM{deltas: []string{"answer"}, failAfter: -1}
	svc, docs := newTestService(llm)

	docs.Put(&models.Document{
		Filename: "guide.txt",
		RawText:  "alpha beta gamma",
		Chunks: []models.Chunk{
			{ID: 0, Text: "alpha section", Embedding: []float32{1, 0}},
			{ID: 1, Text: "beta section", Embedding: []float32{0, 1}},
		},
	})

	events, err := svc.Stream(context.Background(), Request{
		Message:      "tell me about alpha",
		UseDocuments: true,
		Documents:    []string{"guide.txt"},
	})
	require.NoError(t, err)
	collect(t, events)

	assert.Contains(t, llm.lastSystem, "Document: guide.txt")
	assert.Contains(t, llm.lastSystem, "alpha section")
}

func TestStream_UnembeddedDocumentFallsBackToDocumentOrder(t *testing.T) {
	llm := &testLLM{deltas: []string{"answer"}, failAfter: -1}
	svc, docs := newTestService(llm)

	docs.Put(&models.Document{
		Filename: "plain.txt",
		RawText:  strings.Repeat("lorem ipsum ", 300),
		Chunks: []models.Chunk{
			{ID: 0, Text: "first chunk"},
			{ID: 1, Text: "second chunk"},
		},
	})

	events, err := svc.Stream(context.Background(), Request{
		Message:      "anything",
		UseDocuments: true,
		Documents:    []string{"plain.txt"},
	})
	require.NoError(t, err)
	collect(t, events)

	// Unranked chunks still ground the prompt, in document order.
	assert.Contains(t, llm.lastSystem, "first chunk")
	assert.Contains(t, llm.lastSystem, "second chunk")
}
