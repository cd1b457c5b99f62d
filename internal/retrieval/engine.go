package retrieval

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"sync/atomic"

	"github.com/precisesoft/DocQueryAI/internal/core"
	"github.com/precisesoft/DocQueryAI/internal/models"
)

// DefaultTopK is how many chunks Retrieve returns when the caller does not
// ask for a specific count.
const DefaultTopK = 3

// Engine vectorizes text via the external embedding service and ranks
// document chunks by cosine similarity. Availability is decided once by a
// startup probe and cached; it is re-evaluated only through Probe.
type Engine struct {
	embedder  core.EmbeddingProvider
	available atomic.Bool
}

func NewEngine(embedder core.EmbeddingProvider) *Engine {
	return &Engine{embedder: embedder}
}

// Probe checks the embedding service with a short test request and caches
// the outcome. Called once at process start and again on explicit re-probe.
func (e *Engine) Probe(ctx context.Context) bool {
	_, err := e.embedder.EmbedTexts(ctx, []string{"Test"})
	if err != nil {
		log.Printf("retrieval: embedding probe failed: %v", err)
	}
	e.available.Store(err == nil)
	return err == nil
}

// Available reports the cached probe outcome.
func (e *Engine) Available() bool {
	return e.available.Load()
}

// EmbedTexts vectorizes texts. It fails fast with ErrEmbeddingUnavailable
// when the probe marked the service down, without hitting the network.
func (e *Engine) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if !e.available.Load() {
		return nil, core.ErrEmbeddingUnavailable
	}
	vecs, err := e.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d texts: %w: %v", len(texts), core.ErrUpstreamUnavailable, err)
	}
	return vecs, nil
}

// Result is the outcome of one retrieval. Ranked is false when the document
// had no embedded chunks and the engine fell back to document order, so
// callers can surface that caveat.
type Result struct {
	Chunks []models.Chunk
	Ranked bool
}

// Retrieve returns the top-k chunks of doc for query, scored by cosine
// similarity. Ties keep original chunk order. A document with no embedded
// chunks degrades to the first k chunks in document order, unranked.
func (e *Engine) Retrieve(ctx context.Context, doc *models.Document, query string, k int) (*Result, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	if !doc.HasEmbeddings() {
		return &Result{Chunks: firstN(doc.Chunks, k), Ranked: false}, nil
	}

	vecs, err := e.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	queryVec := vecs[0]

	type scored struct {
		chunk models.Chunk
		score float64
	}
	candidates := make([]scored, 0, len(doc.Chunks))
	for _, c := range doc.Chunks {
		if len(c.Embedding) == 0 {
			continue
		}
		candidates = append(candidates, scored{chunk: c, score: Cosine(queryVec, c.Embedding)})
	}

	// Stable sort keeps equal-score chunks in document order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	out := make([]models.Chunk, k)
	for i := 0; i < k; i++ {
		out[i] = candidates[i].chunk
	}
	return &Result{Chunks: out, Ranked: true}, nil
}

// Cosine is the cosine similarity of two vectors: dot product over the
// product of magnitudes. Mismatched or zero-magnitude vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func firstN(chunks []models.Chunk, n int) []models.Chunk {
	if n > len(chunks) {
		n = len(chunks)
	}
	return append([]models.Chunk(nil), chunks[:n]...)
}
