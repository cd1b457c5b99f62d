package ingest

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/precisesoft/DocQueryAI/internal/core"
	"github.com/precisesoft/DocQueryAI/internal/models"
	"github.com/precisesoft/DocQueryAI/internal/retrieval"
)

// Config tunes the ingestion pipeline.
//
// ChunkSize:    target chunk length in bytes.
// ChunkOverlap: how far each chunk reaches back into the previous one.
// BatchSize:    chunks embedded per upstream request.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

func DefaultConfig() Config {
	return Config{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		BatchSize:    16,
	}
}

// Ingestor turns uploaded files into stored, chunked, optionally embedded
// documents. Embeddings are attached only when the embedding service probed
// healthy; chunks ingested while it was down stay unembedded for good.
type Ingestor struct {
	docs   core.DocumentStore
	engine *retrieval.Engine
	cfg    Config
	logger *slog.Logger
}

func NewIngestor(docs core.DocumentStore, engine *retrieval.Engine, cfg Config, logger *slog.Logger) *Ingestor {
	def := DefaultConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = def.ChunkOverlap
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{docs: docs, engine: engine, cfg: cfg, logger: logger}
}

// Result summarizes one ingestion for the upload response.
type Result struct {
	Filename       string
	ChunkCount     int
	EmbeddedChunks int
	Elapsed        time.Duration
}

// IngestFile extracts text from the uploaded bytes, chunks it, embeds the
// chunks when possible and stores the document, replacing any previous
// entry for the same filename.
func (i *Ingestor) IngestFile(ctx context.Context, filename string, data []byte) (*Result, error) {
	text, err := ExtractText(filename, data)
	if err != nil {
		return nil, err
	}
	return i.IngestText(ctx, filename, text)
}

// IngestText chunks and stores already-extracted text under filename.
func (i *Ingestor) IngestText(ctx context.Context, filename, text string) (*Result, error) {
	if text == "" {
		return nil, core.Validationf("file", "no text extracted from file")
	}

	start := time.Now()
	chunks := Chunk(text, i.cfg.ChunkSize, i.cfg.ChunkOverlap)
	i.logger.Info("document split into chunks", "filename", filename, "chunks", len(chunks))

	embedded := 0
	if i.engine.Available() {
		embedded = i.embedChunks(ctx, chunks)
	} else {
		i.logger.Warn("embedding service unavailable; storing chunks unembedded", "filename", filename)
	}

	i.docs.Put(&models.Document{
		Filename:   filename,
		RawText:    text,
		Chunks:     chunks,
		UploadedAt: time.Now(),
	})

	return &Result{
		Filename:       filename,
		ChunkCount:     len(chunks),
		EmbeddedChunks: embedded,
		Elapsed:        time.Since(start),
	}, nil
}

// embedChunks vectorizes chunks in batches, one goroutine per batch tied
// together by an errgroup. A failing batch leaves its chunks unembedded and
// does not fail the ingestion; absence is permanent for those chunks.
func (i *Ingestor) embedChunks(ctx context.Context, chunks []models.Chunk) int {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for lo := 0; lo < len(chunks); lo += i.cfg.BatchSize {
		hi := lo + i.cfg.BatchSize
		if hi > len(chunks) {
			hi = len(chunks)
		}
		batch := chunks[lo:hi]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for k := range batch {
				texts[k] = batch[k].Text
			}
			vecs, err := i.engine.EmbedTexts(gctx, texts)
			if err != nil {
				i.logger.Warn("embedding batch failed", "chunks", len(batch), "err", err)
				return nil
			}
			if len(vecs) != len(batch) {
				i.logger.Warn("embedding batch size mismatch", "got", len(vecs), "want", len(batch))
				return nil
			}
			for k := range batch {
				batch[k].Embedding = vecs[k]
			}
			return nil
		})
	}
	_ = g.Wait()

	embedded := 0
	for k := range chunks {
		if len(chunks[k].Embedding) > 0 {
			embedded++
		}
	}
	return embedded
}
