package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/precisesoft/DocQueryAI/internal/core"
	"github.com/precisesoft/DocQueryAI/internal/ingest"
)

// maxUploadBytes caps the multipart form held in memory per upload.
const maxUploadBytes = 32 << 20

type DocumentHandler struct {
	docs     core.DocumentStore
	ingestor *ingest.Ingestor
	logger   *slog.Logger
}

func NewDocumentHandler(docs core.DocumentStore, ing *ingest.Ingestor, logger *slog.Logger) *DocumentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentHandler{docs: docs, ingestor: ing, logger: logger}
}

// UploadDocument ingests one uploaded file: extract text, chunk, embed,
// store. Re-uploading a filename replaces the previous entry.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, core.Validationf("file", "invalid multipart form: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, core.Validationf("file", "no file provided"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, core.Validationf("file", "read upload: %v", err))
		return
	}

	// Strip any path components from the client-supplied name.
	filename := filepath.Base(header.Filename)

	uploadCtx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	result, err := h.ingestor.IngestFile(uploadCtx, filename, data)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("document uploaded",
		"filename", result.Filename, "chunks", result.ChunkCount, "embedded", result.EmbeddedChunks)

	writeJSON(w, http.StatusOK, map[string]any{
		"filename":        result.Filename,
		"chunks":          result.ChunkCount,
		"embedded_chunks": result.EmbeddedChunks,
		"elapsed_sec":     result.Elapsed.Seconds(),
	})
}

// GetDocuments lists all stored documents with their chunk counts.
func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	docs := h.docs.List()

	type row struct {
		Filename      string `json:"filename"`
		ChunkCount    int    `json:"chunk_count"`
		HasEmbeddings bool   `json:"has_embeddings"`
		UploadedAt    string `json:"uploaded_at"`
	}
	rows := make([]row, 0, len(docs))
	for _, doc := range docs {
		rows = append(rows, row{
			Filename:      doc.Filename,
			ChunkCount:    len(doc.Chunks),
			HasEmbeddings: doc.HasEmbeddings(),
			UploadedAt:    doc.UploadedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": rows})
}

// ClearDocuments drops every stored document.
func (h *DocumentHandler) ClearDocuments(w http.ResponseWriter, r *http.Request) {
	removed := h.docs.Clear()
	h.logger.Info("documents cleared", "removed", removed)
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
