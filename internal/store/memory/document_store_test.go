package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/precisesoft/DocQueryAI/internal/core"
	"github.com/precisesoft/DocQueryAI/internal/models"
)

func TestDocumentStore_PutAndGet(t *testing.T) {
	store := NewDocumentStore()

	doc := &models.Document{
		Filename:   "report.txt",
		RawText:    "some text",
		UploadedAt: time.Now(),
		Chunks: []models.Chunk{
			{ID: 0, Text: "some text", StartOffset: 0, EndOffset: 9},
		},
	}
	store.Put(doc)

	got, err := store.Get("report.txt")
	require.NoError(t, err)
	assert.Equal(t, "report.txt", got.Filename)
	assert.Equal(t, "some text", got.RawText)
	require.Len(t, got.Chunks, 1)
	assert.Equal(t, 9, got.Chunks[0].EndOffset)
}

func TestDocumentStore_GetUnknown(t *testing.T) {
	store := NewDocumentStore()

	_, err := store.Get("missing.pdf")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDocumentStore_ReuploadReplaces(t *testing.T) {
	store := NewDocumentStore()

	store.Put(&models.Document{Filename: "a.txt", RawText: "first"})
	store.Put(&models.Document{Filename: "a.txt", RawText: "second"})

	got, err := store.Get("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "second", got.RawText)
	assert.Len(t, store.List(), 1)
}

func TestDocumentStore_Clear(t *testing.T) {
	store := NewDocumentStore()

	store.Put(&models.Document{Filename: "a.txt"})
	store.Put(&models.Document{Filename: "b.txt"})

	assert.Equal(t, 2, store.Clear())
	assert.Empty(t, store.List())

	_, err := store.Get("a.txt")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDocumentStore_ListOrderedByUpload(t *testing.T) {
	store := NewDocumentStore()

	base := time.Now()
	store.Put(&models.Document{Filename: "late.txt", UploadedAt: base.Add(time.Minute)})
	store.Put(&models.Document{Filename: "early.txt", UploadedAt: base})

	docs := store.List()
	require.Len(t, docs, 2)
	assert.Equal(t, "early.txt", docs[0].Filename)
	assert.Equal(t, "late.txt", docs[1].Filename)
}
