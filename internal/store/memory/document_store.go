package memory

import (
	"sort"
	"sync"

	"github.com/precisesoft/DocQueryAI/internal/core"
	"github.com/precisesoft/DocQueryAI/internal/models"
)

// DocumentStore is the in-memory document repository. All state is
// process-lifetime only and lost on restart.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]*models.Document
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]*models.Document)}
}

// Put stores doc under its filename, replacing any previous entry.
func (s *DocumentStore) Put(doc *models.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.Filename] = doc
}

// Get returns a shallow snapshot of the document. The chunk slice is shared:
// chunks are immutable once built, so readers can hold it safely.
func (s *DocumentStore) Get(filename string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[filename]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

// List returns snapshots of all documents ordered by upload time.
func (s *DocumentStore) List() []*models.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		cp := *doc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].Filename < out[j].Filename
		}
		return out[i].UploadedAt.Before(out[j].UploadedAt)
	})
	return out
}

// Clear drops every document and returns the number removed.
func (s *DocumentStore) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.docs)
	s.docs = make(map[string]*models.Document)
	return n
}

var _ core.DocumentStore = (*DocumentStore)(nil)
