package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/precisesoft/DocQueryAI/internal/core"
)

// textPageSize is how much raw text one pseudo-page carries when a document
// has no explicit page breaks.
const textPageSize = 3000

// TextPageSource serves pipeline pages from the document store's raw text.
// A PDF→PNG renderer is an external collaborator; this source stands in for
// it by paginating on form feeds, falling back to fixed-size slices.
type TextPageSource struct {
	docs core.DocumentStore
}

func NewTextPageSource(docs core.DocumentStore) *TextPageSource {
	return &TextPageSource{docs: docs}
}

// RenderPages returns up to maxPages pages for filename. Scale is accepted
// for interface parity with image renderers; text pagination ignores it.
func (s *TextPageSource) RenderPages(ctx context.Context, filename string, maxPages int, scale float64) ([]core.Page, error) {
	doc, err := s.docs.Get(filename)
	if err != nil {
		return nil, fmt.Errorf("document %q: %w", filename, err)
	}

	var raw []string
	if strings.Contains(doc.RawText, "\f") {
		raw = strings.Split(doc.RawText, "\f")
	} else {
		for off := 0; off < len(doc.RawText); off += textPageSize {
			end := off + textPageSize
			if end > len(doc.RawText) {
				end = len(doc.RawText)
			}
			raw = append(raw, doc.RawText[off:end])
		}
	}
	if len(raw) == 0 {
		raw = []string{""}
	}
	if maxPages > 0 && len(raw) > maxPages {
		raw = raw[:maxPages]
	}

	pages := make([]core.Page, len(raw))
	for i, text := range raw {
		pages[i] = core.Page{Number: i + 1, Text: text}
	}
	return pages, nil
}

var _ core.PageSource = (*TextPageSource)(nil)
