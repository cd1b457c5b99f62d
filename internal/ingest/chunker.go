package ingest

import (
	"strings"

	"github.com/precisesoft/DocQueryAI/internal/models"
)

const (
	// DefaultChunkSize is the target chunk length in bytes.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is how far each chunk reaches back into the
	// previous one to preserve cross-boundary context.
	DefaultChunkOverlap = 200
)

// Chunk splits text into overlapping segments with smart boundary detection.
// Offsets index into text so chunks stay citable against the source.
//
// The boundary search scans backward from the chunk-size limit and prefers,
// in order: a sentence terminator past half the window, a paragraph break
// past a third, a single newline past a third, then plain whitespace past
// half. With no usable delimiter the chunk is cut at the hard limit, so
// chunking terminates on any input. Start offsets strictly increase; a final
// remainder shorter than the overlap is still emitted.
func Chunk(text string, size, overlap int) []models.Chunk {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	if len(text) == 0 {
		return nil
	}
	if len(text) <= size {
		return []models.Chunk{{ID: 0, Text: text, StartOffset: 0, EndOffset: len(text)}}
	}

	var chunks []models.Chunk
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else {
			end = boundary(text, start, end)
		}

		chunks = append(chunks, models.Chunk{
			ID:          len(chunks),
			Text:        text[start:end],
			StartOffset: start,
			EndOffset:   end,
		})
		if end >= len(text) {
			break
		}

		next := end - overlap
		if next <= start {
			// Overlap would stall on pathological input; skip it.
			next = end
		}
		start = next
	}
	return chunks
}

// boundary picks a cut point in text[start:limit], scanning backward.
func boundary(text string, start, limit int) int {
	window := text[start:limit]
	size := limit - start

	sentence := lastAnyByte(window, ".?!")
	if sentence > size/2 {
		return start + sentence + 1
	}
	if para := strings.LastIndex(window, "\n\n"); para > size/3 {
		return start + para + 2
	}
	if line := strings.LastIndexByte(window, '\n'); line > size/3 {
		return start + line + 1
	}
	if space := strings.LastIndexByte(window, ' '); space > size/2 {
		return start + space + 1
	}
	return limit
}

// lastAnyByte returns the highest index of any byte from set in s, or -1.
func lastAnyByte(s, set string) int {
	best := -1
	for i := 0; i < len(set); i++ {
		if idx := strings.LastIndexByte(s, set[i]); idx > best {
			best = idx
		}
	}
	return best
}
