// Package chunker splits document text into overlapping, boundary-aware
// segments for claim extraction. Offsets are byte offsets into the original
// text, so every chunk satisfies Content == text[StartOffset:EndOffset].
package chunker

import (
	"strings"

	"github.com/lacunalabs/lacuna/internal/core/model"
	"github.com/lacunalabs/lacuna/internal/ids"
)

const (
	DefaultChunkSize    = 1500
	DefaultChunkOverlap = 200

	// breakSearchWindow is how far back from the raw window end we look for
	// a natural break point.
	breakSearchWindow = 200
)

type Options struct {
	ChunkSize    int
	ChunkOverlap int
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		o.ChunkOverlap = DefaultChunkOverlap
	}
	return o
}

// Chunk splits text into ordered chunks for the given document. Empty or
// whitespace-only input yields no chunks. Non-empty input no longer than the
// chunk size yields exactly one chunk spanning the whole text.
func Chunk(text string, documentID ids.DocumentID, opts Options) []*model.TextChunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	opts = opts.withDefaults()

	var chunks []*model.TextChunk
	add := func(start, end int) {
		chunks = append(chunks, &model.TextChunk{
			ID:          ids.NewChunkID(),
			DocumentID:  documentID,
			Content:     text[start:end],
			StartOffset: start,
			EndOffset:   end,
			ChunkIndex:  len(chunks),
		})
	}

	if len(text) <= opts.ChunkSize {
		add(0, len(text))
		return chunks
	}

	start := 0
	for start < len(text) {
		rawEnd := start + opts.ChunkSize
		if rawEnd >= len(text) {
			add(start, len(text))
			break
		}

		end := breakPoint(text, start, rawEnd)
		add(start, end)

		// Overlap the next window, but always advance to guarantee
		// termination.
		next := end - opts.ChunkOverlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

// breakPoint picks where to end a chunk, searching backward from rawEnd in
// priority order: paragraph break, sentence terminator, plain space, then
// the raw end exactly.
func breakPoint(text string, start, rawEnd int) int {
	searchFrom := rawEnd - breakSearchWindow
	if searchFrom < start {
		searchFrom = start
	}
	window := text[searchFrom:rawEnd]

	if i := strings.LastIndex(window, "\n\n"); i >= 0 {
		return searchFrom + i + 2
	}

	for i := len(window) - 2; i >= 0; i-- {
		c := window[i]
		if (c == '.' || c == '!' || c == '?') && isSpace(window[i+1]) {
			return searchFrom + i + 1
		}
	}

	if i := strings.LastIndexByte(window, ' '); i >= 0 {
		return searchFrom + i + 1
	}

	return rawEnd
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
