package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lacunalabs/lacuna/internal/ids"
)

var testDoc = ids.NewDocumentID()

func TestChunk_EmptyInput(t *testing.T) {
	assert.Empty(t, Chunk("", testDoc, Options{}))
	assert.Empty(t, Chunk("   \n\t  ", testDoc, Options{}))
}

func TestChunk_ShortInput(t *testing.T) {
	text := "A single short paragraph about neural networks."
	chunks := Chunk(text, testDoc, Options{})
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Content)
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, len(text), chunks[0].EndOffset)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, testDoc, chunks[0].DocumentID)
}

func TestChunk_ExactSizeInput(t *testing.T) {
	text := strings.Repeat("a", 100)
	chunks := Chunk(text, testDoc, Options{ChunkSize: 100, ChunkOverlap: 20})
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Content)
}

func TestChunk_OffsetsReconstructText(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString("Sentence number one has some words. Another sentence follows here! Does a question fit? ")
	}
	text := b.String()

	chunks := Chunk(text, testDoc, Options{ChunkSize: 300, ChunkOverlap: 50})
	require.Greater(t, len(chunks), 1)

	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, len(text), chunks[len(chunks)-1].EndOffset)

	for i, c := range chunks {
		assert.Equal(t, text[c.StartOffset:c.EndOffset], c.Content, "chunk %d", i)
		assert.Equal(t, i, c.ChunkIndex)
		if i > 0 {
			// Overlapping coverage with no holes.
			assert.Less(t, c.StartOffset, chunks[i-1].EndOffset)
			assert.Greater(t, c.EndOffset, chunks[i-1].EndOffset)
		}
	}
}

func TestChunk_PrefersParagraphBreak(t *testing.T) {
	para := strings.Repeat("x", 80) + "\n\n"
	text := para + strings.Repeat("y", 200)
	chunks := Chunk(text, testDoc, Options{ChunkSize: 100, ChunkOverlap: 10})
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, para, chunks[0].Content)
}

func TestChunk_PrefersSentenceBreak(t *testing.T) {
	head := "First sentence ends here. "
	text := head + strings.Repeat("z", 300)
	chunks := Chunk(text, testDoc, Options{ChunkSize: 100, ChunkOverlap: 10})
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, "First sentence ends here.", chunks[0].Content)
}

func TestChunk_FallsBackToSpace(t *testing.T) {
	text := strings.Repeat("word ", 100) // no sentence terminators
	chunks := Chunk(text, testDoc, Options{ChunkSize: 97, ChunkOverlap: 10})
	require.Greater(t, len(chunks), 1)
	assert.True(t, strings.HasSuffix(chunks[0].Content, " "))
}

func TestChunk_NoBreakCandidate(t *testing.T) {
	// One unbroken run: the window ends exactly at the raw end.
	text := strings.Repeat("a", 250)
	chunks := Chunk(text, testDoc, Options{ChunkSize: 100, ChunkOverlap: 20})
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, 100, chunks[0].EndOffset)
	assert.Equal(t, 80, chunks[1].StartOffset)
	assert.Equal(t, len(text), chunks[len(chunks)-1].EndOffset)
}

func TestChunk_AlwaysAdvances(t *testing.T) {
	// Overlap nearly as large as the chunk still terminates.
	text := strings.Repeat("ab ", 500)
	chunks := Chunk(text, testDoc, Options{ChunkSize: 50, ChunkOverlap: 49})
	require.NotEmpty(t, chunks)
	for i := 1; i < len(chunks); i++ {
		assert.Greater(t, chunks[i].StartOffset, chunks[i-1].StartOffset)
	}
	assert.Equal(t, len(text), chunks[len(chunks)-1].EndOffset)
}
