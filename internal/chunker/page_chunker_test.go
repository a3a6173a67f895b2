package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multimodal-rag/internal/domain"
)

func pages(texts ...string) string {
	var sb strings.Builder
	for i, t := range texts {
		fmt.Fprintf(&sb, "\n=== Page %d ===\n%s", i+1, t)
	}
	return sb.String()
}

func TestPageChunker_OneChunkPerPage(t *testing.T) {
	c := NewPageChunker("")
	doc := domain.Document{ID: "doc1", Path: "paper.pdf", Text: pages("Hello", "World", "Again")}

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Ordinal)
		assert.Equal(t, fmt.Sprintf("doc1:%d", i), ch.ChunkID)
		assert.Equal(t, "doc1", ch.SourceID)
		assert.Equal(t, fmt.Sprintf("Page %d", i+1), ch.Label)
		assert.True(t, strings.HasPrefix(ch.Text, fmt.Sprintf("=== Page %d ===", i+1)), ch.Text)
		assert.False(t, ch.CreatedAt.IsZero())
	}
	assert.Contains(t, chunks[0].Text, "Hello")
	assert.Contains(t, chunks[1].Text, "World")
	assert.Contains(t, chunks[2].Text, "Again")
}

func TestPageChunker_EmptyInput(t *testing.T) {
	c := NewPageChunker("")
	for _, text := range []string{"", "   ", "\n\t\r\n"} {
		chunks, err := c.Chunk(domain.Document{ID: "d", Text: text})
		require.NoError(t, err)
		assert.Empty(t, chunks)
	}
}

func TestPageChunker_SkipsBlankPages(t *testing.T) {
	c := NewPageChunker("")
	// A trailing marker with nothing after it produces a blank segment.
	text := "\n=== Page 1 ===\nfirst\n=== Page 2 ===\nsecond"
	chunks, err := c.Chunk(domain.Document{ID: "d", Text: text + "\n=== Page \n  "})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, []int{0, 1}, []int{chunks[0].Ordinal, chunks[1].Ordinal})
}

func TestPageChunker_TextWithoutMarkers(t *testing.T) {
	c := NewPageChunker("")
	chunks, err := c.Chunk(domain.Document{ID: "d", Path: "notes.txt", Text: "  plain text body  "})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "plain text body", chunks[0].Text)
	assert.Equal(t, "notes.txt", chunks[0].Label)
}

func TestPageChunker_PreambleBeforeFirstMarker(t *testing.T) {
	c := NewPageChunker("")
	chunks, err := c.Chunk(domain.Document{ID: "d", Path: "p.pdf", Text: "title" + pages("body")})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "p.pdf", chunks[0].Label)
	assert.Equal(t, "Page 1", chunks[1].Label)
}

func TestPageChunker_FreshCallRechunks(t *testing.T) {
	c := NewPageChunker("")
	doc := domain.Document{ID: "d", Text: pages("a", "b")}
	first, err := c.Chunk(doc)
	require.NoError(t, err)
	second, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Text, second[i].Text)
		assert.Equal(t, first[i].Label, second[i].Label)
	}
}

func TestPageChunker_TextOpeningWithMarker(t *testing.T) {
	c := NewPageChunker("")
	doc := domain.Document{ID: "x", Path: "x.txt", Text: "=== Page 1 ===\nHello\n=== Page 2 ===\nWorld"}

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Page 1", chunks[0].Label)
	assert.Equal(t, "=== Page 1 ===\nHello", chunks[0].Text)
	assert.Equal(t, "Page 2", chunks[1].Label)
}

func TestPageChunker_BodyDropsHeaderAndRepeatedLabel(t *testing.T) {
	c := NewPageChunker("")
	doc := domain.Document{ID: "d", Path: "d.pdf", Text: pages("Page 1: Hello", "World")}

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Hello", chunks[0].Body)
	assert.Equal(t, "World", chunks[1].Body)
	assert.Contains(t, chunks[0].Text, "=== Page 1 ===")
}
