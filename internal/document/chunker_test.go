package document

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChunker(t *testing.T, cfg ChunkerConfig) *Chunker {
	t.Helper()
	cleaner, err := NewCleaner(nil)
	require.NoError(t, err)
	chunker, err := NewChunker(cleaner, cfg)
	require.NoError(t, err)
	return chunker
}

// sentences returns text of exactly n bytes built from 20-byte sentences.
func sentences(n int) string {
	s := strings.Repeat("This is a sentence. ", n/20+1)
	return strings.TrimSpace(s[:n])
}

func TestNewChunkerValidation(t *testing.T) {
	cleaner, err := NewCleaner(nil)
	require.NoError(t, err)

	_, err = NewChunker(cleaner, ChunkerConfig{MaxChunkSize: 0, OverlapFraction: 0.2})
	assert.Error(t, err)

	_, err = NewChunker(cleaner, ChunkerConfig{MaxChunkSize: 100, OverlapFraction: 1.0})
	assert.Error(t, err)

	_, err = NewChunker(cleaner, ChunkerConfig{MaxChunkSize: 100, OverlapFraction: -0.1})
	assert.Error(t, err)
}

func TestBuildEmptyInput(t *testing.T) {
	chunker := newTestChunker(t, ChunkerConfig{MaxChunkSize: 2048, OverlapFraction: 0.2})
	assert.Empty(t, chunker.Build(nil, "doc.md"))
	assert.Empty(t, chunker.Build([]Page{{Number: 1, Text: "   "}}, "doc.md"))
}

func TestBuildSinglePage(t *testing.T) {
	chunker := newTestChunker(t, ChunkerConfig{MaxChunkSize: 2048, OverlapFraction: 0.2})
	chunks := chunker.Build([]Page{{Number: 1, Text: "A short page."}}, "doc.md")

	require.Len(t, chunks, 1)
	assert.Equal(t, "A short page.", chunks[0].Content)
	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.Equal(t, "doc.md", chunks[0].Source)
	assert.Equal(t, hashContent("A short page."), chunks[0].ID)
	assert.NotContains(t, chunks[0].ID, "_", "unsplit chunk carries the bare hash")
}

func TestBuildOverlapPrefix(t *testing.T) {
	first := sentences(100)
	second := "Second page content here."
	chunker := newTestChunker(t, ChunkerConfig{MaxChunkSize: 2048, OverlapFraction: 0.2})

	chunks := chunker.Build([]Page{
		{Number: 1, Text: first},
		{Number: 2, Text: second},
	}, "doc.md")

	require.Len(t, chunks, 2)
	overlapLen := int(float64(len(first)) * 0.2)
	wantPrefix := first[len(first)-overlapLen:]
	assert.Equal(t, wantPrefix+"\n"+second, chunks[1].Content)
	assert.Equal(t, 2, chunks[1].PageNumber)
}

func TestBuildZeroOverlap(t *testing.T) {
	chunker := newTestChunker(t, ChunkerConfig{MaxChunkSize: 2048, OverlapFraction: 0})
	chunks := chunker.Build([]Page{
		{Number: 1, Text: "First."},
		{Number: 2, Text: "Second."},
	}, "doc.md")

	require.Len(t, chunks, 2)
	assert.Equal(t, "Second.", chunks[1].Content, "no overlap prefix or separator is injected")
}

func TestBuildPageNumbersSurviveCleaningDrops(t *testing.T) {
	cleaner, err := NewCleaner([]string{`^DROPME$`})
	require.NoError(t, err)
	chunker, err := NewChunker(cleaner, ChunkerConfig{MaxChunkSize: 2048, OverlapFraction: 0})
	require.NoError(t, err)

	chunks := chunker.Build([]Page{
		{Number: 1, Text: "keep one"},
		{Number: 2, Text: "DROPME"},
		{Number: 3, Text: "keep two"},
	}, "doc.md")

	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.Equal(t, 3, chunks[1].PageNumber)
}

func TestSplitBySentencePrefersBoundary(t *testing.T) {
	// One sentence boundary inside the size window, then overflow.
	text := "First sentence ends here. " + strings.Repeat("x", 40)
	parts := splitBySentence(text, 50)

	require.Len(t, parts, 2)
	assert.Equal(t, "First sentence ends here.", parts[0])
	assert.Equal(t, " "+strings.Repeat("x", 40), parts[1])
}

func TestSplitBySentenceHardCutFallback(t *testing.T) {
	text := strings.Repeat("y", 120) // no sentence boundary anywhere
	parts := splitBySentence(text, 50)

	require.Len(t, parts, 3)
	assert.Equal(t, 50, len(parts[0]))
	assert.Equal(t, 50, len(parts[1]))
	assert.Equal(t, 20, len(parts[2]))
}

func TestSplitBySentenceReconstructsInput(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
	}{
		{name: "sentence boundaries", text: sentences(3000), max: 512},
		{name: "no boundaries", text: strings.Repeat("z", 2000), max: 300},
		{name: "mixed", text: sentences(1000) + strings.Repeat("q", 700), max: 256},
		{name: "multibyte runes", text: strings.Repeat("héllo wörld ", 100), max: 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := splitBySentence(tt.text, tt.max)
			assert.Equal(t, tt.text, strings.Join(parts, ""))
			for _, part := range parts {
				assert.NotEmpty(t, part)
				assert.LessOrEqual(t, len(part), tt.max)
			}
		})
	}
}

func TestResplitIDsCarrySplitIndex(t *testing.T) {
	chunker := newTestChunker(t, ChunkerConfig{MaxChunkSize: 256, OverlapFraction: 0})
	chunks := chunker.Build([]Page{{Number: 1, Text: sentences(600)}}, "doc.md")

	require.Greater(t, len(chunks), 1)
	for j, chunk := range chunks {
		assert.Equal(t, hashContent(chunk.Content), chunk.ID[:64])
		assert.Equal(t, fmt.Sprintf("_%d", j), chunk.ID[64:])
		assert.Equal(t, 1, chunk.PageNumber)
	}
}

func TestHashContentDeterministic(t *testing.T) {
	assert.Equal(t, hashContent("same text"), hashContent("same text"))
	assert.NotEqual(t, hashContent("text a"), hashContent("text b"))
	assert.Len(t, hashContent("anything"), 64)
}

// Ingesting a two-page document of 3000 bytes per page with the default
// overlap and a 2048 ceiling produces at least three bounded chunks with
// unique ids.
func TestBuildTwoLargePages(t *testing.T) {
	page := sentences(3000)
	chunker := newTestChunker(t, ChunkerConfig{MaxChunkSize: 2048, OverlapFraction: 0.2})

	chunks := chunker.Build([]Page{
		{Number: 1, Text: page},
		{Number: 2, Text: page},
	}, "big.md")

	require.GreaterOrEqual(t, len(chunks), 3)
	seen := make(map[string]bool, len(chunks))
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk.Content), 2048)
		assert.NotEmpty(t, chunk.Content)
		assert.False(t, seen[chunk.ID], "duplicate id %s", chunk.ID)
		seen[chunk.ID] = true
	}
}

// Re-building the same document yields byte-identical ids: content
// addressing is deterministic across runs.
func TestBuildIdempotentIDs(t *testing.T) {
	pages := []Page{
		{Number: 1, Text: sentences(3000)},
		{Number: 2, Text: sentences(2500)},
	}
	chunker := newTestChunker(t, ChunkerConfig{MaxChunkSize: 2048, OverlapFraction: 0.2})

	first := chunker.Build(pages, "doc.md")
	second := chunker.Build(pages, "doc.md")

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Content, second[i].Content)
	}
}

func TestChunkMetadata(t *testing.T) {
	chunk := Chunk{ID: "abc", PageNumber: 7, Content: "text", Source: "a.md"}
	meta := chunk.Metadata()
	assert.Equal(t, 7, meta["page_number"])
	assert.Equal(t, "a.md", meta["source"])
}
