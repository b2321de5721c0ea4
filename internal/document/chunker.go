package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"unicode/utf8"
)

// Chunk is a bounded unit of document text prepared for embedding and
// retrieval. Chunks are immutable once built.
type Chunk struct {
	ID         string // content hash, suffixed with a split index on resplit
	PageNumber int    // page the chunk originates from
	Content    string // final text, never longer than MaxChunkSize bytes
	Source     string // originating document identifier
}

// Metadata returns the provenance tags stored alongside the chunk.
func (c Chunk) Metadata() map[string]any {
	return map[string]any{
		"page_number": c.PageNumber,
		"source":      c.Source,
	}
}

// ChunkerConfig bounds chunk size and the overlap carried between
// adjacent pages.
type ChunkerConfig struct {
	MaxChunkSize    int     // hard ceiling on chunk content, in bytes
	OverlapFraction float64 // fraction of the previous page prefixed to the next, in [0,1)
	Separator       string  // injected between overlap prefix and page text
}

// Chunker builds the final chunk sequence from split pages. It owns the
// id-generation policy: ids are the sha256 hex digest of the exact chunk
// text, so identical text always yields the same id.
type Chunker struct {
	cleaner *Cleaner
	cfg     ChunkerConfig
}

// NewChunker validates cfg and returns a Chunker using cleaner for page
// normalization.
func NewChunker(cleaner *Cleaner, cfg ChunkerConfig) (*Chunker, error) {
	if cfg.MaxChunkSize <= 0 {
		return nil, fmt.Errorf("max chunk size must be positive, got %d", cfg.MaxChunkSize)
	}
	if cfg.OverlapFraction < 0 || cfg.OverlapFraction >= 1 {
		return nil, fmt.Errorf("overlap fraction must be in [0,1), got %g", cfg.OverlapFraction)
	}
	if cfg.Separator == "" {
		cfg.Separator = "\n"
	}
	return &Chunker{cleaner: cleaner, cfg: cfg}, nil
}

// Build cleans every page, drops the ones that clean to empty, and emits
// overlapping size-bounded chunks in page order. An empty page sequence
// yields no chunks.
func (c *Chunker) Build(pages []Page, source string) []Chunk {
	kept := make([]Page, 0, len(pages))
	for _, page := range pages {
		cleaned := c.cleaner.Clean(page.Text)
		if cleaned == "" {
			continue
		}
		kept = append(kept, Page{Number: page.Number, Text: cleaned})
	}

	var out []Chunk
	for i, page := range kept {
		pending := page.Text
		if i > 0 {
			prev := kept[i-1].Text
			overlapLen := int(float64(len(prev)) * c.cfg.OverlapFraction)
			if prefix := tailBytes(prev, overlapLen); prefix != "" {
				pending = prefix + c.cfg.Separator + page.Text
			}
		}
		out = append(out, c.emit(pending, page.Number, source)...)
	}
	return out
}

// emit resplits pending content that exceeds the size ceiling and assigns
// content-addressed ids. Sub-chunks of one resplit carry a split-index
// suffix; an unsplit chunk carries the bare hash.
func (c *Chunker) emit(pending string, pageNumber int, source string) []Chunk {
	parts := splitBySentence(pending, c.cfg.MaxChunkSize)
	chunks := make([]Chunk, 0, len(parts))
	for j, part := range parts {
		id := hashContent(part)
		if len(parts) > 1 {
			id = fmt.Sprintf("%s_%d", id, j)
		}
		chunks = append(chunks, Chunk{
			ID:         id,
			PageNumber: pageNumber,
			Content:    part,
			Source:     source,
		})
	}
	return chunks
}

// splitBySentence cuts text into pieces of at most max bytes, preferring
// the nearest sentence terminator followed by a space below the size
// boundary and falling back to a hard cut at a rune boundary. The pieces
// concatenate back to the input exactly.
func splitBySentence(text string, max int) []string {
	if len(text) <= max {
		return []string{text}
	}
	var parts []string
	rest := text
	for len(rest) > max {
		cut := -1
		for i := max - 1; i > 0; i-- {
			if isSentenceEnd(rest[i]) && rest[i+1] == ' ' {
				cut = i + 1
				break
			}
		}
		if cut == -1 {
			cut = max
			for cut > 0 && !utf8.RuneStart(rest[cut]) {
				cut--
			}
			if cut == 0 {
				cut = max
			}
		}
		parts = append(parts, rest[:cut])
		rest = rest[cut:]
	}
	return append(parts, rest)
}

func isSentenceEnd(b byte) bool {
	return b == '.' || b == '?' || b == '!'
}

// tailBytes returns the last n bytes of s, advanced to the next rune
// boundary so the prefix is always valid UTF-8.
func tailBytes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if n >= len(s) {
		return s
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
