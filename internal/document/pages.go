// Package document turns raw document text into overlapping, size-bounded
// chunks with content-addressed identifiers.
package document

import "strings"

// Page is one ordered unit of a document, produced by SplitPages.
type Page struct {
	Number int // 1-based position in the source document
	Text   string
}

// DefaultPageSeparator is the page boundary convention used by the
// markdown conversion that feeds this pipeline.
const DefaultPageSeparator = "-----"

// SplitPages splits text into pages on every occurrence of separator.
// Each piece is trimmed and empty pieces are dropped; the survivors are
// numbered 1..N in source order. Empty input yields no pages.
func SplitPages(text, separator string) []Page {
	if separator == "" {
		separator = DefaultPageSeparator
	}
	parts := strings.Split(text, separator)
	pages := make([]Page, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		pages = append(pages, Page{
			Number: len(pages) + 1,
			Text:   trimmed,
		})
	}
	return pages
}
