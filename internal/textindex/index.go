// Package textindex maintains a keyword index over ingested chunks so
// that exact-term lookups work even when the embedding model misses
// them. It complements the vector store rather than replacing it.
package textindex

import (
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/ragpipe/ragpipe/internal/document"
)

// Hit is a single keyword match against the index.
type Hit struct {
	ID       string
	Source   string
	Page     int
	Fragment string
	Score    float64
}

// Index wraps a bleve index keyed by chunk id.
type Index struct {
	index bleve.Index
}

// chunkDoc is the shape bleve sees for each chunk.
type chunkDoc struct {
	Content string `json:"content"`
	Source  string `json:"source"`
	Page    int    `json:"page_number"`
}

// Open returns the index at dir, creating it when absent.
func Open(dir string) (*Index, error) {
	index, err := bleve.Open(dir)
	if err == nil {
		return &Index{index: index}, nil
	}
	if err != bleve.ErrorIndexPathDoesNotExist {
		return nil, fmt.Errorf("open text index: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create text index dir: %w", err)
	}
	index, err = bleve.New(dir, buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create text index: %w", err)
	}
	return &Index{index: index}, nil
}

// IndexChunks adds or replaces the given chunks. Indexing by chunk id
// keeps re-ingestion of unchanged content idempotent.
func (ix *Index) IndexChunks(chunks []document.Chunk) error {
	batch := ix.index.NewBatch()
	for _, chunk := range chunks {
		doc := chunkDoc{
			Content: chunk.Content,
			Source:  chunk.Source,
			Page:    chunk.PageNumber,
		}
		if err := batch.Index(chunk.ID, doc); err != nil {
			return fmt.Errorf("index chunk %s: %w", chunk.ID, err)
		}
	}
	if err := ix.index.Batch(batch); err != nil {
		return fmt.Errorf("apply index batch: %w", err)
	}
	return nil
}

// Search runs a keyword match over chunk content and sources, boosting
// source-name hits so a query naming a document surfaces it first.
func (ix *Index) Search(query string, topK int) ([]Hit, error) {
	if topK <= 0 {
		topK = 10
	}

	contentQuery := bleve.NewMatchQuery(query)
	contentQuery.SetField("content")
	contentQuery.SetBoost(1.0)
	sourceQuery := bleve.NewMatchQuery(query)
	sourceQuery.SetField("source")
	sourceQuery.SetBoost(1.5)
	disjunction := bleve.NewDisjunctionQuery(contentQuery, sourceQuery)

	req := bleve.NewSearchRequestOptions(disjunction, topK, 0, false)
	req.Fields = []string{"content", "source", "page_number"}

	res, err := ix.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search text index: %w", err)
	}

	var hits []Hit
	for _, hit := range res.Hits {
		content, _ := hit.Fields["content"].(string)
		source, _ := hit.Fields["source"].(string)
		hits = append(hits, Hit{
			ID:       hit.ID,
			Source:   source,
			Page:     parsePageField(hit.Fields["page_number"]),
			Fragment: fragment(content, 200),
			Score:    hit.Score,
		})
	}
	return hits, nil
}

// DocCount reports how many chunks the index holds.
func (ix *Index) DocCount() (uint64, error) {
	return ix.index.DocCount()
}

func (ix *Index) Close() error {
	return ix.index.Close()
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "en"
	indexMapping.DefaultField = "content"

	docMapping := bleve.NewDocumentMapping()

	contentField := bleve.NewTextFieldMapping()
	contentField.Store = true
	contentField.Index = true
	docMapping.AddFieldMappingsAt("content", contentField)

	sourceField := bleve.NewTextFieldMapping()
	sourceField.Store = true
	sourceField.Index = true
	docMapping.AddFieldMappingsAt("source", sourceField)

	pageField := bleve.NewNumericFieldMapping()
	pageField.Store = true
	pageField.Index = false
	docMapping.AddFieldMappingsAt("page_number", pageField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

func parsePageField(val any) int {
	switch v := val.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

// fragment trims content to at most max bytes on a rune boundary for
// display in search results.
func fragment(content string, max int) string {
	if len(content) <= max {
		return content
	}
	cut := max
	for cut > 0 && content[cut]&0xC0 == 0x80 {
		cut--
	}
	return content[:cut] + "…"
}
