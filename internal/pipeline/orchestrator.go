// Package pipeline ties chunking, embedding, storage and completion
// together into the ingest and retrieval flows.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ragpipe/ragpipe/internal/completion"
	"github.com/ragpipe/ragpipe/internal/config"
	"github.com/ragpipe/ragpipe/internal/document"
	"github.com/ragpipe/ragpipe/internal/embedding"
	"github.com/ragpipe/ragpipe/internal/vectorstore"
)

// ErrNoChunksStored reports that a batch produced chunks but every one
// of them failed to embed, so nothing reached the store.
var ErrNoChunksStored = errors.New("no chunks stored")

// Completer produces text from a prompt. Satisfied by *completion.Client.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts completion.Options) (string, error)
}

// ChunkIndexer receives successfully stored chunks for keyword lookup.
// Satisfied by *textindex.Index.
type ChunkIndexer interface {
	IndexChunks(chunks []document.Chunk) error
}

// FailedChunk records a chunk that could not be embedded.
type FailedChunk struct {
	ID  string
	Err error
}

// IngestResult summarizes one ingestion batch.
type IngestResult struct {
	Submitted int      // chunks produced from the document
	Stored    int      // chunks that embedded and reached the store
	IDs       []string // ids of stored chunks, in document order
	Failed    []FailedChunk
}

// Answer is the outcome of a retrieval-augmented question.
type Answer struct {
	Text    string
	Context string   // concatenated retrieved documents, ranked order
	Sources []string // distinct source tags of contributing matches
}

// Orchestrator runs the ingest and retrieval flows.
type Orchestrator struct {
	cfg      *config.Config
	chunker  *document.Chunker
	embedder embedding.Client
	store    vectorstore.Store
	complete Completer
	keyword  ChunkIndexer // optional
	progress ProgressReporter
	logger   *zap.Logger
}

// Option tweaks optional orchestrator collaborators.
type Option func(*Orchestrator)

// WithKeywordIndex mirrors stored chunks into a keyword index.
func WithKeywordIndex(ix ChunkIndexer) Option {
	return func(o *Orchestrator) { o.keyword = ix }
}

// WithProgress reports per-chunk embedding progress.
func WithProgress(p ProgressReporter) Option {
	return func(o *Orchestrator) { o.progress = p }
}

func New(cfg *config.Config, embedder embedding.Client, store vectorstore.Store, complete Completer, logger *zap.Logger, opts ...Option) (*Orchestrator, error) {
	cleaner, err := document.NewCleaner(cfg.Chunking.CleanPatterns)
	if err != nil {
		return nil, fmt.Errorf("compile clean patterns: %w", err)
	}
	chunker, err := document.NewChunker(cleaner, document.ChunkerConfig{
		MaxChunkSize:    cfg.Chunking.MaxChunkSize,
		OverlapFraction: cfg.Chunking.OverlapFraction,
	})
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		cfg:      cfg,
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		complete: complete,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// IngestText splits a document into chunks, embeds them with bounded
// concurrency and upserts the survivors in one batch. Chunks whose
// embedding fails are dropped individually; the rest still land.
func (o *Orchestrator) IngestText(ctx context.Context, text, source string) (*IngestResult, error) {
	separator := o.cfg.Chunking.PageSeparator
	if separator == "" {
		separator = document.DefaultPageSeparator
	}
	pages := document.SplitPages(text, separator)
	chunks := o.chunker.Build(pages, source)
	result := &IngestResult{Submitted: len(chunks)}
	if len(chunks) == 0 {
		o.logger.Info("document produced no chunks", zap.String("source", source))
		return result, nil
	}

	vectors, embedErrs := o.embedAll(ctx, chunks)

	// Keep ids, vectors and chunks aligned by filtering all of them
	// with the same per-index verdict.
	records := make([]vectorstore.Record, 0, len(chunks))
	stored := make([]document.Chunk, 0, len(chunks))
	for i, chunk := range chunks {
		if embedErrs[i] != nil {
			o.logger.Warn("chunk embedding failed",
				zap.String("id", chunk.ID),
				zap.String("source", source),
				zap.Error(embedErrs[i]))
			result.Failed = append(result.Failed, FailedChunk{ID: chunk.ID, Err: embedErrs[i]})
			continue
		}
		records = append(records, vectorstore.Record{
			ID:       chunk.ID,
			Vector:   vectors[i],
			Metadata: chunk.Metadata(),
			Document: chunk.Content,
		})
		stored = append(stored, chunk)
		result.IDs = append(result.IDs, chunk.ID)
	}
	if len(records) == 0 {
		return result, fmt.Errorf("%w: %s", ErrNoChunksStored, source)
	}

	collection := o.cfg.Store.Collection
	if err := o.store.EnsureCollection(ctx, collection, o.embedder.Dimensions()); err != nil {
		return result, fmt.Errorf("ensure collection %s: %w", collection, err)
	}
	if err := o.store.Upsert(ctx, collection, records); err != nil {
		return result, fmt.Errorf("upsert %d chunks: %w", len(records), err)
	}
	result.Stored = len(records)

	if o.keyword != nil {
		if err := o.keyword.IndexChunks(stored); err != nil {
			// Vector storage already succeeded; keyword lookup is
			// supplementary, so log and carry on.
			o.logger.Warn("keyword indexing failed", zap.String("source", source), zap.Error(err))
		}
	}

	o.logger.Info("ingested document",
		zap.String("source", source),
		zap.Int("submitted", result.Submitted),
		zap.Int("stored", result.Stored),
		zap.Int("failed", len(result.Failed)))
	return result, nil
}

// IngestPDF extracts page text from raw PDF bytes and ingests it.
func (o *Orchestrator) IngestPDF(ctx context.Context, raw []byte, source string) (*IngestResult, error) {
	text, err := document.ExtractPDF(raw)
	if err != nil {
		return nil, fmt.Errorf("extract pdf %s: %w", source, err)
	}
	return o.IngestText(ctx, text, source)
}

// embedAll fans chunk embedding out to a bounded worker pool. Each
// worker writes only to its job's slot, so no locking is needed.
func (o *Orchestrator) embedAll(ctx context.Context, chunks []document.Chunk) ([][]float32, []error) {
	vectors := make([][]float32, len(chunks))
	errs := make([]error, len(chunks))

	workers := o.cfg.Ingest.MaxWorkers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(chunks) {
		workers = len(chunks)
	}

	if o.progress != nil {
		o.progress.Start(len(chunks))
		defer o.progress.Finish()
	}

	jobs := make(chan int, workers*2)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				vec, err := o.embedder.Embed(ctx, chunks[i].Content)
				if err != nil {
					errs[i] = err
				} else {
					vectors[i] = vec
				}
				if o.progress != nil {
					o.progress.Increment()
				}
			}
		}()
	}
	for i := range chunks {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return vectors, errs
}

// Answer embeds the question, retrieves the closest chunks and asks the
// completion model to answer from that context only. A collection that
// was never created degrades to an empty context rather than an error.
func (o *Orchestrator) Answer(ctx context.Context, question string, topK int) (*Answer, error) {
	if topK <= 0 {
		topK = o.cfg.Search.DefaultTopK
	}
	queryVec, err := o.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	matches, err := o.store.Query(ctx, o.cfg.Store.Collection, queryVec, topK)
	if err != nil {
		if !errors.Is(err, vectorstore.ErrCollectionNotFound) {
			return nil, fmt.Errorf("query store: %w", err)
		}
		o.logger.Warn("collection missing, answering without context",
			zap.String("collection", o.cfg.Store.Collection))
		matches = nil
	}

	docs := make([]string, 0, len(matches))
	var sources []string
	seen := make(map[string]struct{})
	for _, m := range matches {
		docs = append(docs, m.Document)
		src, _ := m.Metadata["source"].(string)
		if src == "" {
			continue
		}
		if _, dup := seen[src]; dup {
			continue
		}
		seen[src] = struct{}{}
		sources = append(sources, src)
	}
	contextText := strings.Join(docs, "\n\n")

	prompt := fmt.Sprintf("Context: %s\n\nQuestion: %s\n\nAnswer only from context.\n\nAnswer:",
		contextText, question)
	text, err := o.complete.Complete(ctx, prompt, completion.Options{
		Temperature: o.cfg.Completion.AnswerTemperature,
		MaxTokens:   o.cfg.Completion.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("complete answer: %w", err)
	}
	return &Answer{Text: text, Context: contextText, Sources: sources}, nil
}

// Chat sends the input straight to the completion model without
// retrieval. The reply is not grounded in stored documents.
func (o *Orchestrator) Chat(ctx context.Context, input string) (*Answer, error) {
	prompt := fmt.Sprintf("Context: %s", input)
	text, err := o.complete.Complete(ctx, prompt, completion.Options{
		Temperature: o.cfg.Completion.ChatTemperature,
		MaxTokens:   o.cfg.Completion.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("complete chat: %w", err)
	}
	return &Answer{Text: text}, nil
}

// Count reports how many chunks the configured collection holds.
func (o *Orchestrator) Count(ctx context.Context) (int, error) {
	return o.store.Count(ctx, o.cfg.Store.Collection)
}
