package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ragpipe/ragpipe/internal/completion"
	"github.com/ragpipe/ragpipe/internal/config"
	"github.com/ragpipe/ragpipe/internal/document"
	"github.com/ragpipe/ragpipe/internal/vectorstore"
)

// fakeEmbedder returns a vector whose first component encodes the input
// length, which lets tests check chunk/vector alignment after fan-out.
type fakeEmbedder struct {
	mu     sync.Mutex
	calls  int
	failOn func(text string) bool
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.failOn != nil && f.failOn(text) {
		return nil, errors.New("embedding backend unavailable")
	}
	return []float32{float32(len(text)), 1}, nil
}

func (f *fakeEmbedder) Dimensions() int { return 2 }

type fakeStore struct {
	ensured    []string
	ensureDims int
	upserts    [][]vectorstore.Record
	matches    []vectorstore.Match
	queryErr   error
	count      int
}

func (f *fakeStore) EnsureCollection(_ context.Context, name string, dims int) error {
	f.ensured = append(f.ensured, name)
	f.ensureDims = dims
	return nil
}

func (f *fakeStore) Upsert(_ context.Context, _ string, records []vectorstore.Record) error {
	f.upserts = append(f.upserts, records)
	return nil
}

func (f *fakeStore) Query(_ context.Context, _ string, _ []float32, _ int) ([]vectorstore.Match, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.matches, nil
}

func (f *fakeStore) Count(_ context.Context, _ string) (int, error) { return f.count, nil }
func (f *fakeStore) Close() error                                   { return nil }

type fakeCompleter struct {
	prompt string
	opts   completion.Options
	reply  string
	err    error
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string, opts completion.Options) (string, error) {
	f.prompt = prompt
	f.opts = opts
	return f.reply, f.err
}

type fakeIndexer struct {
	indexed []document.Chunk
	err     error
}

func (f *fakeIndexer) IndexChunks(chunks []document.Chunk) error {
	f.indexed = append(f.indexed, chunks...)
	return f.err
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Store.Collection = "test_docs"
	cfg.Ingest.MaxWorkers = 3
	return cfg
}

func newTestOrchestrator(t *testing.T, embedder *fakeEmbedder, store *fakeStore, complete *fakeCompleter, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := New(testConfig(), embedder, store, complete, zap.NewNop(), opts...)
	require.NoError(t, err)
	return o
}

func TestIngestTextStoresAllChunks(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{}
	o := newTestOrchestrator(t, embedder, store, &fakeCompleter{})

	text := "First page about storage engines.\n-----\nSecond page about query planners."
	result, err := o.IngestText(context.Background(), text, "db-notes.md")
	require.NoError(t, err)

	assert.Equal(t, result.Submitted, result.Stored)
	assert.Empty(t, result.Failed)
	assert.Len(t, result.IDs, result.Stored)

	require.Equal(t, []string{"test_docs"}, store.ensured)
	assert.Equal(t, 2, store.ensureDims)
	require.Len(t, store.upserts, 1, "all chunks go up in a single batch")

	records := store.upserts[0]
	require.Len(t, records, result.Stored)
	for i, rec := range records {
		assert.Equal(t, result.IDs[i], rec.ID)
		assert.EqualValues(t, len(rec.Document), rec.Vector[0], "vector belongs to its own chunk")
		assert.Equal(t, "db-notes.md", rec.Metadata["source"])
	}
	assert.Equal(t, 1, records[0].Metadata["page_number"])
}

func TestIngestTextDropsOnlyFailedChunks(t *testing.T) {
	pages := make([]string, 5)
	for i := range pages {
		pages[i] = fmt.Sprintf("Page %d body with marker tag-%d inside.", i+1, i+1)
	}
	text := strings.Join(pages, "\n-----\n")

	embedder := &fakeEmbedder{failOn: func(text string) bool {
		return strings.Contains(text, "tag-3")
	}}
	store := &fakeStore{}
	o := newTestOrchestrator(t, embedder, store, &fakeCompleter{})

	result, err := o.IngestText(context.Background(), text, "multi.md")
	require.NoError(t, err)

	assert.Equal(t, 5, result.Submitted)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, 4, result.Stored)

	// Surviving records stay aligned with their own vectors even
	// though a middle slot dropped out.
	records := store.upserts[0]
	require.Len(t, records, 4)
	for _, rec := range records {
		assert.NotContains(t, rec.Document, "tag-3")
		assert.EqualValues(t, len(rec.Document), rec.Vector[0])
	}
}

func TestIngestTextAllEmbeddingsFail(t *testing.T) {
	embedder := &fakeEmbedder{failOn: func(string) bool { return true }}
	store := &fakeStore{}
	o := newTestOrchestrator(t, embedder, store, &fakeCompleter{})

	result, err := o.IngestText(context.Background(), "Only page.", "doomed.md")
	assert.ErrorIs(t, err, ErrNoChunksStored)
	assert.Equal(t, 1, result.Submitted)
	assert.Equal(t, 0, result.Stored)
	assert.Empty(t, store.ensured, "nothing touches the store when no chunk survives")
	assert.Empty(t, store.upserts)
}

func TestIngestTextEmptyDocument(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{}
	o := newTestOrchestrator(t, embedder, store, &fakeCompleter{})

	result, err := o.IngestText(context.Background(), "   \n-----\n\t", "empty.md")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Submitted)
	assert.Equal(t, 0, embedder.calls)
	assert.Empty(t, store.upserts)
}

func TestIngestTextFeedsKeywordIndex(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{}
	keyword := &fakeIndexer{}
	o := newTestOrchestrator(t, embedder, store, &fakeCompleter{}, WithKeywordIndex(keyword))

	result, err := o.IngestText(context.Background(), "A page worth indexing.", "kw.md")
	require.NoError(t, err)
	require.Len(t, keyword.indexed, result.Stored)
	assert.Equal(t, result.IDs[0], keyword.indexed[0].ID)
}

func TestIngestTextKeywordIndexFailureIsNotFatal(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{}
	keyword := &fakeIndexer{err: errors.New("index locked")}
	o := newTestOrchestrator(t, embedder, store, &fakeCompleter{}, WithKeywordIndex(keyword))

	result, err := o.IngestText(context.Background(), "A page worth indexing.", "kw.md")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stored)
}

func TestIngestPDFRejectsGarbage(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{}
	o := newTestOrchestrator(t, embedder, store, &fakeCompleter{})

	_, err := o.IngestPDF(context.Background(), []byte("not a pdf"), "bogus.pdf")
	require.Error(t, err)
	assert.Empty(t, store.upserts)
}

func TestAnswerBuildsGroundedPrompt(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{matches: []vectorstore.Match{
		{ID: "a", Document: "Postgres uses MVCC.", Metadata: map[string]any{"source": "pg.md"}, Distance: 0.1},
		{ID: "b", Document: "Vacuum reclaims dead tuples.", Metadata: map[string]any{"source": "pg.md"}, Distance: 0.2},
		{ID: "c", Document: "SQLite is embedded.", Metadata: map[string]any{"source": "sqlite.md"}, Distance: 0.3},
	}}
	complete := &fakeCompleter{reply: "MVCC."}
	o := newTestOrchestrator(t, embedder, store, complete)

	answer, err := o.Answer(context.Background(), "How does Postgres handle concurrency?", 3)
	require.NoError(t, err)

	assert.Equal(t, "MVCC.", answer.Text)
	assert.Equal(t, "Postgres uses MVCC.\n\nVacuum reclaims dead tuples.\n\nSQLite is embedded.", answer.Context)
	assert.Equal(t, []string{"pg.md", "sqlite.md"}, answer.Sources, "sources deduplicated in rank order")

	assert.True(t, strings.HasPrefix(complete.prompt, "Context: Postgres uses MVCC."))
	assert.Contains(t, complete.prompt, "Question: How does Postgres handle concurrency?")
	assert.True(t, strings.HasSuffix(complete.prompt, "Answer:"))
	assert.Equal(t, 0.1, complete.opts.Temperature)
	assert.Equal(t, 500, complete.opts.MaxTokens)
}

func TestAnswerMissingCollectionDegrades(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{queryErr: fmt.Errorf("%w: test_docs", vectorstore.ErrCollectionNotFound)}
	complete := &fakeCompleter{reply: "I do not have enough context."}
	o := newTestOrchestrator(t, embedder, store, complete)

	answer, err := o.Answer(context.Background(), "Anything stored?", 0)
	require.NoError(t, err)
	assert.Empty(t, answer.Context)
	assert.Empty(t, answer.Sources)
	assert.Equal(t, "I do not have enough context.", answer.Text)
	assert.True(t, strings.HasPrefix(complete.prompt, "Context: \n\n"))
}

func TestAnswerPropagatesOtherStoreErrors(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{queryErr: errors.New("connection refused")}
	o := newTestOrchestrator(t, embedder, store, &fakeCompleter{})

	_, err := o.Answer(context.Background(), "q", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestChatSkipsRetrieval(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{}
	complete := &fakeCompleter{reply: "hello"}
	o := newTestOrchestrator(t, embedder, store, complete)

	answer, err := o.Chat(context.Background(), "tell me a joke")
	require.NoError(t, err)

	assert.Equal(t, "hello", answer.Text)
	assert.Equal(t, "Context: tell me a joke", complete.prompt)
	assert.Equal(t, 0.7, complete.opts.Temperature)
	assert.Equal(t, 0, embedder.calls, "chat never embeds")
	assert.Empty(t, store.upserts)
}
