package main

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ragpipe/ragpipe/internal/completion"
	"github.com/ragpipe/ragpipe/internal/config"
	"github.com/ragpipe/ragpipe/internal/embedding"
	"github.com/ragpipe/ragpipe/internal/pipeline"
	"github.com/ragpipe/ragpipe/internal/textindex"
	"github.com/ragpipe/ragpipe/internal/vectorstore"
)

// runtime wires the configured backends into an orchestrator and owns
// their lifetimes for the duration of one subcommand.
type runtime struct {
	cfg     *config.Config
	store   vectorstore.Store
	keyword *textindex.Index
	orch    *pipeline.Orchestrator
}

func newRuntime(cfg *config.Config, logger *zap.Logger, progress pipeline.ProgressReporter) (*runtime, error) {
	embedder, err := embedding.New(&cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	store, err := vectorstore.New(&cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	completer, err := completion.NewClient(&cfg.Completion)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create completion client: %w", err)
	}

	keyword, err := openKeywordIndex(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	opts := []pipeline.Option{pipeline.WithKeywordIndex(keyword)}
	if progress != nil {
		opts = append(opts, pipeline.WithProgress(progress))
	}
	orch, err := pipeline.New(cfg, embedder, store, completer, logger, opts...)
	if err != nil {
		keyword.Close()
		store.Close()
		return nil, err
	}

	return &runtime{cfg: cfg, store: store, keyword: keyword, orch: orch}, nil
}

func openKeywordIndex(cfg *config.Config) (*textindex.Index, error) {
	dataDir, err := cfg.DataDir()
	if err != nil {
		return nil, err
	}
	keyword, err := textindex.Open(filepath.Join(dataDir, "textindex"))
	if err != nil {
		return nil, fmt.Errorf("open keyword index: %w", err)
	}
	return keyword, nil
}

func (r *runtime) Close() {
	if r.keyword != nil {
		r.keyword.Close()
	}
	if r.store != nil {
		r.store.Close()
	}
}
