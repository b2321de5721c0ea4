// Package vectorstore abstracts the persistent vector index behind a
// small capability interface so backends can be swapped or faked.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ragpipe/ragpipe/internal/config"
)

// ErrCollectionNotFound is returned when querying a collection that was
// never created. Callers treat it as an empty result plus a diagnostic,
// not a crash.
var ErrCollectionNotFound = errors.New("collection not found")

// Record is one chunk as persisted: id, vector and payload travel
// together so the parallel collections cannot diverge.
type Record struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
	Document string
}

// Match is one query result. Distance is a cosine dissimilarity score;
// lower means more similar.
type Match struct {
	ID       string
	Document string
	Metadata map[string]any
	Distance float64
}

// Store is the capability abstraction over a persistent vector index.
// The store never mutates ids or documents after upsert.
type Store interface {
	// EnsureCollection creates the named collection if it does not
	// exist. Creation is idempotent.
	EnsureCollection(ctx context.Context, name string, dims int) error

	// Upsert writes records into the collection, overwriting entries
	// with duplicate ids.
	Upsert(ctx context.Context, collection string, records []Record) error

	// Query returns at most k matches ordered by ascending distance.
	// A collection that does not exist yields ErrCollectionNotFound.
	Query(ctx context.Context, collection string, vector []float32, k int) ([]Match, error)

	// Count reports the number of stored records in the collection.
	Count(ctx context.Context, collection string) (int, error)

	Close() error
}

// New creates the configured store backend
func New(cfg *config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "qdrant":
		return NewQdrantStore(cfg.QdrantURL, cfg.QdrantAPIKey), nil
	case "local":
		dir, err := localDataDir(cfg)
		if err != nil {
			return nil, err
		}
		return NewLocalStore(dir)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}

func localDataDir(cfg *config.StoreConfig) (string, error) {
	if cfg.LocalPath != "" {
		return cfg.LocalPath, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".ragpipe", "data"), nil
}

// recordMetadata returns the record's metadata, substituting a minimal
// provenance tag when none was supplied.
func recordMetadata(rec Record) map[string]any {
	if len(rec.Metadata) == 0 {
		return map[string]any{"source": "unknown"}
	}
	return rec.Metadata
}
