package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/ragpipe/ragpipe/internal/config"
	"github.com/ragpipe/ragpipe/internal/vectorstore"
)

// handleStats implements the stats subcommand
func handleStats(cfg *config.Config, logger *zap.Logger, args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)

	var collection string
	fs.StringVar(&collection, "collection", "", "Override the collection to inspect")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    ragpipe stats [options]

DESCRIPTION:
    Show how many chunks the collection and the keyword index hold.
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	if collection != "" {
		cfg.Store.Collection = collection
	}

	rt, err := newRuntime(cfg, logger, nil)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer rt.Close()

	count, err := rt.orch.Count(context.Background())
	if err != nil {
		if !errors.Is(err, vectorstore.ErrCollectionNotFound) {
			log.Fatalf("Failed to count collection: %v", err)
		}
		count = 0
	}

	keywordCount, err := rt.keyword.DocCount()
	if err != nil {
		log.Fatalf("Failed to count keyword index: %v", err)
	}

	fmt.Printf("Collection:    %s (%s backend)\n", cfg.Store.Collection, cfg.Store.Backend)
	fmt.Printf("Chunks stored: %d\n", count)
	fmt.Printf("Keyword index: %d document(s)\n", keywordCount)
}
