package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ragpipe/ragpipe/internal/config"
	"github.com/ragpipe/ragpipe/internal/textindex"
)

// handleSearch implements the search subcommand
func handleSearch(cfg *config.Config, logger *zap.Logger, args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)

	var topK int
	var jsonOutput bool

	fs.IntVar(&topK, "k", 10, "Number of results to return")
	fs.BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    ragpipe search [options] "<terms>"

DESCRIPTION:
    Keyword search over ingested chunks. Complements query: exact
    identifiers and rare terms that embeddings blur stay findable here.

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    ragpipe search "wal_level"
    ragpipe search "invoice 2024-117" -k 3
    ragpipe search "checksum mismatch" -json
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}
	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: search terms are required\n\n")
		fs.Usage()
		os.Exit(1)
	}
	query := fs.Arg(0)

	dataDir, err := cfg.DataDir()
	if err != nil {
		log.Fatalf("Failed to determine data directory: %v", err)
	}
	ix, err := textindex.Open(filepath.Join(dataDir, "textindex"))
	if err != nil {
		log.Fatalf("Failed to open keyword index: %v", err)
	}
	defer ix.Close()

	hits, err := ix.Search(query, topK)
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}
	logger.Info("keyword search", zap.String("query", query), zap.Int("hits", len(hits)))

	if jsonOutput {
		out := map[string]any{
			"query":   query,
			"count":   len(hits),
			"results": hits,
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			log.Fatalf("Failed to marshal results: %v", err)
		}
		fmt.Println(string(data))
		return
	}

	if len(hits) == 0 {
		fmt.Println("No results found")
		return
	}
	fmt.Printf("Found %d result(s) for: %s\n\n", len(hits), query)
	for i, hit := range hits {
		fmt.Printf("%d. %s", i+1, hit.Source)
		if hit.Page > 0 {
			fmt.Printf(" (page %d)", hit.Page)
		}
		fmt.Printf("  score %.3f\n", hit.Score)
		if hit.Fragment != "" {
			fmt.Printf("   %s\n", hit.Fragment)
		}
		fmt.Println()
	}
}
