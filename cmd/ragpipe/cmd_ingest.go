package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	cliinternal "github.com/ragpipe/ragpipe/cmd/ragpipe/internal"
	"github.com/ragpipe/ragpipe/internal/config"
	"github.com/ragpipe/ragpipe/internal/pipeline"
)

// handleIngest implements the ingest subcommand
func handleIngest(cfg *config.Config, logger *zap.Logger, args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)

	var source, collection string
	var include, exclude cliinternal.StringList
	var noProgress bool

	fs.StringVar(&source, "source", "", "Override the source tag stored with each chunk (default: file path)")
	fs.StringVar(&collection, "collection", "", "Override the target collection")
	fs.Var(&include, "include", "Glob pattern for directory ingestion (repeatable)")
	fs.Var(&exclude, "exclude", "Glob pattern to skip during directory ingestion (repeatable)")
	fs.BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    ragpipe ingest [options] <file-or-directory>

DESCRIPTION:
    Split documents into pages and chunks, embed every chunk and store
    the results. Accepts text, markdown and PDF files. Directories are
    walked recursively; include/exclude globs filter relative paths.

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    # Ingest a single file
    ragpipe ingest notes/postgres.md

    # Ingest a directory, markdown only
    ragpipe ingest docs/ -include "**/*.md"

    # Skip generated files
    ragpipe ingest docs/ -exclude "**/build/**"

    # Tag chunks with a logical source name
    ragpipe ingest export.pdf -source "q3-report"
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}
	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: path to ingest is required\n\n")
		fs.Usage()
		os.Exit(1)
	}
	path := fs.Arg(0)

	if collection != "" {
		cfg.Store.Collection = collection
	}
	if len(include) > 0 {
		cfg.Ingest.Include = include
	}
	if len(exclude) > 0 {
		cfg.Ingest.Exclude = exclude
	}

	progress := pipeline.NewIngestProgress(!noProgress && pipeline.DefaultProgressEnabled())
	rt, err := newRuntime(cfg, logger, progress)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer rt.Close()

	info, err := os.Stat(path)
	if err != nil {
		log.Fatalf("Failed to stat %s: %v", path, err)
	}

	ctx := context.Background()
	var totalStored, totalFailed, files int
	if info.IsDir() {
		err = filepath.WalkDir(path, func(p string, d os.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				return nil
			}
			rel, relErr := filepath.Rel(path, p)
			if relErr != nil {
				rel = p
			}
			rel = filepath.ToSlash(rel)
			if !shouldIngest(rel, cfg.Ingest.Include, cfg.Ingest.Exclude) {
				return nil
			}
			result, ingestErr := ingestFile(ctx, rt.orch, p, source)
			if ingestErr != nil {
				logger.Warn("skipping file", zap.String("path", p), zap.Error(ingestErr))
				fmt.Fprintf(os.Stderr, "Warning: %s: %v\n", p, ingestErr)
				return nil
			}
			files++
			totalStored += result.Stored
			totalFailed += len(result.Failed)
			return nil
		})
		if err != nil {
			log.Fatalf("Failed to walk %s: %v", path, err)
		}
	} else {
		result, ingestErr := ingestFile(ctx, rt.orch, path, source)
		if ingestErr != nil {
			log.Fatalf("Failed to ingest %s: %v", path, ingestErr)
		}
		files = 1
		totalStored = result.Stored
		totalFailed = len(result.Failed)
	}

	fmt.Printf("Ingested %d file(s): %d chunk(s) stored", files, totalStored)
	if totalFailed > 0 {
		fmt.Printf(", %d chunk(s) failed to embed", totalFailed)
	}
	fmt.Println()
}

// ingestFile routes a file to PDF extraction or plain-text ingestion
// based on its extension.
func ingestFile(ctx context.Context, orch *pipeline.Orchestrator, path, sourceOverride string) (*pipeline.IngestResult, error) {
	source := sourceOverride
	if source == "" {
		source = filepath.ToSlash(path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return orch.IngestPDF(ctx, raw, source)
	}
	return orch.IngestText(ctx, string(raw), source)
}

// shouldIngest applies include/exclude globs against the slash-form
// relative path, matching basenames as well so "*.md" behaves naturally.
func shouldIngest(rel string, include, exclude []string) bool {
	base := filepath.Base(rel)
	for _, pattern := range exclude {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return false
		}
		if matched, _ := doublestar.Match(pattern, base); matched {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, pattern := range include {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
		if matched, _ := doublestar.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
