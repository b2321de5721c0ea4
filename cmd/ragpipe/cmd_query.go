package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/ragpipe/ragpipe/internal/config"
	"github.com/ragpipe/ragpipe/internal/pipeline"
)

// handleQuery implements the query subcommand
func handleQuery(cfg *config.Config, logger *zap.Logger, args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)

	var topK int
	var collection string
	var jsonOutput, showContext bool

	fs.IntVar(&topK, "k", 0, "Number of chunks to retrieve (default: config default_top_k)")
	fs.StringVar(&collection, "collection", "", "Override the collection to query")
	fs.BoolVar(&jsonOutput, "json", false, "Output the answer as JSON")
	fs.BoolVar(&showContext, "show-context", false, "Print the retrieved context before the answer")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    ragpipe query [options] "<question>"

DESCRIPTION:
    Embed the question, retrieve the closest stored chunks and answer
    from that context only.

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    ragpipe query "how does vacuum reclaim space?"
    ragpipe query "deployment steps" -k 10
    ragpipe query "error budget policy" -json
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}
	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: question is required\n\n")
		fs.Usage()
		os.Exit(1)
	}
	question := fs.Arg(0)

	if collection != "" {
		cfg.Store.Collection = collection
	}

	rt, err := newRuntime(cfg, logger, nil)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer rt.Close()

	stop := pipeline.StartSpinner(pipeline.DefaultProgressEnabled(), "thinking")
	answer, err := rt.orch.Answer(context.Background(), question, topK)
	stop()
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	if jsonOutput {
		out := map[string]any{
			"question": question,
			"answer":   answer.Text,
			"sources":  answer.Sources,
		}
		if showContext {
			out["context"] = answer.Context
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			log.Fatalf("Failed to marshal answer: %v", err)
		}
		fmt.Println(string(data))
		return
	}

	if showContext && answer.Context != "" {
		fmt.Println("--- context ---")
		fmt.Println(answer.Context)
		fmt.Println("--- answer ---")
	}
	fmt.Println(strings.TrimSpace(answer.Text))
	if len(answer.Sources) > 0 {
		fmt.Printf("\nSources: %s\n", strings.Join(answer.Sources, ", "))
	}
}
