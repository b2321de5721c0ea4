package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/ragpipe/ragpipe/internal/config"
	"github.com/ragpipe/ragpipe/internal/pipeline"
)

// handleChat implements the chat subcommand
func handleChat(cfg *config.Config, logger *zap.Logger, args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    ragpipe chat "<text>"

DESCRIPTION:
    Send text straight to the completion model. No retrieval happens;
    the reply is not grounded in stored documents.

EXAMPLES:
    ragpipe chat "summarize the tradeoffs of LSM trees"
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}
	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: chat text is required\n\n")
		fs.Usage()
		os.Exit(1)
	}
	input := fs.Arg(0)

	rt, err := newRuntime(cfg, logger, nil)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer rt.Close()

	stop := pipeline.StartSpinner(pipeline.DefaultProgressEnabled(), "thinking")
	answer, err := rt.orch.Chat(context.Background(), input)
	stop()
	if err != nil {
		log.Fatalf("Chat failed: %v", err)
	}

	fmt.Println(strings.TrimSpace(answer.Text))
}
