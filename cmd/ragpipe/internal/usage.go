package internal

import (
	"fmt"
	"os"
	"strings"
)

const Version = "0.3.1"

// PrintUsage writes the top-level help text to stderr.
func PrintUsage() {
	fmt.Fprintf(os.Stderr, `ragpipe - Document ingestion and retrieval-augmented answering

Version: %s

USAGE:
    ragpipe [global options] <command> [command options]

GLOBAL OPTIONS:
    -config <path>
        Path to config file (default: ~/.ragpipe/config/ragpipe.yaml)

    -debug
        Verbose, human-readable logging

    -v, -version
        Show version information

    -h, -help
        Show this help message

COMMANDS:
    init
        Create a default configuration file

    ingest
        Split, embed and store a document or a directory of documents

    query
        Answer a question from the stored documents

    chat
        Talk to the completion model without retrieval

    search
        Keyword search over ingested chunks

    stats
        Show collection statistics

EXAMPLES:
    # Create the default config, then edit it
    ragpipe init

    # Ingest one document
    ragpipe ingest notes/postgres.md

    # Ingest a directory of markdown and PDF files
    ragpipe ingest docs/

    # Ask a question grounded in the stored documents
    ragpipe query "how does vacuum reclaim space?"

    # Keyword lookup of exact terms
    ragpipe search "wal_level"

    # Non-grounded chat
    ragpipe chat "summarize the tradeoffs of LSM trees"

For detailed help on each command, use:
    ragpipe <command> -help
`, Version)
}

// StringList is a flag.Value that collects repeated string flags.
type StringList []string

func (s *StringList) String() string {
	return strings.Join(*s, ",")
}

func (s *StringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}
