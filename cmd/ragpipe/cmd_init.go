package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ragpipe/ragpipe/cmd/ragpipe/internal"
	"github.com/ragpipe/ragpipe/internal/config"
)

// handleInit implements the init subcommand
func handleInit(configPath string, args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    ragpipe init

DESCRIPTION:
    Write a commented default configuration file. Does nothing if the
    file already exists. Honors the global -config flag.
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	path := configPath
	if path == "" {
		defaultPath, err := internal.DefaultConfigPath()
		if err != nil {
			log.Fatalf("Failed to determine config path: %v", err)
		}
		path = defaultPath
	}

	created, err := config.WriteDefaultTemplate(path)
	if err != nil {
		log.Fatalf("Failed to write config template: %v", err)
	}
	if created {
		fmt.Printf("Created default config at %s\n", path)
		fmt.Println("Edit it for your environment, then run `ragpipe ingest <path>`.")
	} else {
		fmt.Printf("Config already exists at %s, leaving it untouched\n", path)
	}
}
