package internal

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// NewLogger builds a zap logger that writes JSON records to a per-run
// file under ~/.ragpipe/logs. With debug set, human-readable output
// also goes to stderr at debug level.
func NewLogger(subcommand string, debug bool) (*zap.Logger, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	logDir := filepath.Join(homeDir, ".ragpipe", "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}

	// A short run hash keeps concurrent invocations from sharing a file.
	hash := sha1.Sum([]byte(fmt.Sprintf("%s-%d", subcommand, os.Getpid())))
	suffix := hex.EncodeToString(hash[:])[:8]
	timestamp := time.Now().Format("20060102-150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("ragpipe-%s-%s-%s.log", subcommand, timestamp, suffix))

	if debug {
		cfg := zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stderr", logPath}
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{logPath}
	return cfg.Build()
}
