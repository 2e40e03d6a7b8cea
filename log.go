package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/muesli/termenv"
)

func getLogFilePath() (string, error) {
	dir, err := gap.NewScope(gap.User, "subvoice").CacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to find cache directory: %w", err)
	}
	return filepath.Join(dir, "subvoice.log"), nil
}

// setupLog sends log output to a file in the user cache directory. Debug
// output is enabled by SUBVOICE_DEBUG or --debug.
func setupLog() (func() error, error) {
	if os.Getenv("SUBVOICE_DEBUG") != "" {
		log.SetLevel(log.DebugLevel)
	}

	path, err := getLogFilePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec
		return nil, fmt.Errorf("unable to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("unable to open log file: %w", err)
	}

	log.SetOutput(f)
	log.SetColorProfile(termenv.Ascii)
	log.SetReportTimestamp(true)
	return f.Close, nil
}
