// Package logging provides debug logging and log routing for gviewer.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

// DebugEnabled controls whether Debug() produces output.
// Set via -debug flag or DEBUG=1 environment variable.
var DebugEnabled bool

// Debug logs a message only when DebugEnabled is true.
func Debug(format string, args ...any) {
	if DebugEnabled {
		log.Printf("DEBUG: "+format, args...)
	}
}

// EnableFromEnv turns debug logging on when DEBUG=1 is set.
func EnableFromEnv() {
	if os.Getenv("DEBUG") == "1" {
		DebugEnabled = true
	}
}

// Setup routes the standard logger. With a path, logs are appended to that
// file; otherwise they go to stderr unless quiet is set, in which case they
// are discarded (full-screen commands must not write to the terminal).
// The returned closer is never nil.
func Setup(path string, quiet bool) (io.Closer, error) {
	if path == "" {
		if quiet {
			log.SetOutput(io.Discard)
		} else {
			log.SetOutput(os.Stderr)
		}
		return io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return io.NopCloser(nil), fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return io.NopCloser(nil), fmt.Errorf("open log file %s: %w", path, err)
	}
	if quiet {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stderr, f))
	}
	log.Printf("INFO: Logging to file: %s", path)
	return f, nil
}
