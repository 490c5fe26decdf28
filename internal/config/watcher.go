package config

import (
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/stlalpha/gviewer/internal/filewatch"
)

// DebounceDuration collapses rapid successive writes into one reload.
var DebounceDuration = 500 * time.Millisecond

// Watcher reloads config.json when it changes on disk and hands the new
// configuration to a callback.
type Watcher struct {
	w          *filewatch.Watcher
	configPath string
	onChange   func(ViewerConfig)
}

// NewWatcher starts watching configPath. onChange runs on a timer
// goroutine after each debounced change that parses successfully.
func NewWatcher(configPath string, onChange func(ViewerConfig)) (*Watcher, error) {
	cw := &Watcher{configPath: configPath, onChange: onChange}
	w, err := filewatch.New(filewatch.Config{
		Dir:      configPath,
		Match:    func(p string) bool { return strings.EqualFold(filepath.Base(p), FileName) },
		Debounce: DebounceDuration,
		Label:    "Config file",
		OnChange: cw.reload,
	})
	if err != nil {
		return nil, err
	}
	cw.w = w
	log.Printf("INFO: Watching %s for config changes (auto-reload enabled)", configPath)
	return cw, nil
}

// Stop stops the watcher. It is safe to call more than once.
func (cw *Watcher) Stop() {
	if cw.w.Stop() {
		log.Printf("INFO: Configuration file watcher stopped")
	}
}

func (cw *Watcher) reload() {
	log.Printf("INFO: Config file change detected: %s", FileName)
	cfg, err := LoadConfig(cw.configPath)
	if err != nil {
		log.Printf("ERROR: Failed to reload config: %v (keeping current settings)", err)
		return
	}
	if cw.w.Stopped() || cw.onChange == nil {
		return
	}
	cw.onChange(cfg)
}
