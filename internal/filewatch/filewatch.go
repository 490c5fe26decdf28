// Package filewatch calls back once writes to a watched file settle.
package filewatch

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config describes one watch.
type Config struct {
	// Dir is watched rather than the file itself so atomic renames and
	// editor replacements are seen.
	Dir string
	// Match picks the events of interest by file path.
	Match func(path string) bool
	// Debounce is the quiet period after the last matching event.
	Debounce time.Duration
	// OnChange runs on a timer goroutine. It is not started after Stop.
	OnChange func()
	// Label names the watch in log lines.
	Label string
}

// Watcher runs a debounced callback for changes in a directory.
type Watcher struct {
	cfg     Config
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// New starts watching cfg.Dir.
func New(cfg Config) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := w.Add(cfg.Dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", cfg.Dir, err)
	}
	fw := &Watcher{cfg: cfg, watcher: w, done: make(chan struct{})}
	go fw.loop(w)
	return fw, nil
}

func (fw *Watcher) loop(w *fsnotify.Watcher) {
	var debounceTimer *time.Timer
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if fw.cfg.Match != nil && !fw.cfg.Match(event.Name) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(fw.cfg.Debounce, fw.fire)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Printf("ERROR: %s watcher error: %v", fw.cfg.Label, err)

		case <-fw.done:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return
		}
	}
}

func (fw *Watcher) fire() {
	if fw.Stopped() || fw.cfg.OnChange == nil {
		return
	}
	fw.cfg.OnChange()
}

// Stopped reports whether Stop has been called.
func (fw *Watcher) Stopped() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.watcher == nil
}

// Stop ends the watch. It reports whether this call stopped it, so it is
// safe to call more than once.
func (fw *Watcher) Stop() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.watcher == nil {
		return false
	}
	close(fw.done)
	fw.watcher.Close()
	fw.watcher = nil
	return true
}
