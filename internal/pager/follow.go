package pager

import (
	"log"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/stlalpha/gviewer/internal/datasource"
	"github.com/stlalpha/gviewer/internal/filewatch"
)

// FollowDebounce collapses bursts of writes into one reload.
var FollowDebounce = 200 * time.Millisecond

// Follower watches a file and sends a ReloadMsg whenever it changes.
type Follower struct {
	w *filewatch.Watcher
}

// Follow starts watching filePath. Each debounced change calls open and
// passes the result to send, typically (*tea.Program).Send.
func Follow(filePath string, open func() (*datasource.Source, error), send func(tea.Msg)) (*Follower, error) {
	name := filepath.Base(filePath)
	w, err := filewatch.New(filewatch.Config{
		Dir:      filepath.Dir(filePath),
		Match:    func(p string) bool { return filepath.Base(p) == name },
		Debounce: FollowDebounce,
		Label:    "Follow",
		OnChange: func() {
			src, err := open()
			send(ReloadMsg{Source: src, Err: err})
		},
	})
	if err != nil {
		return nil, err
	}
	log.Printf("INFO: Following %s", filePath)
	return &Follower{w: w}, nil
}

// Stop stops following. It is safe to call more than once.
func (f *Follower) Stop() {
	f.w.Stop()
}
