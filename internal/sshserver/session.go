package sshserver

import (
	"context"
	"fmt"
	"io"
	"log"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gliderlabs/ssh"
	"github.com/google/uuid"

	"github.com/stlalpha/gviewer/internal/browser"
	"github.com/stlalpha/gviewer/internal/datasource"
	"github.com/stlalpha/gviewer/internal/logging"
	"github.com/stlalpha/gviewer/internal/pager"
	"github.com/stlalpha/gviewer/internal/patternsel"
	"github.com/stlalpha/gviewer/internal/render"
	"github.com/stlalpha/gviewer/internal/terminalio"
)

// ViewerConfig describes what SSH sessions may see and how.
type ViewerConfig struct {
	Root          string
	Render        render.Options
	Source        datasource.Options
	CaseSensitive bool
	OutputMode    terminalio.OutputMode
	History       []string
	HistorySize   int
}

// ViewerHandler returns a session handler that runs the browser rooted at
// cfg.Root, or the pager when the client passes a file as the command
// ("ssh -t host docs/readme.txt").
func ViewerHandler(cfg ViewerConfig) func(ssh.Session) {
	return func(s ssh.Session) {
		id := uuid.New().String()
		ptyReq, winCh, isPty := s.Pty()
		log.Printf("INFO: Session %s: %s@%s connected (TERM=%q, command=%q)",
			id, s.User(), s.RemoteAddr(), ptyReq.Term, s.Command())

		if !isPty {
			fmt.Fprint(s, "gviewer needs a terminal; connect with ssh -t\r\n")
			s.Exit(1)
			log.Printf("INFO: Session %s: rejected, no PTY", id)
			return
		}

		mode := terminalio.ResolveOutputMode(ptyReq.Term, cfg.OutputMode)
		var out io.Writer = s
		if mode == terminalio.OutputModeCP437 {
			out = terminalio.NewSelectiveCP437Writer(s)
		}
		logging.Debug("Session %s: output mode %s", id, mode)

		model, err := cfg.model(s.Command(), ptyReq.Window)
		if err != nil {
			fmt.Fprintf(s, "gviewer: %v\r\n", err)
			s.Exit(1)
			log.Printf("WARN: Session %s: %v", id, err)
			return
		}

		ctx, cancel := context.WithCancel(s.Context())
		defer cancel()

		p := tea.NewProgram(model,
			tea.WithContext(ctx),
			tea.WithInput(s),
			tea.WithOutput(out),
			tea.WithEnvironment(append(s.Environ(), "TERM="+ptyReq.Term)),
			tea.WithAltScreen(),
			tea.WithoutSignalHandler(),
		)

		go func() {
			for {
				select {
				case win, ok := <-winCh:
					if !ok {
						return
					}
					p.Send(tea.WindowSizeMsg{Width: win.Width, Height: win.Height})
				case <-ctx.Done():
					return
				}
			}
		}()

		final, err := p.Run()
		if err != nil && ctx.Err() == nil {
			log.Printf("ERROR: Session %s: %v", id, err)
		}
		if b, ok := final.(browser.Model); ok {
			if sel := b.Selected(); len(sel) > 0 {
				log.Printf("INFO: Session %s: %d file(s) selected", id, len(sel))
			}
		}
		s.Exit(0)
		log.Printf("INFO: Session %s: disconnected", id)
	}
}

// model builds the program for a session: the pager for a file command,
// the browser otherwise. Paths are confined to the root.
func (cfg ViewerConfig) model(command []string, win ssh.Window) (tea.Model, error) {
	if len(command) == 0 {
		return browser.New(browser.Options{
			Root:          cfg.Root,
			Render:        cfg.Render,
			Source:        cfg.Source,
			CaseSensitive: cfg.CaseSensitive,
			History:       patternsel.NewHistory(cfg.HistorySize, cfg.History),
		})
	}

	filePath, err := browser.ResolvePath(cfg.Root, command[0])
	if err != nil {
		return nil, err
	}
	var src *datasource.Source
	if len(command) > 1 {
		src, err = datasource.OpenArchiveMember(context.Background(), filePath, command[1], cfg.Source)
	} else {
		src, err = datasource.Open(filePath, cfg.Source)
	}
	if err != nil {
		return nil, err
	}
	return pager.New(src, cfg.Render).WithSize(win.Width, win.Height), nil
}
