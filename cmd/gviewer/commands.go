package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gliderlabs/ssh"
	"golang.org/x/term"

	"github.com/stlalpha/gviewer/internal/browser"
	"github.com/stlalpha/gviewer/internal/config"
	"github.com/stlalpha/gviewer/internal/cp437"
	"github.com/stlalpha/gviewer/internal/datasource"
	"github.com/stlalpha/gviewer/internal/logging"
	"github.com/stlalpha/gviewer/internal/pager"
	"github.com/stlalpha/gviewer/internal/patternsel"
	"github.com/stlalpha/gviewer/internal/render"
	"github.com/stlalpha/gviewer/internal/sauce"
	"github.com/stlalpha/gviewer/internal/sshauth"
	"github.com/stlalpha/gviewer/internal/sshserver"
	"github.com/stlalpha/gviewer/internal/telnetserver"
	"github.com/stlalpha/gviewer/internal/terminalio"
)

// cmdCat renders a file to stdout.
func cmdCat(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("cat", flag.ContinueOnError)
	common := addCommonFlags(fs)
	width := fs.Int("width", 0, "Wrap width (default: terminal width)")
	output := fs.String("output", "utf8", "Output encoding: utf8 or cp437")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("cat: exactly one FILE required")
	}
	closer, err := common.setupLogging()
	if err != nil {
		return err
	}
	defer closer.Close()

	outMode, err := terminalio.ParseOutputMode(*output)
	if err != nil {
		return err
	}
	cfg, err := common.load()
	if err != nil {
		return err
	}
	opts, err := renderOptions(cfg)
	if err != nil {
		return err
	}
	opts.Width = *width
	if opts.Width == 0 {
		opts.Width = terminalWidth(stdout)
	}

	src, err := common.open(context.Background(), fs.Arg(0), cfg)
	if err != nil {
		return err
	}
	lines := render.Render(src.Bytes(), opts)
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	return terminalio.WriteLinesLF(stdout, texts, outMode)
}

// terminalWidth returns the width of w when it is a terminal, else 0.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// cmdView runs the full-screen pager.
func cmdView(args []string) error {
	fs := flag.NewFlagSet("view", flag.ContinueOnError)
	common := addCommonFlags(fs)
	follow := fs.Bool("follow", false, "Reload when the file changes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("view: exactly one FILE required")
	}
	closer, err := common.setupLogging()
	if err != nil {
		return err
	}
	defer closer.Close()

	cfg, err := common.load()
	if err != nil {
		return err
	}
	opts, err := renderOptions(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	filePath := fs.Arg(0)
	src, err := common.open(ctx, filePath, cfg)
	if err != nil {
		return err
	}

	p := tea.NewProgram(pager.New(src, opts), tea.WithAltScreen())
	if *follow {
		f, err := pager.Follow(filePath, func() (*datasource.Source, error) {
			return common.open(ctx, filePath, cfg)
		}, p.Send)
		if err != nil {
			return err
		}
		defer f.Stop()
	}
	_, err = p.Run()
	return err
}

// cmdBrowse runs the directory browser and prints the selected files.
func cmdBrowse(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("browse", flag.ContinueOnError)
	common := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	root := "."
	if fs.NArg() > 0 {
		root = fs.Arg(0)
	}
	closer, err := common.setupLogging()
	if err != nil {
		return err
	}
	defer closer.Close()

	cfg, err := common.load()
	if err != nil {
		return err
	}
	opts, err := renderOptions(cfg)
	if err != nil {
		return err
	}

	m, err := browser.New(browser.Options{
		Root:          root,
		Render:        opts,
		Source:        common.sourceOptions(cfg),
		CaseSensitive: cfg.CaseSensitive,
		History:       patternsel.NewHistory(cfg.HistorySize, cfg.PatternHistory),
	})
	if err != nil {
		return err
	}
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	b, ok := final.(browser.Model)
	if !ok {
		return nil
	}
	if err := saveHistory(*common.configDir, cfg, b.History()); err != nil {
		log.Printf("WARN: %v", err)
	}
	for _, p := range b.Selected() {
		fmt.Fprintln(stdout, p)
	}
	return nil
}

// saveHistory persists the pattern history when it changed.
func saveHistory(configDir string, cfg config.ViewerConfig, history []string) error {
	if strings.Join(history, "\x00") == strings.Join(cfg.PatternHistory, "\x00") {
		return nil
	}
	// Reload so flag overrides are not written back.
	onDisk, err := config.LoadConfig(configDir)
	if err != nil {
		return fmt.Errorf("pattern history not saved: %w", err)
	}
	onDisk.PatternHistory = history
	return config.SaveConfig(configDir, onDisk)
}

// cmdSelect applies a pattern to the files of a directory and prints the
// resulting selection.
func cmdSelect(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("select", flag.ContinueOnError)
	configDir := fs.String("config", defaultConfigDir(), "Config directory")
	unselect := fs.Bool("u", false, "Start with every file selected and unselect matches")
	invert := fs.Bool("i", false, "Invert the final selection")
	caseSensitive := fs.Bool("case", false, "Match case-sensitively")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		return errors.New("select: PATTERN [DIR] required")
	}
	pattern := fs.Arg(0)
	dir := "."
	if fs.NArg() == 2 {
		dir = fs.Arg(1)
	}
	logging.EnableFromEnv()
	closer, err := logging.Setup("", !logging.DebugEnabled)
	if err != nil {
		return err
	}
	defer closer.Close()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "case" {
			cfg.CaseSensitive = *caseSensitive
		}
	})

	names, err := fileNames(dir)
	if err != nil {
		return err
	}
	sel := patternsel.NewSelection()
	mode := patternsel.Select
	if *unselect {
		mode = patternsel.Unselect
		sel.Invert(names)
	}
	if _, err := sel.Apply(names, pattern, mode, cfg.CaseSensitive); err != nil {
		return err
	}
	if *invert {
		sel.Invert(names)
	}

	history := patternsel.NewHistory(cfg.HistorySize, cfg.PatternHistory)
	history.Add(pattern)
	if err := saveHistory(*configDir, cfg, history.Items()); err != nil {
		log.Printf("WARN: %v", err)
	}

	for _, name := range sel.Names() {
		fmt.Fprintln(stdout, filepath.Join(dir, name))
	}
	return nil
}

func fileNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// cmdTable prints the CP437 table as a 16x16 grid, or one entry per line
// with -list.
func cmdTable(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("table", flag.ContinueOnError)
	list := fs.Bool("list", false, "One line per byte with code points")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var b strings.Builder
	if *list {
		for i, r := range cp437.Table {
			fmt.Fprintf(&b, "0x%02X U+%04X %s\n", i, r, cp437.AppendRune(nil, uint32(r)))
		}
	} else {
		b.WriteString("   ")
		for col := 0; col < 16; col++ {
			fmt.Fprintf(&b, " %X", col)
		}
		b.WriteByte('\n')
		for row := 0; row < 16; row++ {
			fmt.Fprintf(&b, "%X_ ", row)
			for col := 0; col < 16; col++ {
				b.WriteByte(' ')
				b.WriteString(cp437.DecodeString([]byte{byte(row*16 + col)}))
			}
			b.WriteByte('\n')
		}
	}
	_, err := io.WriteString(stdout, b.String())
	return err
}

// cmdSauce prints the SAUCE record of a file.
func cmdSauce(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("sauce", flag.ContinueOnError)
	common := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("sauce: exactly one FILE required")
	}
	closer, err := common.setupLogging()
	if err != nil {
		return err
	}
	defer closer.Close()

	src, err := common.open(context.Background(), fs.Arg(0), config.DefaultConfig())
	if err != nil {
		return err
	}
	rec := src.Sauce()
	if rec == nil {
		return fmt.Errorf("%s: no SAUCE record", src.Name())
	}
	writeSauce(stdout, rec)
	return nil
}

func writeSauce(w io.Writer, rec *sauce.Record) {
	fmt.Fprintf(w, "Title:    %s\n", rec.Title)
	fmt.Fprintf(w, "Author:   %s\n", rec.Author)
	fmt.Fprintf(w, "Group:    %s\n", rec.Group)
	if t, ok := rec.Time(); ok {
		fmt.Fprintf(w, "Date:     %s\n", t.Format("2006-01-02"))
	}
	fmt.Fprintf(w, "Size:     %d\n", rec.FileSize)
	fmt.Fprintf(w, "Type:     %d/%d\n", rec.DataType, rec.FileType)
	if width := rec.Width(); width > 0 {
		fmt.Fprintf(w, "Width:    %d\n", width)
	}
	if rec.TInfoS != "" {
		fmt.Fprintf(w, "Font:     %s\n", rec.TInfoS)
	}
	for _, c := range rec.Comments {
		fmt.Fprintf(w, "Comment:  %s\n", c)
	}
}

// cmdServe runs the SSH viewer, and the telnet viewer when enabled, until
// SIGINT or SIGTERM.
func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configDir := fs.String("config", defaultConfigDir(), "Config directory")
	debug := fs.Bool("debug", false, "Enable debug logging")
	logFile := fs.String("log", "", "Append logs to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *debug {
		logging.DebugEnabled = true
	}
	logging.EnableFromEnv()
	closer, err := logging.Setup(*logFile, false)
	if err != nil {
		return err
	}
	defer closer.Close()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		return err
	}
	viewer, err := viewerConfig(cfg)
	if err != nil {
		return err
	}

	var mu sync.RWMutex
	handler := func(s ssh.Session) {
		mu.RLock()
		v := viewer
		mu.RUnlock()
		sshserver.ViewerHandler(v)(s)
	}

	if w, err := config.NewWatcher(*configDir, func(next config.ViewerConfig) {
		v, err := viewerConfig(next)
		if err != nil {
			log.Printf("ERROR: Reloaded config rejected: %v", err)
			return
		}
		mu.Lock()
		viewer = v
		mu.Unlock()
		log.Printf("INFO: Viewer settings reloaded; new sessions use them")
	}); err != nil {
		log.Printf("WARN: Config auto-reload disabled: %v", err)
	} else {
		defer w.Stop()
	}

	hostKey := cfg.SSH.HostKeyPath
	if !filepath.IsAbs(hostKey) {
		hostKey = filepath.Join(*configDir, hostKey)
	}
	passwordHandler, publicKeyHandler, err := authHandlers(cfg.SSH, *configDir)
	if err != nil {
		return err
	}
	srv, err := sshserver.NewServer(sshserver.Config{
		HostKeyPath:         hostKey,
		Host:                cfg.SSH.Host,
		Port:                cfg.SSH.Port,
		LegacySSHAlgorithms: cfg.SSH.LegacyAlgorithms,
		SessionHandler:      handler,
		PasswordHandler:     passwordHandler,
		PublicKeyHandler:    publicKeyHandler,
		AllowAnonymous:      cfg.SSH.AllowAnonymous,
	})
	if err != nil {
		return err
	}

	var telnetSrv *telnetserver.Server
	if cfg.Telnet.Enabled {
		telnetSrv, err = telnetserver.NewServer(telnetserver.Config{
			Host:           cfg.Telnet.Host,
			Port:           cfg.Telnet.Port,
			SessionHandler: handler,
		})
		if err != nil {
			return err
		}
		if !isLoopback(cfg.Telnet.Host) {
			log.Printf("WARN: Telnet has no authentication and listens on %s", cfg.Telnet.Host)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		log.Printf("INFO: Shutting down viewer services")
		srv.Close()
		if telnetSrv != nil {
			telnetSrv.Close()
		}
	}()

	if telnetSrv != nil {
		go func() {
			if err := telnetSrv.ListenAndServe(); err != nil && !errors.Is(err, telnetserver.ErrServerClosed) {
				log.Printf("ERROR: Telnet viewer stopped: %v", err)
			}
		}()
	}

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		return err
	}
	return nil
}

// authHandlers builds the SSH credential checks from the config. With
// allowAnonymous set and no credentials configured both handlers are nil.
func authHandlers(cfg config.SSHConfig, configDir string) (ssh.PasswordHandler, ssh.PublicKeyHandler, error) {
	keys := cfg.AuthorizedKeysPath
	if keys != "" && !filepath.IsAbs(keys) {
		keys = filepath.Join(configDir, keys)
	}
	auth, err := sshauth.New(sshauth.Config{
		Users:              cfg.Users,
		AuthorizedKeysPath: keys,
		MaxFailedAttempts:  cfg.MaxFailedAttempts,
		LockoutDuration:    time.Duration(cfg.LockoutSeconds) * time.Second,
	})
	if errors.Is(err, sshauth.ErrNoCredentials) && cfg.AllowAnonymous {
		log.Printf("WARN: SSH viewer accepts anonymous clients")
		return nil, nil, nil
	}
	if errors.Is(err, sshauth.ErrNoCredentials) {
		return nil, nil, fmt.Errorf("%w: add a user with \"gviewer passwd\", set ssh.authorizedKeysPath or set ssh.allowAnonymous", err)
	}
	if err != nil {
		return nil, nil, err
	}
	return auth.PasswordHandler(), auth.PublicKeyHandler(), nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// cmdPasswd sets or removes an SSH viewer user in the config file. The
// password is read from the terminal without echo, or as one line from a
// non-terminal stdin.
func cmdPasswd(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("passwd", flag.ContinueOnError)
	configDir := fs.String("config", defaultConfigDir(), "Config directory")
	remove := fs.Bool("delete", false, "Remove the user")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: gviewer passwd [-config DIR] [-delete] USER")
	}
	user := fs.Arg(0)

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		return err
	}
	if *remove {
		if _, ok := cfg.SSH.Users[user]; !ok {
			return fmt.Errorf("no SSH user %q", user)
		}
		delete(cfg.SSH.Users, user)
		if err := config.SaveConfig(*configDir, cfg); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Removed SSH user %s\n", user)
		return nil
	}

	password, err := readPassword(stdin, stdout)
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("empty password")
	}
	hash, err := sshauth.HashPassword(password)
	if err != nil {
		return err
	}
	if cfg.SSH.Users == nil {
		cfg.SSH.Users = make(map[string]string)
	}
	cfg.SSH.Users[user] = hash
	if err := config.SaveConfig(*configDir, cfg); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Set password for SSH user %s\n", user)
	return nil
}

func readPassword(stdin io.Reader, stdout io.Writer) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(stdout, "Password: ")
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(stdout)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// viewerConfig turns the file config into SSH session settings.
func viewerConfig(cfg config.ViewerConfig) (sshserver.ViewerConfig, error) {
	opts, err := cfg.RenderOptions()
	if err != nil {
		return sshserver.ViewerConfig{}, err
	}
	outMode, err := terminalio.ParseOutputMode(cfg.SSH.OutputMode)
	if err != nil {
		return sshserver.ViewerConfig{}, err
	}
	return sshserver.ViewerConfig{
		Root:          cfg.SSH.Root,
		Render:        opts,
		Source:        datasource.Options{StripSAUCE: cfg.StripSAUCE},
		CaseSensitive: cfg.CaseSensitive,
		OutputMode:    outMode,
		History:       cfg.PatternHistory,
		HistorySize:   cfg.HistorySize,
	}, nil
}
