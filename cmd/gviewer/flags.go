package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/stlalpha/gviewer/internal/config"
	"github.com/stlalpha/gviewer/internal/datasource"
	"github.com/stlalpha/gviewer/internal/inputmode"
	"github.com/stlalpha/gviewer/internal/logging"
	"github.com/stlalpha/gviewer/internal/render"
)

// commonFlags are accepted by every viewing command. Values left unset
// on the command line fall back to the config file.
type commonFlags struct {
	fs         *flag.FlagSet
	configDir  *string
	mode       *string
	display    *string
	tab        *int
	wrap       *bool
	legacyUTF8 *bool
	member     *string
	debug      *bool
	logFile    *string
}

func defaultConfigDir() string {
	if dir := os.Getenv("GVIEWER_CONFIG"); dir != "" {
		return dir
	}
	return config.DefaultConfigPath()
}

func modeUsage() string {
	return "Input mode (" + strings.Join(inputmode.Names(), ", ") + " or an IANA charset name)"
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		fs:         fs,
		configDir:  fs.String("config", defaultConfigDir(), "Config directory"),
		mode:       fs.String("mode", "", modeUsage()),
		display:    fs.String("display", "", "Display mode (text, binary, hex)"),
		tab:        fs.Int("tab", 0, "Tab size"),
		wrap:       fs.Bool("wrap", false, "Wrap long lines"),
		legacyUTF8: fs.Bool("legacy-utf8", false, "Historical 4-byte UTF-8 lead byte"),
		member:     fs.String("member", "", "Archive member to read"),
		debug:      fs.Bool("debug", false, "Enable debug logging"),
		logFile:    fs.String("log", "", "Append logs to this file"),
	}
}

// setupLogging routes logs. Unless debugging, nothing reaches stderr so
// output and full-screen views stay clean.
func (c *commonFlags) setupLogging() (io.Closer, error) {
	if *c.debug {
		logging.DebugEnabled = true
	}
	logging.EnableFromEnv()
	return logging.Setup(*c.logFile, !logging.DebugEnabled)
}

// load reads the config file and applies the flags that were set.
func (c *commonFlags) load() (config.ViewerConfig, error) {
	cfg, err := config.LoadConfig(*c.configDir)
	if err != nil {
		return cfg, err
	}
	c.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.InputMode = *c.mode
		case "display":
			cfg.DisplayMode = *c.display
		case "tab":
			cfg.TabSize = *c.tab
		case "wrap":
			cfg.Wrap = *c.wrap
		case "legacy-utf8":
			if *c.legacyUTF8 {
				cfg.OutputEncoding = config.OutputLegacyUTF8
			} else {
				cfg.OutputEncoding = config.OutputUTF8
			}
		}
	})
	return cfg, nil
}

// renderOptions validates the flag-derived settings strictly: a bad value
// typed on the command line is an error, not a silent fallback.
func renderOptions(cfg config.ViewerConfig) (render.Options, error) {
	opts, err := cfg.RenderOptions()
	if err != nil {
		return opts, err
	}
	if cfg.TabSize < 1 {
		return opts, fmt.Errorf("tab size must be positive, got %d", cfg.TabSize)
	}
	return opts, nil
}

func (c *commonFlags) sourceOptions(cfg config.ViewerConfig) datasource.Options {
	return datasource.Options{StripSAUCE: cfg.StripSAUCE}
}

// open reads FILE, or the -member inside it.
func (c *commonFlags) open(ctx context.Context, filePath string, cfg config.ViewerConfig) (*datasource.Source, error) {
	if *c.member != "" {
		return datasource.OpenArchiveMember(ctx, filePath, *c.member, c.sourceOptions(cfg))
	}
	return datasource.Open(filePath, c.sourceOptions(cfg))
}
