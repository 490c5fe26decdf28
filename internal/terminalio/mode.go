package terminalio

import (
	"fmt"
	"strings"
)

// OutputMode is the character encoding used toward a terminal.
type OutputMode int

const (
	OutputModeAuto  OutputMode = iota // Detect based on TERM
	OutputModeUTF8                    // UTF-8 output
	OutputModeCP437                   // Raw CP437 bytes
)

func (m OutputMode) String() string {
	switch m {
	case OutputModeUTF8:
		return "utf8"
	case OutputModeCP437:
		return "cp437"
	default:
		return "auto"
	}
}

// ParseOutputMode accepts "auto", "utf8" or "cp437".
func ParseOutputMode(s string) (OutputMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return OutputModeAuto, nil
	case "utf8", "utf-8":
		return OutputModeUTF8, nil
	case "cp437", "ibm437":
		return OutputModeCP437, nil
	}
	return OutputModeAuto, fmt.Errorf("unknown output mode %q", s)
}

// ResolveOutputMode picks the concrete mode for a terminal type. Explicit
// modes win; auto selects CP437 for BBS-era terminals and UTF-8 otherwise.
func ResolveOutputMode(term string, configured OutputMode) OutputMode {
	if configured != OutputModeAuto {
		return configured
	}
	term = strings.ToLower(term)
	switch {
	case term == "sync", term == "ansi", term == "scoansi", strings.HasPrefix(term, "vt100"):
		return OutputModeCP437
	default:
		return OutputModeUTF8
	}
}
