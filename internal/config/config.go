package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/stlalpha/gviewer/internal/inputmode"
	"github.com/stlalpha/gviewer/internal/patternsel"
	"github.com/stlalpha/gviewer/internal/render"
)

// FileName is the viewer configuration file inside the config directory.
const FileName = "config.json"

// Output encodings for rendered text.
const (
	OutputUTF8       = "utf8"
	OutputLegacyUTF8 = "legacy-utf8"
)

// SSHConfig holds settings for the SSH viewing service.
type SSHConfig struct {
	Host             string `json:"host"`
	Port             int    `json:"port"`
	HostKeyPath      string `json:"hostKeyPath"`
	Root             string `json:"root"`
	LegacyAlgorithms bool   `json:"legacyAlgorithms"`
	// OutputMode is "auto", "utf8" or "cp437". In auto mode retro
	// terminal types (ansi, sync, vt100) get CP437 output.
	OutputMode string `json:"outputMode"`

	// Users maps user names to bcrypt hashes (see "gviewer passwd").
	Users              map[string]string `json:"users,omitempty"`
	AuthorizedKeysPath string            `json:"authorizedKeysPath,omitempty"`
	MaxFailedAttempts  int               `json:"maxFailedAttempts"`
	LockoutSeconds     int               `json:"lockoutSeconds"`
	// AllowAnonymous serves clients without any credentials.
	AllowAnonymous bool `json:"allowAnonymous"`
}

// TelnetConfig enables a plain telnet listener for BBS terminal programs.
// Telnet sessions share the SSH root and output mode.
type TelnetConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

// ViewerConfig is the persisted viewer configuration.
type ViewerConfig struct {
	InputMode      string       `json:"inputMode"`
	DisplayMode    string       `json:"displayMode"`
	TabSize        int          `json:"tabSize"`
	Wrap           bool         `json:"wrap"`
	BinaryWidth    int          `json:"binaryWidth"`
	HexWidth       int          `json:"hexWidth"`
	OutputEncoding string       `json:"outputEncoding"`
	StripSAUCE     bool         `json:"stripSauce"`
	CaseSensitive  bool         `json:"caseSensitive"`
	PatternHistory []string     `json:"patternHistory"`
	HistorySize    int          `json:"historySize"`
	SSH            SSHConfig    `json:"ssh"`
	Telnet         TelnetConfig `json:"telnet"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() ViewerConfig {
	return ViewerConfig{
		InputMode:      inputmode.NameCP437,
		DisplayMode:    render.DisplayText.String(),
		TabSize:        render.DefaultTabSize,
		Wrap:           true,
		BinaryWidth:    render.DefaultBinaryWidth,
		HexWidth:       render.DefaultHexWidth,
		OutputEncoding: OutputUTF8,
		StripSAUCE:     true,
		HistorySize:    patternsel.DefaultHistorySize,
		SSH: SSHConfig{
			Host:              "127.0.0.1",
			Port:              2323,
			HostKeyPath:       "ssh_host_ed25519_key",
			Root:              ".",
			OutputMode:        "auto",
			MaxFailedAttempts: 5,
			LockoutSeconds:    300,
		},
		Telnet: TelnetConfig{
			Host: "127.0.0.1",
			Port: 2324,
		},
	}
}

// Validate replaces out-of-range values with defaults and returns a
// description of each correction.
func (c *ViewerConfig) Validate() []string {
	def := DefaultConfig()
	var fixes []string
	fix := func(format string, args ...any) {
		fixes = append(fixes, fmt.Sprintf(format, args...))
	}

	if _, err := inputmode.Lookup(c.InputMode); err != nil {
		fix("inputMode %q unknown, using %s", c.InputMode, def.InputMode)
		c.InputMode = def.InputMode
	}
	if _, err := render.ParseDisplayMode(c.DisplayMode); err != nil {
		fix("displayMode %q unknown, using %s", c.DisplayMode, def.DisplayMode)
		c.DisplayMode = def.DisplayMode
	}
	if c.TabSize < 1 || c.TabSize > 32 {
		fix("tabSize %d out of range 1-32, using %d", c.TabSize, def.TabSize)
		c.TabSize = def.TabSize
	}
	if c.BinaryWidth < 8 || c.BinaryWidth > 1024 {
		fix("binaryWidth %d out of range 8-1024, using %d", c.BinaryWidth, def.BinaryWidth)
		c.BinaryWidth = def.BinaryWidth
	}
	if c.HexWidth < 4 || c.HexWidth > 64 {
		fix("hexWidth %d out of range 4-64, using %d", c.HexWidth, def.HexWidth)
		c.HexWidth = def.HexWidth
	}
	c.OutputEncoding = strings.ToLower(c.OutputEncoding)
	if c.OutputEncoding != OutputUTF8 && c.OutputEncoding != OutputLegacyUTF8 {
		fix("outputEncoding %q unknown, using %s", c.OutputEncoding, def.OutputEncoding)
		c.OutputEncoding = def.OutputEncoding
	}
	if c.HistorySize < 1 {
		c.HistorySize = def.HistorySize
	}
	if len(c.PatternHistory) > c.HistorySize {
		c.PatternHistory = c.PatternHistory[:c.HistorySize]
	}
	if c.SSH.Port < 1 || c.SSH.Port > 65535 {
		fix("ssh.port %d out of range, using %d", c.SSH.Port, def.SSH.Port)
		c.SSH.Port = def.SSH.Port
	}
	switch strings.ToLower(c.SSH.OutputMode) {
	case "auto", "utf8", "cp437":
		c.SSH.OutputMode = strings.ToLower(c.SSH.OutputMode)
	default:
		fix("ssh.outputMode %q unknown, using %s", c.SSH.OutputMode, def.SSH.OutputMode)
		c.SSH.OutputMode = def.SSH.OutputMode
	}
	if c.SSH.Root == "" {
		c.SSH.Root = def.SSH.Root
	}
	if c.SSH.HostKeyPath == "" {
		c.SSH.HostKeyPath = def.SSH.HostKeyPath
	}
	if c.SSH.MaxFailedAttempts < 1 {
		fix("ssh.maxFailedAttempts %d below 1, using %d", c.SSH.MaxFailedAttempts, def.SSH.MaxFailedAttempts)
		c.SSH.MaxFailedAttempts = def.SSH.MaxFailedAttempts
	}
	if c.SSH.LockoutSeconds < 1 {
		fix("ssh.lockoutSeconds %d below 1, using %d", c.SSH.LockoutSeconds, def.SSH.LockoutSeconds)
		c.SSH.LockoutSeconds = def.SSH.LockoutSeconds
	}
	if c.Telnet.Port < 1 || c.Telnet.Port > 65535 {
		fix("telnet.port %d out of range, using %d", c.Telnet.Port, def.Telnet.Port)
		c.Telnet.Port = def.Telnet.Port
	}
	if c.Telnet.Enabled && c.Telnet.Host == c.SSH.Host && c.Telnet.Port == c.SSH.Port {
		fix("telnet.port %d collides with ssh.port, disabling telnet", c.Telnet.Port)
		c.Telnet.Enabled = false
	}
	return fixes
}

// RenderOptions builds layout options from the configuration. The config
// must have been validated.
func (c ViewerConfig) RenderOptions() (render.Options, error) {
	mode, err := inputmode.Lookup(c.InputMode)
	if err != nil {
		return render.Options{}, err
	}
	display, err := render.ParseDisplayMode(c.DisplayMode)
	if err != nil {
		return render.Options{}, err
	}
	return render.Options{
		Mode:        mode,
		Display:     display,
		TabSize:     c.TabSize,
		Wrap:        c.Wrap,
		BinaryWidth: c.BinaryWidth,
		HexWidth:    c.HexWidth,
		LegacyUTF8:  c.OutputEncoding == OutputLegacyUTF8,
	}, nil
}

// LoadConfig loads config.json from configPath. A missing file yields the
// defaults; a malformed file yields the defaults and an error.
func LoadConfig(configPath string) (ViewerConfig, error) {
	filePath := filepath.Join(configPath, FileName)
	log.Printf("INFO: Loading viewer configuration from %s", filePath)

	defaults := DefaultConfig()

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("WARN: %s not found at %s. Using default settings.", FileName, filePath)
			return defaults, nil
		}
		log.Printf("ERROR: Failed to read config file %s: %v", filePath, err)
		return defaults, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	config := defaults
	if err := json.Unmarshal(data, &config); err != nil {
		log.Printf("ERROR: Failed to parse config JSON from %s: %v. Using default settings.", filePath, err)
		return defaults, fmt.Errorf("failed to parse config JSON from %s: %w", filePath, err)
	}

	for _, msg := range config.Validate() {
		log.Printf("WARN: %s: %s", filePath, msg)
	}

	log.Printf("INFO: Successfully loaded viewer configuration from %s", filePath)
	return config, nil
}

// SaveConfig writes cfg to config.json in configPath, creating the
// directory if needed.
func SaveConfig(configPath string, cfg ViewerConfig) error {
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')

	// Atomic write: write to temp file, then rename
	tmpFile, err := os.CreateTemp(configPath, "config-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	path := filepath.Join(configPath, FileName)
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp to %s: %w", path, err)
	}
	log.Printf("INFO: Saved viewer configuration to %s", path)
	return nil
}

// DefaultConfigPath returns the per-user config directory for gviewer.
func DefaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "gviewer")
	}
	return "configs"
}
