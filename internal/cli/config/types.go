// Package config provides configuration management for the docdesk CLI.
//
// Values are layered lowest first: built-in defaults, the docdesk.yaml
// file, DOCDESK_ environment variables, then explicitly set flags.
package config

import "time"

// Config holds all CLI configuration options.
type Config struct {
	SchemasDir string           `koanf:"schemas_dir"`
	Output     string           `koanf:"output"`
	API        APIConfig        `koanf:"api"`
	UI         UIConfig         `koanf:"ui"`
	Log        LogConfig        `koanf:"log"`
	DevBackend DevBackendConfig `koanf:"devbackend"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// APIConfig configures the backend client.
type APIConfig struct {
	BaseURL   string        `koanf:"base_url"`
	Token     string        `koanf:"token"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"`
	Burst     int           `koanf:"burst"`
}

// UIConfig holds configuration for the console server.
type UIConfig struct {
	Port          int    `koanf:"port"`
	AutoOpen      bool   `koanf:"auto_open"`
	Watch         bool   `koanf:"watch"`
	PerPage       int    `koanf:"per_page"`
	DebounceMS    int    `koanf:"debounce_ms"`
	SessionSecret string `koanf:"session_secret"`
	// IdleMinutes drops views no browser touched for this long.
	IdleMinutes int `koanf:"idle_minutes"`
}

// Debounce returns the search debounce as a duration.
func (u UIConfig) Debounce() time.Duration {
	return time.Duration(u.DebounceMS) * time.Millisecond
}

// IdleDuration returns the view idle timeout.
func (u UIConfig) IdleDuration() time.Duration {
	return time.Duration(u.IdleMinutes) * time.Minute
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// File, when set, receives the log through a rotating writer.
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
}

// DevBackendConfig configures the reference backend.
type DevBackendConfig struct {
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	Token    string `koanf:"token"`
}

// Default configuration values.
const (
	DefaultSchemasDir   = "schemas"
	DefaultOutput       = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultBaseURL      = "http://localhost:8766/api"
	DefaultUIPort       = 8765
	DefaultBackendPort  = 8766
	DefaultDatabase     = ".docdesk/devbackend.db"
	DefaultDebounceMS   = 500
	DefaultIdleMinutes  = 30
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	devSessionSecret    = "docdesk-dev-secret-change-in-production" //nolint:gosec
	defaultTimeout      = 30 * time.Second
	defaultLogMaxSizeMB = 50
)

// Output modes.
const (
	OutputAuto     = "auto"
	OutputText     = "text"
	OutputMarkdown = "markdown"
	OutputJSON     = "json"
)
