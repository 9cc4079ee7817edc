package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

type (
	configKey struct{}
	loggerKey struct{}
)

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

var configNames = []string{"docdesk.yaml", "docdesk.yml"}

// flagKeys maps flag names that differ from their config key.
var flagKeys = map[string]string{
	"schemas":   "schemas_dir",
	"api-url":   "api.base_url",
	"token":     "api.token",
	"log-file":  "log.file",
	"log-level": "log.level",
	"port":      "ui.port",
	"database":  "devbackend.database",
}

func defaults() map[string]any {
	return map[string]any{
		"schemas_dir":         DefaultSchemasDir,
		"output":              DefaultOutput,
		"api.base_url":        DefaultBaseURL,
		"api.timeout":         defaultTimeout.String(),
		"api.burst":           1,
		"ui.port":             DefaultUIPort,
		"ui.auto_open":        true,
		"ui.watch":            true,
		"ui.debounce_ms":      DefaultDebounceMS,
		"ui.idle_minutes":     DefaultIdleMinutes,
		"ui.session_secret":   devSessionSecret,
		"log.level":           DefaultLogLevel,
		"log.format":          DefaultLogFormat,
		"log.max_size_mb":     defaultLogMaxSizeMB,
		"log.max_backups":     3,
		"devbackend.port":     DefaultBackendPort,
		"devbackend.database": DefaultDatabase,
	}
}

// configExistsIn reports the config file in dir, if any.
func configExistsIn(dir string) string {
	for _, name := range configNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// findConfigUpward searches upward from startDir for a config file.
func findConfigUpward(startDir string) string {
	dir := startDir
	for range maxUpwardSearchLevels {
		if p := configExistsIn(dir); p != "" {
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// Load reads configuration from defaults, the config file, environment
// variables and flags. It returns the config and the file used, if any.
// Relative paths from the file resolve against the file's directory;
// relative paths given as flags resolve against the working directory.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, string, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	used := cfgFile
	if used == "" {
		used = findConfigUpward(cwd)
	}
	root := cwd
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, "", fmt.Errorf("error reading config file %s: %w", used, err)
		}
		if abs, err := filepath.Abs(used); err == nil {
			root = filepath.Dir(abs)
		}
	}

	// 3. Environment variables: DOCDESK_API__BASE_URL -> api.base_url
	if err := k.Load(env.Provider("DOCDESK_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "DOCDESK_"))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags, only the ones explicitly set
	var flagPaths = map[string]string{}
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			if key == "schemas_dir" || key == "devbackend.database" || key == "log.file" {
				flagPaths[key] = f.Value.String()
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, "", fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, "", fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.ProjectRoot = root
	cfg.SchemasDir = resolvePath(cfg.SchemasDir, "schemas_dir", flagPaths, root, cwd)
	cfg.DevBackend.Database = resolvePath(cfg.DevBackend.Database, "devbackend.database", flagPaths, root, cwd)
	cfg.Log.File = resolvePath(cfg.Log.File, "log.file", flagPaths, root, cwd)

	cfg.API.Token = expandEnvVars(cfg.API.Token)
	cfg.API.BaseURL = expandEnvVars(cfg.API.BaseURL)
	cfg.UI.SessionSecret = expandEnvVars(cfg.UI.SessionSecret)
	cfg.DevBackend.Token = expandEnvVars(cfg.DevBackend.Token)

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, used, nil
}

func resolvePath(value, key string, flagPaths map[string]string, root, cwd string) string {
	if _, ok := flagPaths[key]; ok {
		return resolvePathRelativeTo(value, cwd)
	}
	return resolvePathRelativeTo(value, root)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns with environment variable values.
// Unknown variables are left as written.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}
		return match
	})
}

// WithConfig stores cfg in ctx.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// GetConfig retrieves the config from the command context, or the
// defaults when none was loaded.
func GetConfig(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	cfg, _, err := Load("", nil)
	if err != nil {
		return &Config{SchemasDir: DefaultSchemasDir, Output: DefaultOutput}
	}
	return cfg
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}
