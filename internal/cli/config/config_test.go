package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "docdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("schemas", "", "")
	fs.String("api-url", "", "")
	fs.String("token", "", "")
	fs.String("output", "", "")
	fs.Int("port", 0, "")
	return fs
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, used, err := Load("", nil)
	require.NoError(t, err)

	assert.Empty(t, used)
	assert.Equal(t, DefaultBaseURL, cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, DefaultUIPort, cfg.UI.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.UI.Debounce())
	assert.True(t, cfg.UI.Watch)
	assert.Equal(t, OutputAuto, cfg.Output)
	assert.True(t, filepath.IsAbs(cfg.SchemasDir))
	assert.Equal(t, DefaultSchemasDir, filepath.Base(cfg.SchemasDir))
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeConfig(t, dir, `
schemas_dir: defs
api:
  base_url: https://file.example.com/api
  token: ${DOCDESK_TEST_TOKEN}
  rate_limit: 5
ui:
  port: 9000
  per_page: 50
log:
  level: debug
`)
	t.Setenv("DOCDESK_TEST_TOKEN", "from-env-var")
	t.Setenv("DOCDESK_UI__PORT", "9100")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--api-url", "https://flag.example.com/api"}))

	cfg, used, err := Load("", fs)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "docdesk.yaml"), used)
	assert.Equal(t, "https://flag.example.com/api", cfg.API.BaseURL, "flags beat the file")
	assert.Equal(t, 9100, cfg.UI.Port, "env beats the file")
	assert.Equal(t, 50, cfg.UI.PerPage)
	assert.Equal(t, 5.0, cfg.API.RateLimit)
	assert.Equal(t, "from-env-var", cfg.API.Token)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, filepath.Join(dir, "defs"), cfg.SchemasDir)
}

func TestLoadFindsConfigUpward(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "schemas_dir: defs\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))
	t.Chdir(nested)

	cfg, used, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "docdesk.yaml"), used)
	assert.Equal(t, filepath.Join(root, "defs"), cfg.SchemasDir, "file paths resolve against the file")
}

func TestLoadFlagPathsResolveAgainstWorkingDir(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "schemas_dir: defs\n")
	nested := filepath.Join(root, "sub")
	require.NoError(t, os.MkdirAll(nested, 0o750))
	t.Chdir(nested)

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--schemas", "mine"}))

	cfg, _, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(nested, "mine"), cfg.SchemasDir)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())

	_, _, err := Load("nope.yaml", nil)
	assert.ErrorContains(t, err, "nope.yaml")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			SchemasDir: "schemas",
			Output:     OutputAuto,
			API:        APIConfig{BaseURL: "http://localhost/api"},
			Log:        LogConfig{Level: "info", Format: "text"},
		}
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		errSubstr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no schemas dir", mutate: func(c *Config) { c.SchemasDir = "" }, errSubstr: "schemas_dir"},
		{name: "bad output", mutate: func(c *Config) { c.Output = "yaml" }, errSubstr: "output format"},
		{name: "relative base url", mutate: func(c *Config) { c.API.BaseURL = "/api" }, errSubstr: "absolute URL"},
		{name: "negative rate", mutate: func(c *Config) { c.API.RateLimit = -1 }, errSubstr: "rate_limit"},
		{name: "bad port", mutate: func(c *Config) { c.UI.Port = 70000 }, errSubstr: "ports"},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, errSubstr: "log format"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "loud" }, errSubstr: "log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errSubstr)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	defer func() { _ = closer.Close() }()

	logger.Info("hidden")
	logger.Warn("shown", "resource", "invoices")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"resource":"invoices"`)
}

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docdesk.log")
	logger, closer, err := NewLogger(LogConfig{Level: "info", Format: "text", File: path, MaxSizeMB: 1}, nil)
	require.NoError(t, err)

	logger.Info("rotated", "n", 1)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rotated")
}

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	assert.NotNil(t, GetLogger(ctx))

	logger := slog.New(slog.DiscardHandler)
	cfg := &Config{SchemasDir: "x"}
	ctx = WithLogger(WithConfig(ctx, cfg), logger)

	assert.Same(t, logger, GetLogger(ctx))
	assert.Same(t, cfg, GetConfig(ctx))
}
