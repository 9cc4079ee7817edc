package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.SchemasDir == "" {
		return fmt.Errorf("schemas_dir is required")
	}
	switch c.Output {
	case OutputAuto, OutputText, OutputMarkdown, OutputJSON:
	default:
		return fmt.Errorf("unknown output format %q (auto|text|markdown|json)", c.Output)
	}
	if c.API.BaseURL != "" {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("api.base_url must be an absolute URL, got %q", c.API.BaseURL)
		}
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must not be negative")
	}
	if c.UI.Port < 0 || c.UI.Port > 65535 || c.DevBackend.Port < 0 || c.DevBackend.Port > 65535 {
		return fmt.Errorf("ports must be between 0 and 65535")
	}
	if c.UI.PerPage < 0 {
		return fmt.Errorf("ui.per_page must not be negative")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (text|json)", c.Log.Format)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ValidateDirectories checks if required directories exist.
func (c *Config) ValidateDirectories() error {
	if _, err := os.Stat(c.SchemasDir); os.IsNotExist(err) {
		return fmt.Errorf("schemas directory does not exist: %s\nHint: Create the directory or use --schemas to specify a different path", c.SchemasDir)
	}
	return nil
}
