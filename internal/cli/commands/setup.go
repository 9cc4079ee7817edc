package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/leapstack-labs/docdesk/internal/cli/config"
	"github.com/leapstack-labs/docdesk/internal/client"
	"github.com/leapstack-labs/docdesk/internal/schema"
	"github.com/leapstack-labs/docdesk/pkg/core"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Registry *schema.Registry
}

// NewCommandContext loads the schema registry for a command.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg := config.GetConfig(cmd.Context())
	logger := config.GetLogger(cmd.Context())

	if err := cfg.ValidateDirectories(); err != nil {
		return nil, err
	}
	reg, err := schema.LoadRegistry(cfg.SchemasDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load schemas: %w", err)
	}
	return &CommandContext{Cfg: cfg, Logger: logger, Registry: reg}, nil
}

// Resource looks up a resource by name.
func (c *CommandContext) Resource(name string) (*core.Resource, error) {
	if res, ok := c.Registry.Get(name); ok {
		return res, nil
	}
	names := make([]string, 0)
	for _, r := range c.Registry.List() {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return nil, fmt.Errorf("unknown resource %q (available: %s)", name, strings.Join(names, ", "))
}

// Client builds the backend client from the api config section.
func (c *CommandContext) Client() (*client.HTTP, error) {
	return newClient(c.Cfg, c.Logger)
}

func newClient(cfg *config.Config, logger *slog.Logger) (*client.HTTP, error) {
	return client.New(client.Config{
		BaseURL:   cfg.API.BaseURL,
		Token:     cfg.API.Token,
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
		Burst:     cfg.API.Burst,
		Logger:    logger,
	})
}

// resourceNames completes resource arguments from the schemas directory.
func resourceNames(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	cfg := config.GetConfig(cmd.Context())
	resources, _ := schema.LoadDir(cfg.SchemasDir)
	names := make([]string, 0, len(resources))
	for _, r := range resources {
		names = append(names, r.Name)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

// effectiveOutput resolves the auto output mode: text on a terminal,
// markdown otherwise.
func effectiveOutput(mode string, w io.Writer) string {
	if mode != config.OutputAuto && mode != "" {
		return mode
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return config.OutputText
	}
	return config.OutputMarkdown
}

// parseFilters turns key=value pairs into a filter map.
func parseFilters(pairs map[string]string) map[string]string {
	out := make(map[string]string, len(pairs))
	for k, v := range pairs {
		if k = strings.TrimSpace(k); k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}
