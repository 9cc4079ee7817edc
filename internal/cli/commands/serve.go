package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/leapstack-labs/docdesk/internal/client"
	"github.com/leapstack-labs/docdesk/internal/devbackend"
	"github.com/leapstack-labs/docdesk/internal/ui"
	"github.com/leapstack-labs/docdesk/internal/ui/features/console"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Port       int
	NoBrowser  bool
	Watch      bool
	DevBackend bool
	Dev        bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the back-office console",
		Long: `Start the web console for every resource schema in the schemas directory.

The console provides:
- Resource lists with search, column filters and pagination
- Add and edit forms, singleton settings pages
- Confirmed single and bulk deletes, xlsx/csv export
- Batch document upload with review before creation`,
		Example: `  # Start the console against the configured backend
  docdesk serve

  # Start with the reference backend mounted at /api
  docdesk serve --dev-backend

  # Start on a custom port without opening a browser
  docdesk serve --port 3000 --no-browser`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, "Port to serve on (default: 8765)")
	cmd.Flags().BoolVar(&opts.NoBrowser, "no-browser", false, "Don't auto-open browser")
	cmd.Flags().BoolVar(&opts.Watch, "watch", true, "Reload schemas when their files change")
	cmd.Flags().BoolVar(&opts.DevBackend, "dev-backend", false, "Mount the reference backend at /api")
	cmd.Flags().BoolVar(&opts.Dev, "dev", false, "Enable the browser hot-reload endpoint")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Cfg
	logger := cmdCtx.Logger

	port := cfg.UI.Port
	if opts.Port != 0 {
		port = opts.Port
	}
	autoOpen := cfg.UI.AutoOpen && !opts.NoBrowser
	watch := cfg.UI.Watch
	if cmd.Flags().Changed("watch") {
		watch = opts.Watch
	}

	apiCfg := *cfg
	serverCfg := ui.Config{
		Schemas:       cmdCtx.Registry,
		Port:          port,
		SessionSecret: cfg.UI.SessionSecret,
		Logger:        logger,
		Watch:         watch,
		SchemasDir:    cfg.SchemasDir,
		Debounce:      cfg.UI.Debounce(),
		IdleTimeout:   cfg.UI.IdleDuration(),
		IsDev:         opts.Dev,
	}

	if opts.DevBackend {
		store, err := openStore(cfg.DevBackend.Database, logger)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		serverCfg.Backend = devbackend.NewServer(devbackend.Config{
			Store:     store,
			Resources: cmdCtx.Registry,
			Token:     cfg.DevBackend.Token,
			Logger:    logger,
		}).Routes()
		apiCfg.API.BaseURL = fmt.Sprintf("http://localhost:%d/api", port)
		if apiCfg.API.Token == "" {
			apiCfg.API.Token = cfg.DevBackend.Token
		}
	}

	base, err := newClient(&apiCfg, logger)
	if err != nil {
		return err
	}
	serverCfg.Client = sessionClient(base)

	server, err := ui.NewServer(serverCfg)
	if err != nil {
		return err
	}

	if autoOpen {
		go openBrowser(fmt.Sprintf("http://localhost:%d", port))
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Console running on http://localhost:%d (backend %s)\n", port, apiCfg.API.BaseURL)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	return server.Serve(ctx)
}

// sessionClient uses the token a browser stored in its session, falling
// back to the configured token.
func sessionClient(base *client.HTTP) console.ClientFunc {
	return func(token string) client.Resources {
		if token == "" {
			return base
		}
		return base.WithToken(token)
	}
}

func openStore(path string, logger *slog.Logger) (*devbackend.Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	return devbackend.Open(path, logger)
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url) //nolint:noctx
	case "linux":
		cmd = exec.Command("xdg-open", url) //nolint:noctx
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url) //nolint:noctx
	default:
		return
	}

	_ = cmd.Start()
}
