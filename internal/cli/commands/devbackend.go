package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/docdesk/internal/devbackend"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// DevBackendOptions holds options for the devbackend command.
type DevBackendOptions struct {
	Port     int
	Database string
	Seed     int
}

// NewDevBackendCommand creates the devbackend command.
func NewDevBackendCommand() *cobra.Command {
	opts := &DevBackendOptions{}

	cmd := &cobra.Command{
		Use:   "devbackend",
		Short: "Run the reference resource backend",
		Long: `Run a SQLite-backed implementation of the resource API for every schema
in the schemas directory. Useful for trying the console without a real backend.`,
		Example: `  # Serve on the default port with 50 sample rows per resource
  docdesk devbackend --seed 50

  # Keep data in memory only
  docdesk devbackend --database :memory:`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDevBackend(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, "Port to serve on (default: 8766)")
	cmd.Flags().StringVar(&opts.Database, "database", "", "SQLite database path")
	cmd.Flags().IntVar(&opts.Seed, "seed", 0, "Insert this many sample rows per empty resource")

	return cmd
}

func runDevBackend(cmd *cobra.Command, opts *DevBackendOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Cfg
	logger := cmdCtx.Logger

	port := cfg.DevBackend.Port
	if opts.Port != 0 {
		port = opts.Port
	}
	path := cfg.DevBackend.Database
	if opts.Database != "" {
		path = opts.Database
	}

	store, err := openStore(path, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if opts.Seed > 0 {
		n, err := devbackend.Seed(cmd.Context(), store, cmdCtx.Registry.List(), opts.Seed)
		if err != nil {
			return fmt.Errorf("failed to seed: %w", err)
		}
		logger.Info("seeded sample records", "count", n)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Mount("/api", devbackend.NewServer(devbackend.Config{
		Store:     store,
		Resources: cmdCtx.Registry,
		Token:     cfg.DevBackend.Token,
		Logger:    logger,
	}).Routes())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Backend running on http://localhost:%d/api (database %s)\n", port, path)

	eg, egctx := errgroup.WithContext(cmd.Context())
	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
	return eg.Wait()
}
