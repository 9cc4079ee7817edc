// Package ui serves the back-office console.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/docdesk/internal/bulk"
	"github.com/leapstack-labs/docdesk/internal/schema"
	"github.com/leapstack-labs/docdesk/internal/script"
	"github.com/leapstack-labs/docdesk/internal/ui/features/console"
	"github.com/leapstack-labs/docdesk/internal/ui/notifier"
	"github.com/leapstack-labs/docdesk/internal/ui/router"
	"github.com/leapstack-labs/docdesk/internal/ui/session"
	"github.com/leapstack-labs/docdesk/internal/ui/views"
	"golang.org/x/sync/errgroup"
)

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 5 * time.Second
)

// Server is the console HTTP server.
type Server struct {
	schemas      *schema.Registry
	client       console.ClientFunc
	sessionStore sessions.Store
	notifier     *notifier.Notifier
	views        *views.Registry[*console.View]
	dispatcher   *bulk.Dispatcher
	cfg          Config
	logger       *slog.Logger
}

// Config holds configuration for the UI server.
type Config struct {
	Schemas *schema.Registry
	Client  console.ClientFunc
	Port    int
	// SessionSecret signs the session cookie.
	SessionSecret string
	Logger        *slog.Logger
	// Watch reloads SchemasDir on change and refreshes open views.
	Watch      bool
	SchemasDir string
	Debounce   time.Duration
	// IdleTimeout drops views no browser has touched for this long.
	IdleTimeout time.Duration
	IsDev       bool
	// Backend, when set, is mounted at /api in the same server.
	Backend http.Handler
}

// NewServer creates a new UI server instance.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Schemas == nil {
		return nil, errors.New("ui: schemas are required")
	}
	if cfg.Client == nil {
		return nil, errors.New("ui: a backend client is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		schemas:      cfg.Schemas,
		client:       cfg.Client,
		sessionStore: session.NewStore(cfg.SessionSecret),
		notifier:     notifier.New(),
		views:        views.NewRegistry[*console.View](cfg.IdleTimeout, cfg.Logger),
		dispatcher:   bulk.NewDispatcher(cfg.Logger),
		cfg:          cfg,
		logger:       cfg.Logger,
	}, nil
}

// Handler builds the router of the console.
func (s *Server) Handler() (http.Handler, error) {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	if s.cfg.Backend != nil {
		r.Mount("/api", s.cfg.Backend)
	}

	// Compression only covers documents; SSE streams stay unbuffered.
	var setupErr error
	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5, "text/html", "text/css", "text/csv"))
		_, setupErr = router.SetupRoutes(r, console.Config{
			Schemas:  s.schemas,
			Client:   s.client,
			Engine:   script.NewEngine(script.WithLogger(s.logger)),
			Sessions: s.sessionStore,
			Notifier: s.notifier,
			Views:    s.views,
			Confirm:  s.dispatcher,
			Debounce: s.cfg.Debounce,
			Logger:   s.logger,
			IsDev:    s.cfg.IsDev,
		})
	})
	if setupErr != nil {
		return nil, setupErr
	}
	return r, nil
}

// Serve starts the UI server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return fmt.Errorf("failed to setup routes: %w", err)
	}

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.logger.Info("starting console", "addr", fmt.Sprintf("http://localhost:%d", s.cfg.Port))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.cfg.Watch && s.cfg.SchemasDir != "" {
		eg.Go(func() error {
			return s.schemas.Watch(egctx, s.cfg.SchemasDir, s.logger, s.notifier.BroadcastAll)
		})
	}

	eg.Go(func() error {
		return s.views.Run(egctx, sweepInterval)
	})

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down console...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Notifier returns the server's notifier for SSE updates.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}
