// Package views keeps the server-side state of open console views.
//
// Every page load creates one view with a fresh id. Follow-up requests of
// that browser tab name the view in their URL. Views not touched for the
// idle timeout are closed and dropped by the sweeper.
package views

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultIdleTimeout closes views whose tab went away.
const DefaultIdleTimeout = 30 * time.Minute

// Closer releases the resources held by a view.
type Closer interface {
	Close()
}

type entry[V Closer] struct {
	view     V
	lastSeen time.Time
}

// Registry maps view ids to view state.
type Registry[V Closer] struct {
	idle   time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	views map[string]*entry[V]
}

// NewRegistry creates an empty registry. A non-positive idle timeout uses
// DefaultIdleTimeout.
func NewRegistry[V Closer](idle time.Duration, logger *slog.Logger) *Registry[V] {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry[V]{
		idle:   idle,
		logger: logger,
		now:    time.Now,
		views:  make(map[string]*entry[V]),
	}
}

// NewID returns a fresh view id.
func NewID() string {
	return uuid.NewString()
}

// Put stores v under id.
func (r *Registry[V]) Put(id string, v V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[id] = &entry[V]{view: v, lastSeen: r.now()}
}

// Get returns the view and marks it as seen.
func (r *Registry[V]) Get(id string) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.views[id]
	if !ok {
		var zero V
		return zero, false
	}
	e.lastSeen = r.now()
	return e.view, true
}

// Touch marks a view as seen, e.g. while its SSE stream is open.
func (r *Registry[V]) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.views[id]; ok {
		e.lastSeen = r.now()
	}
}

// Remove closes and drops a view.
func (r *Registry[V]) Remove(id string) {
	r.mu.Lock()
	e, ok := r.views[id]
	delete(r.views, id)
	r.mu.Unlock()
	if ok {
		e.view.Close()
	}
}

// Len returns the number of open views.
func (r *Registry[V]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Sweep closes every view idle for longer than the timeout and returns how
// many were dropped.
func (r *Registry[V]) Sweep() int {
	cutoff := r.now().Add(-r.idle)

	r.mu.Lock()
	var stale []V
	for id, e := range r.views {
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, e.view)
			delete(r.views, id)
		}
	}
	r.mu.Unlock()

	for _, v := range stale {
		v.Close()
	}
	if len(stale) > 0 {
		r.logger.Debug("closed idle views", "count", len(stale))
	}
	return len(stale)
}

// Run sweeps every interval until ctx is cancelled, then closes all views.
func (r *Registry[V]) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return nil
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Registry[V]) closeAll() {
	r.mu.Lock()
	all := r.views
	r.views = make(map[string]*entry[V])
	r.mu.Unlock()
	for _, e := range all {
		e.view.Close()
	}
}
