package schema

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/docdesk/pkg/core"
)

// reloadDebounce coalesces editor save bursts into one reload.
const reloadDebounce = 100 * time.Millisecond

// Registry holds the current resource schemas by name.
// Lookups return the schema that was current at call time; a reload swaps
// the whole set atomically.
type Registry struct {
	mu        sync.RWMutex
	resources map[string]*core.Resource
	order     []string
}

// NewRegistry creates a registry holding the given resources.
func NewRegistry(resources ...*core.Resource) *Registry {
	r := &Registry{}
	r.Replace(resources)
	return r
}

// LoadRegistry builds a registry from a schemas directory.
func LoadRegistry(dir string) (*Registry, error) {
	resources, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return NewRegistry(resources...), nil
}

// Replace swaps the registered resources.
func (r *Registry) Replace(resources []*core.Resource) {
	byName := make(map[string]*core.Resource, len(resources))
	order := make([]string, 0, len(resources))
	for _, res := range resources {
		if _, dup := byName[res.Name]; !dup {
			order = append(order, res.Name)
		}
		byName[res.Name] = res
	}

	r.mu.Lock()
	r.resources = byName
	r.order = order
	r.mu.Unlock()
}

// Get returns the named resource.
func (r *Registry) Get(name string) (*core.Resource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resources[name]
	return res, ok
}

// List returns all resources in registration order.
func (r *Registry) List() []*core.Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*core.Resource, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.resources[name])
	}
	return out
}

// Watch reloads the registry whenever a schema file in dir changes and calls
// onReload after each successful reload. A broken file keeps the previous
// schemas in place. Watch blocks until ctx is cancelled.
func (r *Registry) Watch(ctx context.Context, dir string, logger *slog.Logger, onReload func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create schema watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !IsSchemaFile(filepath.Base(event.Name)) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(reloadDebounce, func() {
				resources, err := LoadDir(dir)
				if err != nil {
					logger.Error("schema reload failed, keeping previous schemas", "dir", dir, "error", err)
					return
				}
				r.Replace(resources)
				logger.Info("schemas reloaded", "dir", dir, "count", len(resources))
				if onReload != nil {
					onReload()
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("schema watcher error", "error", err)
		}
	}
}
