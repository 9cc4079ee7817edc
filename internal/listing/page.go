// Package listing orchestrates one list view: it fetches pages for the
// queries emitted by the query controller, keeps only the newest response,
// and owns row selection.
package listing

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/leapstack-labs/docdesk/internal/client"
	"github.com/leapstack-labs/docdesk/pkg/core"
)

// Status is the state of the list page.
type Status int

// List page states.
const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// FetchFunc loads one page of results.
type FetchFunc func(ctx context.Context, q core.Query) (core.Result, error)

// Config configures a Page.
type Config struct {
	Resource *core.Resource
	Fetch    FetchFunc
	Logger   *slog.Logger
	// OnChange is called after every visible state change
	OnChange func()
	// OnUnauthorized is called when a fetch fails with client.ErrUnauthorized
	OnUnauthorized func(error)
}

// State is a snapshot of the page for rendering.
type State struct {
	Status   Status
	Query    core.Query
	Rows     []core.Record
	Total    int
	LastPage int
	Err      error
}

// Page is the list page orchestrator.
//
// Every Load gets a strictly increasing generation. A response is applied
// only when its generation is still the latest issued; older responses are
// dropped without cancelling their requests.
type Page struct {
	res            *core.Resource
	fetch          FetchFunc
	logger         *slog.Logger
	onChange       func()
	onUnauthorized func(error)

	mu       sync.Mutex
	gen      uint64
	status   Status
	query    core.Query
	rows     []core.Record
	total    int
	lastPage int
	err      error

	selection *Selection
}

// New creates an idle page.
func New(cfg Config) *Page {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Page{
		res:            cfg.Resource,
		fetch:          cfg.Fetch,
		logger:         logger,
		onChange:       cfg.OnChange,
		onUnauthorized: cfg.OnUnauthorized,
		query:          core.Query{Page: 1, PerPage: cfg.Resource.PerPage},
		selection:      NewSelection(),
	}
}

// Selection returns the page selection.
func (p *Page) Selection() *Selection {
	return p.selection
}

// Load fetches q and applies the result if no newer Load started meanwhile.
// It reports whether the result was applied.
func (p *Page) Load(ctx context.Context, q core.Query) bool {
	q = q.Normalize(p.res.PerPage)

	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.status = StatusLoading
	p.query = q.Clone()
	p.mu.Unlock()
	p.changed()

	result, err := p.fetch(ctx, q)

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		p.logger.Debug("dropping stale list response", "resource", p.res.Name, "generation", gen)
		return false
	}
	if err != nil {
		p.status = StatusError
		p.rows = nil
		p.total = 0
		p.lastPage = 0
		p.err = err
		p.mu.Unlock()

		p.logger.Warn("list fetch failed", "resource", p.res.Name, "page", q.Page, "error", err)
		if client.IsUnauthorized(err) && p.onUnauthorized != nil {
			p.onUnauthorized(err)
		}
		p.changed()
		return true
	}

	p.status = StatusSuccess
	p.rows = result.Rows
	p.total = result.Total
	p.lastPage = result.LastPage
	p.err = nil
	ids := p.idsLocked()
	p.mu.Unlock()

	p.selection.Retain(ids)
	p.changed()
	return true
}

// Refresh reloads the current query.
func (p *Page) Refresh(ctx context.Context) bool {
	p.mu.Lock()
	q := p.query.Clone()
	p.mu.Unlock()
	return p.Load(ctx, q)
}

// OnDeleted removes rows locally after a confirmed delete. It does not
// re-fetch; callers follow up with Refresh.
func (p *Page) OnDeleted(ids ...string) {
	p.mu.Lock()
	before := len(p.rows)
	p.rows = slices.DeleteFunc(slices.Clone(p.rows), func(r core.Record) bool {
		return slices.Contains(ids, p.res.RecordID(r))
	})
	p.total = max(p.total-(before-len(p.rows)), 0)
	p.mu.Unlock()

	p.selection.Remove(ids...)
	p.changed()
}

// DismissError clears the error banner without touching the query.
func (p *Page) DismissError() {
	p.mu.Lock()
	p.err = nil
	if p.status == StatusError {
		p.status = StatusIdle
	}
	p.mu.Unlock()
	p.changed()
}

// RowIDs returns the ids of the loaded rows in display order.
func (p *Page) RowIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idsLocked()
}

// ToggleAll selects or clears every loaded row.
func (p *Page) ToggleAll() {
	p.selection.ToggleAll(p.RowIDs())
	p.changed()
}

// Toggle flips one row.
func (p *Page) Toggle(id string) {
	p.selection.Toggle(id)
	p.changed()
}

// State returns a snapshot of the page.
func (p *Page) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{
		Status:   p.status,
		Query:    p.query.Clone(),
		Rows:     slices.Clone(p.rows),
		Total:    p.total,
		LastPage: p.lastPage,
		Err:      p.err,
	}
}

// Generation returns the latest issued generation.
func (p *Page) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

func (p *Page) idsLocked() []string {
	ids := make([]string, 0, len(p.rows))
	for _, r := range p.rows {
		if id := p.res.RecordID(r); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func (p *Page) changed() {
	if p.onChange != nil {
		p.onChange()
	}
}
