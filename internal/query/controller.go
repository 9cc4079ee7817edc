// Package query owns the search text, column filters and pagination cursor
// of one list view and turns their changes into outbound queries.
package query

import (
	"maps"
	"sync"
	"time"

	"github.com/leapstack-labs/docdesk/pkg/core"
)

// DefaultDebounce is the quiet period after the last search edit.
const DefaultDebounce = 500 * time.Millisecond

// Timer is the part of *time.Timer the controller needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it once wrapped.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Config configures a Controller.
type Config struct {
	// PerPage is the initial page size
	PerPage int
	// Debounce overrides DefaultDebounce when positive
	Debounce time.Duration
	// AfterFunc replaces the wall clock, mainly in tests
	AfterFunc AfterFunc
	// OnQuery receives every emitted effective query
	OnQuery func(core.Query)
}

// Controller holds the query state of one list view.
//
// Search edits are debounced: each SetSearchText restarts a single timer and
// the query is emitted only when the timer fires with a changed value.
// Filters update immediately but are sent only by ApplyFiltersNow.
// A failed fetch never touches this state.
type Controller struct {
	mu        sync.Mutex
	delay     time.Duration
	afterFunc AfterFunc
	onQuery   func(core.Query)

	page      int
	perPage   int
	search    string
	debounced string
	filters   map[string]string

	timer    Timer
	timerGen uint64
}

// New creates a controller on page 1.
func New(cfg Config) *Controller {
	c := &Controller{
		delay:     cfg.Debounce,
		afterFunc: cfg.AfterFunc,
		onQuery:   cfg.OnQuery,
		page:      1,
		perPage:   cfg.PerPage,
		filters:   make(map[string]string),
	}
	if c.delay <= 0 {
		c.delay = DefaultDebounce
	}
	if c.afterFunc == nil {
		c.afterFunc = realAfterFunc
	}
	if c.perPage <= 0 {
		c.perPage = core.DefaultPerPage
	}
	return c
}

// SetSearchText records a keystroke and restarts the debounce timer.
func (c *Controller) SetSearchText(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.search = s
	c.stopTimerLocked()
	c.timerGen++
	gen := c.timerGen
	c.timer = c.afterFunc(c.delay, func() { c.fire(gen) })
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.timerGen || c.timer == nil {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	if c.search == c.debounced {
		c.mu.Unlock()
		return
	}
	c.debounced = c.search
	c.page = 1
	q := c.effectiveLocked()
	c.mu.Unlock()

	c.emit(q)
}

// SearchText returns the raw, not yet debounced search text.
func (c *Controller) SearchText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.search
}

// Pending reports whether a debounce timer is running.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

// SetFilter updates one filter value without emitting.
// An empty value removes the key.
func (c *Controller) SetFilter(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if value == "" {
		delete(c.filters, key)
		return
	}
	c.filters[key] = value
}

// ClearFilter removes the given keys together without emitting.
// A date-range control passes both of its keys.
func (c *Controller) ClearFilter(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.filters, k)
	}
}

// Filter returns the current value of a filter key.
func (c *Controller) Filter(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters[key]
}

// ApplyFiltersNow resets to page 1 and emits.
func (c *Controller) ApplyFiltersNow() {
	c.mu.Lock()
	c.page = 1
	q := c.effectiveLocked()
	c.mu.Unlock()

	c.emit(q)
}

// ClearFilters resets filters and both search texts, cancels any pending
// debounce and emits once.
func (c *Controller) ClearFilters() {
	c.mu.Lock()
	c.stopTimerLocked()
	c.timerGen++
	c.filters = make(map[string]string)
	c.search = ""
	c.debounced = ""
	c.page = 1
	q := c.effectiveLocked()
	c.mu.Unlock()

	c.emit(q)
}

// SetPage moves the cursor and emits. Pages below 1 are clamped.
func (c *Controller) SetPage(page int) {
	c.mu.Lock()
	if page < 1 {
		page = 1
	}
	c.page = page
	q := c.effectiveLocked()
	c.mu.Unlock()

	c.emit(q)
}

// SetPerPage changes the page size, returns to page 1 and emits.
func (c *Controller) SetPerPage(perPage int) {
	c.mu.Lock()
	if perPage > 0 {
		c.perPage = perPage
	}
	c.page = 1
	q := c.effectiveLocked()
	c.mu.Unlock()

	c.emit(q)
}

// Effective returns the query the next fetch should use.
func (c *Controller) Effective() core.Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.effectiveLocked()
}

// Close cancels any pending debounce without emitting.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
	c.timerGen++
}

func (c *Controller) effectiveLocked() core.Query {
	return core.Query{
		Page:    c.page,
		PerPage: c.perPage,
		Search:  c.debounced,
		Filters: maps.Clone(c.filters),
	}
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) emit(q core.Query) {
	if c.onQuery != nil {
		c.onQuery(q)
	}
}
