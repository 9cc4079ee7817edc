package form

import (
	"strings"
	"sync"

	"github.com/leapstack-labs/docdesk/pkg/core"
)

// Keys understood by SearchableSelect.Key.
const (
	KeyArrowDown = "ArrowDown"
	KeyArrowUp   = "ArrowUp"
	KeyEnter     = "Enter"
	KeyEscape    = "Escape"
)

// SearchableSelect is the type-ahead combobox state of one select field.
type SearchableSelect struct {
	options []core.Option

	mu        sync.Mutex
	query     string
	open      bool
	highlight int
}

// NewSearchableSelect creates a closed combobox.
func NewSearchableSelect(options []core.Option) *SearchableSelect {
	return &SearchableSelect{options: options}
}

// FilterOptions returns options whose label or value contains query,
// ignoring case.
func FilterOptions(options []core.Option, query string) []core.Option {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return options
	}
	var out []core.Option
	for _, o := range options {
		if strings.Contains(strings.ToLower(o.Label), q) || strings.Contains(strings.ToLower(o.Value), q) {
			out = append(out, o)
		}
	}
	return out
}

// LabelFor resolves the display label of value. It is recomputed on every
// render so option changes show up immediately.
func LabelFor(options []core.Option, value string) string {
	for _, o := range options {
		if o.Value == value {
			return o.Label
		}
	}
	return ""
}

// SetQuery updates the typed text, opens the list and resets the highlight.
func (s *SearchableSelect) SetQuery(q string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = q
	s.open = true
	s.highlight = 0
}

// Open shows the option list.
func (s *SearchableSelect) Open() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	s.clampLocked()
}

// Close hides the list without committing. Used for Escape and outside clicks.
func (s *SearchableSelect) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
}

// Move shifts the highlight by delta, clamped to the filtered options.
func (s *SearchableSelect) Move(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.highlight += delta
	s.clampLocked()
}

// Key handles one keystroke. It returns the committed value and true on Enter
// with a highlighted option.
func (s *SearchableSelect) Key(key string) (string, bool) {
	switch key {
	case KeyArrowDown:
		s.Move(1)
	case KeyArrowUp:
		s.Move(-1)
	case KeyEscape:
		s.Close()
	case KeyEnter:
		s.mu.Lock()
		filtered := FilterOptions(s.options, s.query)
		if !s.open || len(filtered) == 0 {
			s.mu.Unlock()
			return "", false
		}
		s.clampLocked()
		value := filtered[s.highlight].Value
		s.mu.Unlock()
		return s.Choose(value), true
	}
	return "", false
}

// Choose commits an option: the query is cleared, the list closes and the
// option value is returned.
func (s *SearchableSelect) Choose(value string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = ""
	s.open = false
	s.highlight = 0
	return value
}

// View is a snapshot for rendering.
type View struct {
	Query     string
	Open      bool
	Highlight int
	Options   []core.Option
}

// View returns the current state with the filtered options.
func (s *SearchableSelect) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clampLocked()
	return View{
		Query:     s.query,
		Open:      s.open,
		Highlight: s.highlight,
		Options:   FilterOptions(s.options, s.query),
	}
}

func (s *SearchableSelect) clampLocked() {
	n := len(FilterOptions(s.options, s.query))
	if s.highlight > n-1 {
		s.highlight = n - 1
	}
	if s.highlight < 0 {
		s.highlight = 0
	}
}
