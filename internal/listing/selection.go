package listing

import (
	"slices"
	"sync"
)

// Selection is the page-scoped set of selected row ids.
type Selection struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewSelection creates an empty selection.
func NewSelection() *Selection {
	return &Selection{ids: make(map[string]struct{})}
}

// Toggle flips one id. Toggling twice restores the previous set.
func (s *Selection) Toggle(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return
	}
	s.ids[id] = struct{}{}
}

// ToggleAll selects every loaded id, or clears the set when all of them are
// already selected.
func (s *Selection) ToggleAll(loaded []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coversLocked(loaded) {
		s.ids = make(map[string]struct{})
		return
	}
	s.ids = make(map[string]struct{}, len(loaded))
	for _, id := range loaded {
		s.ids[id] = struct{}{}
	}
}

// AllSelected reports whether every loaded id is selected.
func (s *Selection) AllSelected(loaded []string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coversLocked(loaded)
}

func (s *Selection) coversLocked(loaded []string) bool {
	if len(loaded) == 0 || len(s.ids) != len(loaded) {
		return false
	}
	for _, id := range loaded {
		if _, ok := s.ids[id]; !ok {
			return false
		}
	}
	return true
}

// Has reports whether id is selected.
func (s *Selection) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Remove drops ids from the set.
func (s *Selection) Remove(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.ids, id)
	}
}

// Retain keeps only ids that are still loaded.
func (s *Selection) Retain(loaded []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keep := make(map[string]struct{}, len(loaded))
	for _, id := range loaded {
		if _, ok := s.ids[id]; ok {
			keep[id] = struct{}{}
		}
	}
	s.ids = keep
}

// Clear empties the set.
func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[string]struct{})
}

// Len returns the number of selected ids.
func (s *Selection) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// IDs returns the selected ids sorted.
func (s *Selection) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
