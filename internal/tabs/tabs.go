// Package tabs maps the trailing URL segment of a resource path to one of
// its tabs and back.
package tabs

import (
	"strings"
	"sync"

	"github.com/leapstack-labs/docdesk/pkg/core"
)

// Standard tab keys.
const (
	KeyView        = ""
	KeyAdd         = "add"
	KeyBatchUpload = "batch-upload"
)

// Tab is one entry of the shell.
type Tab struct {
	Key   string
	Label string
}

// Shell is the tab state of one resource view.
type Shell struct {
	tabs []Tab
	base string

	mu     sync.Mutex
	active int
}

// ForResource returns the standard tabs of a resource. The batch upload tab
// is present only when the schema enables it.
func ForResource(res *core.Resource) []Tab {
	tabs := []Tab{
		{Key: KeyView, Label: res.Label},
		{Key: KeyAdd, Label: "Add"},
	}
	if res.Batch != nil {
		tabs = append(tabs, Tab{Key: KeyBatchUpload, Label: "Batch Upload"})
	}
	return tabs
}

// New resolves the active tab from path. basePath may be empty, in which case
// it is derived from path by stripping one trailing tab key.
func New(tabs []Tab, path, basePath string, defaultIndex int) *Shell {
	if basePath == "" {
		basePath = BasePath(tabs, path)
	}
	return &Shell{
		tabs:   tabs,
		base:   strings.TrimSuffix(basePath, "/"),
		active: ActiveIndex(tabs, path, defaultIndex),
	}
}

// ActiveIndex returns the index of the tab whose key equals the trailing
// segment of path, or defaultIndex.
func ActiveIndex(tabs []Tab, path string, defaultIndex int) int {
	seg := lastSegment(path)
	if seg != "" {
		for i, t := range tabs {
			if t.Key == seg {
				return i
			}
		}
	}
	if defaultIndex < 0 || defaultIndex >= len(tabs) {
		return 0
	}
	return defaultIndex
}

// BasePath strips exactly one trailing segment when it is a tab key and
// otherwise returns the whole path. The root is "/", never empty.
func BasePath(tabs []Tab, path string) string {
	trimmed := strings.TrimSuffix(path, "/")
	seg := lastSegment(trimmed)
	for _, t := range tabs {
		if t.Key != "" && t.Key == seg {
			trimmed = strings.TrimSuffix(trimmed, "/"+seg)
			break
		}
	}
	if trimmed == "" {
		return "/"
	}
	return trimmed
}

// Href returns the navigation target of a tab key.
func Href(base, key string) string {
	base = strings.TrimSuffix(base, "/")
	if key == "" {
		if base == "" {
			return "/"
		}
		return base
	}
	return base + "/" + key
}

// Select makes tab i active immediately and returns where to navigate.
// An out-of-range index keeps the current tab.
func (s *Shell) Select(i int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tabs) == 0 {
		return Href(s.base, KeyView)
	}
	if i < 0 || i >= len(s.tabs) {
		return Href(s.base, s.tabs[s.active].Key)
	}
	s.active = i
	return Href(s.base, s.tabs[i].Key)
}

// SelectKey is Select by tab key.
func (s *Shell) SelectKey(key string) (string, bool) {
	for i, t := range s.tabs {
		if t.Key == key {
			return s.Select(i), true
		}
	}
	return "", false
}

// Active returns the active index.
func (s *Shell) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ActiveTab returns the active tab, or the zero Tab when there are none.
func (s *Shell) ActiveTab() Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tabs) == 0 {
		return Tab{}
	}
	return s.tabs[s.active]
}

// Tabs returns the configured tabs.
func (s *Shell) Tabs() []Tab {
	return s.tabs
}

// Base returns the base path.
func (s *Shell) Base() string {
	return Href(s.base, KeyView)
}

func lastSegment(path string) string {
	path = strings.TrimSuffix(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
