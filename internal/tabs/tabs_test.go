package tabs

import (
	"testing"

	"github.com/leapstack-labs/docdesk/pkg/core"
	"github.com/stretchr/testify/assert"
)

func debitNoteTabs() []Tab {
	res := &core.Resource{Name: "debitnotes", Label: "Debit Notes", Batch: &core.BatchConfig{DocField: "dn_doc"}}
	return ForResource(res)
}

func TestDeepLinkToAdd(t *testing.T) {
	s := New(debitNoteTabs(), "/debitnotes/add", "", 0)

	assert.Equal(t, KeyAdd, s.ActiveTab().Key, "add tab active without a click")
	assert.Equal(t, "/debitnotes", s.Base())

	next := s.Select(0)

	assert.Equal(t, "/debitnotes", next)
	assert.Equal(t, 0, s.Active(), "active index updates immediately")
}

func TestSelectNonDefault(t *testing.T) {
	s := New(debitNoteTabs(), "/debitnotes", "", 0)

	next, ok := s.SelectKey(KeyBatchUpload)

	assert.True(t, ok)
	assert.Equal(t, "/debitnotes/batch-upload", next)
	assert.Equal(t, KeyBatchUpload, s.ActiveTab().Key)
}

func TestBasePath(t *testing.T) {
	tabs := debitNoteTabs()

	tests := []struct {
		path string
		want string
	}{
		{"/debitnotes", "/debitnotes"},
		{"/debitnotes/", "/debitnotes"},
		{"/debitnotes/add", "/debitnotes"},
		{"/debitnotes/batch-upload", "/debitnotes"},
		{"/debitnotes/add/add", "/debitnotes/add"},
		{"/debitnotes/archive", "/debitnotes/archive"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, BasePath(tabs, tt.path))
		})
	}
}

func TestActiveIndexFallsBackToDefault(t *testing.T) {
	tabs := debitNoteTabs()

	assert.Equal(t, 1, ActiveIndex(tabs, "/debitnotes/unknown", 1))
	assert.Equal(t, 0, ActiveIndex(tabs, "/debitnotes", 0))
	assert.Equal(t, 0, ActiveIndex(tabs, "/debitnotes", 9), "out-of-range default")
}

func TestExplicitBasePath(t *testing.T) {
	s := New(debitNoteTabs(), "/admin/dn/add", "/admin/dn", 0)

	assert.Equal(t, "/admin/dn/add", s.Select(1))
}

func TestRootBasePath(t *testing.T) {
	tabs := debitNoteTabs()

	assert.Equal(t, "/", BasePath(tabs, "/add"))
	assert.Equal(t, "/", BasePath(tabs, "/"))

	s := New(tabs, "/add", "", 0)
	assert.Equal(t, KeyAdd, s.ActiveTab().Key)
	assert.Equal(t, "/", s.Base())
	assert.Equal(t, "/", s.Select(0))
	assert.Equal(t, "/batch-upload", s.Select(2))
}

func TestEmptyShell(t *testing.T) {
	s := New(nil, "/debitnotes/add", "", 0)

	assert.Equal(t, Tab{}, s.ActiveTab())
	assert.Equal(t, "/debitnotes/add", s.Select(1))
	_, ok := s.SelectKey(KeyAdd)
	assert.False(t, ok)
}

func TestBatchTabOnlyWhenEnabled(t *testing.T) {
	res := &core.Resource{Name: "customers", Label: "Customers"}

	tabs := ForResource(res)

	assert.Len(t, tabs, 2)
	assert.Equal(t, 0, ActiveIndex(tabs, "/customers/batch-upload", 0))
}
