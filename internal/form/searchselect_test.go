package form

import (
	"testing"

	"github.com/leapstack-labs/docdesk/pkg/core"
	"github.com/stretchr/testify/assert"
)

var customerOptions = []core.Option{
	{Value: "acme", Label: "Acme Corp"},
	{Value: "globex", Label: "Globex"},
	{Value: "initech", Label: "Initech Ltd"},
	{Value: "ltd-9", Label: "Umbrella"},
}

func TestFilterOptions(t *testing.T) {
	assert.Len(t, FilterOptions(customerOptions, ""), 4)
	assert.Equal(t, []core.Option{{Value: "acme", Label: "Acme Corp"}}, FilterOptions(customerOptions, "ACME"))

	got := FilterOptions(customerOptions, "ltd")
	assert.Equal(t, []string{"initech", "ltd-9"}, []string{got[0].Value, got[1].Value}, "matches label or value")

	assert.Empty(t, FilterOptions(customerOptions, "zzz"))
}

func TestSearchableSelect_Keyboard(t *testing.T) {
	s := NewSearchableSelect(customerOptions)
	s.SetQuery("ltd")

	s.Key(KeyArrowUp)
	assert.Equal(t, 0, s.View().Highlight, "clamped at 0")

	s.Key(KeyArrowDown)
	s.Key(KeyArrowDown)
	s.Key(KeyArrowDown)
	assert.Equal(t, 1, s.View().Highlight, "clamped at n-1")

	value, ok := s.Key(KeyEnter)
	assert.True(t, ok)
	assert.Equal(t, "ltd-9", value, "commits the value, not the label")

	v := s.View()
	assert.Empty(t, v.Query)
	assert.False(t, v.Open)
}

func TestSearchableSelect_EscapeDoesNotCommit(t *testing.T) {
	s := NewSearchableSelect(customerOptions)
	s.SetQuery("glo")

	_, ok := s.Key(KeyEscape)

	assert.False(t, ok)
	assert.False(t, s.View().Open)
	assert.Equal(t, "glo", s.View().Query)

	_, ok = s.Key(KeyEnter)
	assert.False(t, ok, "closed list commits nothing")
}

func TestSearchableSelect_EnterWithNoMatches(t *testing.T) {
	s := NewSearchableSelect(customerOptions)
	s.SetQuery("zzz")

	_, ok := s.Key(KeyEnter)

	assert.False(t, ok)
}

func TestLabelFor(t *testing.T) {
	assert.Equal(t, "Globex", LabelFor(customerOptions, "globex"))
	assert.Equal(t, "", LabelFor(customerOptions, "missing"))
}
