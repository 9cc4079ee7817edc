package core

import "fmt"

// Option is one choice of a select field.
type Option struct {
	Value string
	Label string
}

// Field describes one editable form field.
type Field struct {
	// Name keys the value map and filters what is sent to the backend
	Name string
	// Label is shown next to the input
	Label string
	// Kind selects the input widget
	Kind FieldKind
	// Required fields are checked before submit
	Required bool
	// Options lists the choices of a select field
	Options []Option
	// Searchable renders a select as a type-ahead combobox
	Searchable bool
	// Placeholder is the input hint
	Placeholder string
	// ColSpan is 1 or 2 grid columns
	ColSpan int
	// OnChange is a Starlark snippet run after the field changes
	OnChange string
	// Disabled fields are rendered read-only
	Disabled bool
	// Default seeds the value map on mount
	Default any
	// MinLength and MaxLength bound string values when non-zero
	MinLength int
	MaxLength int
	// Matches names another field this one must equal (password confirmation)
	Matches string
}

// Span returns the normalized column span.
func (f Field) Span() int {
	if f.ColSpan == 2 {
		return 2
	}
	return 1
}

// Column describes one displayed list column.
type Column struct {
	// Header is the column title and the default filter placeholder
	Header string
	// Accessor is a shallow record key
	Accessor string
	// FilterKey overrides the filter query key (defaults to Accessor)
	FilterKey string
	// Filter selects the filter control
	Filter FilterKind
	// Render is a Starlark expression evaluated with `row` in scope
	Render string
	// DisableFilter suppresses the filter control
	DisableFilter bool
}

// Displays reports whether the column shows anything.
func (c Column) Displays() bool {
	return c.Accessor != "" || c.Render != ""
}

// ResolvedFilterKey returns the query key for the column filter, or "" if none.
func (c Column) ResolvedFilterKey() string {
	if c.FilterKey != "" {
		return c.FilterKey
	}
	return c.Accessor
}

// HasFilter reports whether a filter control is rendered for the column.
func (c Column) HasFilter() bool {
	return c.Displays() && !c.DisableFilter && c.ResolvedFilterKey() != ""
}

// FilterKeys returns every query key owned by the column filter.
// A date-range filter owns a from and a to key.
func (c Column) FilterKeys() []string {
	key := c.ResolvedFilterKey()
	if !c.HasFilter() {
		return nil
	}
	if c.Filter == FilterDateRange {
		return []string{RangeFromKey(key), RangeToKey(key)}
	}
	return []string{key}
}

// RangeFromKey returns the lower bound key of a date-range filter.
func RangeFromKey(key string) string { return key + "_from" }

// RangeToKey returns the upper bound key of a date-range filter.
func RangeToKey(key string) string { return key + "_to" }

// ValidateFields checks the uniqueness and references of a field set.
func ValidateFields(fields []Field) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("field with label %q has no name", f.Label)
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field name %q", f.Name)
		}
		seen[f.Name] = true
		if f.Kind == FieldSelect && len(f.Options) == 0 {
			return fmt.Errorf("select field %q has no options", f.Name)
		}
	}
	for _, f := range fields {
		if f.Matches != "" && !seen[f.Matches] {
			return fmt.Errorf("field %q matches unknown field %q", f.Name, f.Matches)
		}
	}
	return nil
}

// FieldNames returns the declared names in order.
func FieldNames(fields []Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}
