package core

import "fmt"

// FieldKind is the closed set of input kinds a form field can take.
type FieldKind int

// Field kinds.
const (
	FieldText FieldKind = iota
	FieldEmail
	FieldTel
	FieldNumber
	FieldDate
	FieldTextarea
	FieldSelect
	FieldCheckbox
	FieldToggle
	FieldFile
	FieldPasswordToggle
)

var fieldKindNames = map[FieldKind]string{
	FieldText:           "text",
	FieldEmail:          "email",
	FieldTel:            "tel",
	FieldNumber:         "number",
	FieldDate:           "date",
	FieldTextarea:       "textarea",
	FieldSelect:         "select",
	FieldCheckbox:       "checkbox",
	FieldToggle:         "toggle",
	FieldFile:           "file",
	FieldPasswordToggle: "password-toggle",
}

// String returns the schema spelling of the kind.
func (k FieldKind) String() string {
	if s, ok := fieldKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("FieldKind(%d)", int(k))
}

// ParseFieldKind parses a schema kind string. An empty string means text.
// Unknown kinds are rejected instead of falling back to a text input.
func ParseFieldKind(s string) (FieldKind, error) {
	if s == "" {
		return FieldText, nil
	}
	for k, name := range fieldKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown field type %q", s)
}

// IsBoolean reports whether the kind stores a bool in the value map.
func (k FieldKind) IsBoolean() bool {
	return k == FieldCheckbox || k == FieldToggle
}

// FilterKind is the closed set of per-column filter controls.
type FilterKind int

// Filter kinds.
const (
	FilterText FilterKind = iota
	FilterDate
	FilterDateRange
)

// String returns the schema spelling of the filter kind.
func (k FilterKind) String() string {
	switch k {
	case FilterText:
		return "text"
	case FilterDate:
		return "date"
	case FilterDateRange:
		return "date-range"
	default:
		return fmt.Sprintf("FilterKind(%d)", int(k))
	}
}

// ParseFilterKind parses a schema filter kind. An empty string means text.
func ParseFilterKind(s string) (FilterKind, error) {
	switch s {
	case "", "text":
		return FilterText, nil
	case "date":
		return FilterDate, nil
	case "date-range":
		return FilterDateRange, nil
	default:
		return 0, fmt.Errorf("unknown filter type %q", s)
	}
}
