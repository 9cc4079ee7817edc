package core

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Record is one backend row as decoded from JSON.
type Record map[string]any

// Values is the form value map. Entries hold string, float64, bool,
// *FileHandle or nil.
type Values map[string]any

// FileHandle is an uploaded file held in memory by exactly one form or
// batch workflow.
type FileHandle struct {
	// ID is a synthetic identifier assigned on upload
	ID string
	// Name is the client file name
	Name string
	// ContentType is the declared MIME type
	ContentType string
	// Data holds the file content
	Data []byte
}

// Size returns the content length in bytes.
func (f *FileHandle) Size() int64 {
	return int64(len(f.Data))
}

// Reader opens the content for streaming.
func (f *FileHandle) Reader() io.Reader {
	return bytes.NewReader(f.Data)
}

// Clone returns a shallow copy of the map.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// HasFile reports whether any entry is a non-nil file handle.
func (v Values) HasFile() bool {
	for _, val := range v {
		if fh, ok := val.(*FileHandle); ok && fh != nil {
			return true
		}
	}
	return false
}

// Project keeps only the declared field names. Missing names are not added.
func (v Values) Project(fields []Field) Values {
	out := make(Values, len(fields))
	for _, f := range fields {
		if val, ok := v[f.Name]; ok {
			out[f.Name] = val
		}
	}
	return out
}

// Defaults builds the initial value map of a field set.
func Defaults(fields []Field) Values {
	out := make(Values, len(fields))
	for _, f := range fields {
		switch {
		case f.Default != nil:
			out[f.Name] = f.Default
		case f.Kind.IsBoolean():
			out[f.Name] = false
		case f.Kind == FieldFile:
			out[f.Name] = nil
		default:
			out[f.Name] = ""
		}
	}
	return out
}

// IsBlank reports whether a value counts as missing for a required field of
// the given kind. Booleans are never missing; false is a value.
func IsBlank(kind FieldKind, v any) bool {
	if v == nil {
		return true
	}
	switch kind {
	case FieldCheckbox, FieldToggle:
		return false
	case FieldFile:
		fh, ok := v.(*FileHandle)
		return !ok || fh == nil
	default:
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s) == ""
		}
		return false
	}
}

// DisplayValue renders a record value as plain cell text.
// Whole floats print without a decimal point.
func DisplayValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "Yes"
		}
		return "No"
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case *FileHandle:
		if val == nil {
			return ""
		}
		return val.Name
	default:
		return fmt.Sprint(val)
	}
}
