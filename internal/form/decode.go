package form

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/docdesk/pkg/core"
	"github.com/spf13/cast"
)

// DateLayout is the value format of date inputs.
const DateLayout = "2006-01-02"

// Decode converts a submitted form or signal value to the value map type of
// the field kind. Empty numbers stay "" so the required rule can see them.
func Decode(f core.Field, raw any) (any, error) {
	switch f.Kind {
	case core.FieldCheckbox, core.FieldToggle:
		if s, ok := raw.(string); ok {
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "on", "yes", "checked":
				return true, nil
			case "", "off", "no":
				return false, nil
			}
		}
		if raw == nil {
			return false, nil
		}
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: not a boolean: %w", f.Name, err)
		}
		return b, nil

	case core.FieldNumber:
		if raw == nil {
			return nil, nil
		}
		if s, ok := raw.(string); ok && strings.TrimSpace(s) == "" {
			return "", nil
		}
		n, err := cast.ToFloat64E(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: not a number: %w", f.Name, err)
		}
		return n, nil

	case core.FieldFile:
		switch v := raw.(type) {
		case nil:
			return nil, nil
		case *core.FileHandle:
			if v == nil {
				return nil, nil
			}
			return v, nil
		default:
			return nil, fmt.Errorf("%s: file fields take uploads only", f.Name)
		}

	case core.FieldDate:
		s := cast.ToString(raw)
		return NormalizeDate(s), nil

	case core.FieldText, core.FieldEmail, core.FieldTel, core.FieldTextarea,
		core.FieldSelect, core.FieldPasswordToggle:
		if raw == nil {
			return "", nil
		}
		s, err := cast.ToStringE(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: not text: %w", f.Name, err)
		}
		return s, nil

	default:
		return nil, fmt.Errorf("%s: unsupported field kind %s", f.Name, f.Kind)
	}
}

// NormalizeDate trims ISO-8601 timestamps to YYYY-MM-DD, keeping the date
// as written rather than converting zones. Other strings are returned unchanged.
func NormalizeDate(s string) string {
	if len(s) <= len(DateLayout) || (s[10] != 'T' && s[10] != ' ') {
		return s
	}
	if _, err := time.Parse(DateLayout, s[:len(DateLayout)]); err != nil {
		return s
	}
	return s[:len(DateLayout)]
}
