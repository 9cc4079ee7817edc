package form

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/leapstack-labs/docdesk/pkg/core"
)

// ErrInvalid is returned when a submit is blocked by field errors.
var ErrInvalid = errors.New("form has invalid fields")

// SubmitErrorKey keys the form-level error set when the backend rejects a submit.
const SubmitErrorKey = "submit"

// Validate checks required, length and match rules and returns the errors
// keyed by field name. An empty map means the values may be submitted.
//
// Required rule per kind: checkbox and toggle are never missing; file is
// missing when nil; number is missing when nil or ""; every other kind is
// missing when nil or blank.
func Validate(fields []core.Field, values core.Values) map[string]string {
	errs := make(map[string]string)
	for _, f := range fields {
		v := values[f.Name]
		if f.Required && core.IsBlank(f.Kind, v) {
			errs[f.Name] = fmt.Sprintf("%s is required", f.Label)
			continue
		}

		s, isString := v.(string)
		if isString && s != "" {
			n := utf8.RuneCountInString(s)
			if f.MinLength > 0 && n < f.MinLength {
				errs[f.Name] = fmt.Sprintf("%s must be at least %d characters", f.Label, f.MinLength)
				continue
			}
			if f.MaxLength > 0 && n > f.MaxLength {
				errs[f.Name] = fmt.Sprintf("%s must be at most %d characters", f.Label, f.MaxLength)
				continue
			}
		}

		if f.Matches != "" && !equalValues(v, values[f.Matches]) {
			errs[f.Name] = fmt.Sprintf("%s does not match", f.Label)
		}
	}
	return errs
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
