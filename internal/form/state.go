// Package form holds the state of one rendered form: the value map, field
// errors, password visibility and searchable select widgets.
package form

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/leapstack-labs/docdesk/pkg/core"
)

// SubmitFunc sends projected values to the backend.
type SubmitFunc func(ctx context.Context, values core.Values) error

// Form is the state of one form instance. File handles in the value map
// belong to this instance only.
type Form struct {
	fields []core.Field

	mu      sync.Mutex
	values  core.Values
	errors  map[string]string
	visible map[string]bool
	selects map[string]*SearchableSelect

	// rejected holds decode failures; they survive Validate until the
	// field receives a value that decodes.
	rejected map[string]string
}

// New creates a form seeded with field defaults overlaid by initial.
// Keys that are not declared fields are dropped.
func New(fields []core.Field, initial core.Values) *Form {
	f := &Form{
		fields:   fields,
		errors:   make(map[string]string),
		rejected: make(map[string]string),
		visible:  make(map[string]bool),
		selects:  make(map[string]*SearchableSelect),
	}
	for _, field := range fields {
		if field.Kind == core.FieldSelect && field.Searchable {
			f.selects[field.Name] = NewSearchableSelect(field.Options)
		}
	}
	f.Seed(initial)
	return f
}

// Fields returns the descriptors driving the form.
func (f *Form) Fields() []core.Field {
	return f.fields
}

// Field returns the named descriptor.
func (f *Form) Field(name string) (core.Field, bool) {
	for _, field := range f.fields {
		if field.Name == name {
			return field, true
		}
	}
	return core.Field{}, false
}

// Seed replaces the value map wholesale with defaults overlaid by loaded,
// projected onto the declared names. Errors are cleared.
func (f *Form) Seed(loaded core.Values) {
	values := core.Defaults(f.fields)
	for k, v := range loaded.Project(f.fields) {
		values[k] = v
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = values
	f.errors = make(map[string]string)
	f.rejected = make(map[string]string)
}

// Set stores a decoded value and clears only that field's error.
// It reports false for undeclared names.
func (f *Form) Set(name string, value any) bool {
	if _, ok := f.Field(name); !ok {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[name] = value
	delete(f.errors, name)
	delete(f.rejected, name)
	return true
}

// SetRaw decodes a submitted value for the field kind and stores it.
// When decoding fails the raw input is kept for display and the field is
// marked rejected, which blocks Submit until a decodable value replaces it.
func (f *Form) SetRaw(name string, raw any) error {
	field, ok := f.Field(name)
	if !ok {
		return fmt.Errorf("unknown field %q", name)
	}
	v, err := Decode(field, raw)
	if err != nil {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.values[name] = raw
		f.errors[name] = err.Error()
		f.rejected[name] = err.Error()
		return err
	}
	f.Set(name, v)
	return nil
}

// ClearFile resets a file field to nil without opening a picker.
func (f *Form) ClearFile(name string) {
	f.Set(name, nil)
}

// Apply merges updates from an on_change handler. Undeclared names are
// ignored and returned.
func (f *Form) Apply(updates core.Values) []string {
	var ignored []string
	for k, v := range updates {
		field, ok := f.Field(k)
		if !ok {
			ignored = append(ignored, k)
			continue
		}
		if decoded, err := Decode(field, v); err == nil {
			v = decoded
		}
		f.Set(k, v)
	}
	return ignored
}

// Value returns one value.
func (f *Form) Value(name string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[name]
}

// Values returns a copy of the value map projected onto the declared fields.
func (f *Form) Values() core.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values.Project(f.fields)
}

// Errors returns a copy of the current errors.
func (f *Form) Errors() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return maps.Clone(f.errors)
}

// Error returns the error of one field or of the submit key.
func (f *Form) Error(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errors[name]
}

// SetError records an error under a field name or SubmitErrorKey.
func (f *Form) SetError(key, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[key] = msg
}

// DismissSubmitError clears the form-level banner.
func (f *Form) DismissSubmitError() {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.errors, SubmitErrorKey)
}

// Validate runs the field rules and replaces the error map with the result.
// Rejected inputs stay in the map over any rule error for the same field.
func (f *Form) Validate() bool {
	values := f.Values()
	errs := Validate(f.fields, values)

	f.mu.Lock()
	defer f.mu.Unlock()
	maps.Copy(errs, f.rejected)
	f.errors = errs
	return len(errs) == 0
}

// Submit validates and, when valid, sends the projected values. A blocked
// submit returns ErrInvalid without calling send. A failed send sets the
// submit error and keeps the values.
func (f *Form) Submit(ctx context.Context, send SubmitFunc) error {
	if !f.Validate() {
		return ErrInvalid
	}
	if err := send(ctx, f.Values()); err != nil {
		f.SetError(SubmitErrorKey, err.Error())
		return err
	}
	return nil
}

// Release drops file handles after a finished or cancelled submit.
func (f *Form) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, field := range f.fields {
		if field.Kind == core.FieldFile {
			f.values[field.Name] = nil
		}
	}
}

// TogglePassword flips the visibility of one password field.
func (f *Form) TogglePassword(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible[name] = !f.visible[name]
	return f.visible[name]
}

// PasswordVisible reports whether a password field is shown in clear text.
func (f *Form) PasswordVisible(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible[name]
}

// Select returns the combobox state of a searchable select field.
func (f *Form) Select(name string) (*SearchableSelect, bool) {
	s, ok := f.selects[name]
	return s, ok
}
