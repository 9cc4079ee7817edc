package core

import (
	"fmt"
	"strings"
)

// DefaultPerPage is used when a resource does not declare a page size.
const DefaultPerPage = 25

// DefaultMaxBatchFiles bounds a batch upload when the resource does not.
const DefaultMaxBatchFiles = 20

// Flatten maps one nested record path onto a flat form field.
type Flatten struct {
	// Path is a one-level dotted path such as "user.id"
	Path string
	// Field is the form field receiving the value, such as "user_id"
	Field string
}

// BatchConfig enables the batch upload tab of a resource.
type BatchConfig struct {
	// DocField names the parsed field holding the existing document reference
	DocField string
	// MaxFiles rejects adds that would exceed this many files
	MaxFiles int
	// Fields lists the editable parsed fields in review order
	Fields []Field
}

// Resource is the schema that drives list, form and batch views of one entity.
type Resource struct {
	// Name is the URL segment, e.g. "invoices"
	Name string
	// Label is the human title
	Label string
	// Endpoint is the backend route prefix (defaults to Name)
	Endpoint string
	// IDKey is the record key holding the identifier (defaults to "id")
	IDKey string
	// PerPage is the default page size
	PerPage int
	// Singleton resources have no id but always use update semantics
	Singleton bool
	// Flatten lists nested relations copied into flat fields on edit
	Flatten []Flatten
	// Columns drive the list table
	Columns []Column
	// Fields drive the add and edit forms
	Fields []Field
	// Batch is nil when batch upload is disabled
	Batch *BatchConfig
}

// ApplyDefaults fills unset optional values.
func (r *Resource) ApplyDefaults() {
	if r.Endpoint == "" {
		r.Endpoint = r.Name
	}
	if r.IDKey == "" {
		r.IDKey = "id"
	}
	if r.PerPage <= 0 {
		r.PerPage = DefaultPerPage
	}
	if r.Label == "" {
		r.Label = r.Name
	}
	if r.Batch != nil && r.Batch.MaxFiles <= 0 {
		r.Batch.MaxFiles = DefaultMaxBatchFiles
	}
}

// Validate checks the schema invariants.
func (r *Resource) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("resource has no name")
	}
	if strings.ContainsAny(r.Name, "/ ?#") {
		return fmt.Errorf("resource name %q is not a URL segment", r.Name)
	}
	if err := ValidateFields(r.Fields); err != nil {
		return fmt.Errorf("resource %s: %w", r.Name, err)
	}
	filterKeys := make(map[string]bool)
	for _, c := range r.Columns {
		for _, k := range c.FilterKeys() {
			if filterKeys[k] {
				return fmt.Errorf("resource %s: duplicate filter key %q", r.Name, k)
			}
			filterKeys[k] = true
		}
	}
	for _, fl := range r.Flatten {
		parts := strings.Split(fl.Path, ".")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return fmt.Errorf("resource %s: flatten path %q must be one level deep", r.Name, fl.Path)
		}
	}
	if r.Batch != nil {
		if r.Batch.DocField == "" {
			return fmt.Errorf("resource %s: batch upload needs a doc_field", r.Name)
		}
		if err := ValidateFields(r.Batch.Fields); err != nil {
			return fmt.Errorf("resource %s batch: %w", r.Name, err)
		}
	}
	return nil
}

// Field returns the named field.
func (r *Resource) Field(name string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ColumnForFilter returns the column owning the given filter key.
func (r *Resource) ColumnForFilter(key string) (Column, bool) {
	for _, c := range r.Columns {
		for _, k := range c.FilterKeys() {
			if k == key {
				return c, true
			}
		}
	}
	return Column{}, false
}

// RecordID extracts the identifier of a record as a string.
func (r *Resource) RecordID(rec Record) string {
	v, ok := rec[r.IDKey]
	if !ok || v == nil {
		return ""
	}
	switch id := v.(type) {
	case string:
		return id
	case float64:
		if id == float64(int64(id)) {
			return fmt.Sprintf("%d", int64(id))
		}
		return fmt.Sprintf("%g", id)
	default:
		return fmt.Sprint(id)
	}
}
