// Package schema loads resource schemas from YAML files.
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/leapstack-labs/docdesk/pkg/core"
	"github.com/spf13/cast"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// optionYAML is an internal type for YAML unmarshaling.
type optionYAML struct {
	Value string `yaml:"value"`
	Label string `yaml:"label"`
}

// fieldYAML is an internal type for YAML unmarshaling.
type fieldYAML struct {
	Name        string       `yaml:"name"`
	Label       string       `yaml:"label"`
	Type        string       `yaml:"type"`
	Required    bool         `yaml:"required"`
	Options     []optionYAML `yaml:"options"`
	Searchable  bool         `yaml:"searchable"`
	Placeholder string       `yaml:"placeholder"`
	ColSpan     int          `yaml:"col_span"`
	OnChange    string       `yaml:"on_change"`
	Disabled    bool         `yaml:"disabled"`
	Default     any          `yaml:"default"`
	MinLength   int          `yaml:"min_length"`
	MaxLength   int          `yaml:"max_length"`
	Matches     string       `yaml:"matches"`
}

// columnYAML is an internal type for YAML unmarshaling.
type columnYAML struct {
	Header        string `yaml:"header"`
	Accessor      string `yaml:"accessor"`
	FilterKey     string `yaml:"filter_key"`
	FilterType    string `yaml:"filter_type"`
	Render        string `yaml:"render"`
	DisableFilter bool   `yaml:"disable_filter"`
}

// batchYAML is an internal type for YAML unmarshaling.
type batchYAML struct {
	Enabled  bool        `yaml:"enabled"`
	DocField string      `yaml:"doc_field"`
	MaxFiles int         `yaml:"max_files"`
	Fields   []fieldYAML `yaml:"fields"`
}

// resourceYAML is an internal type for YAML unmarshaling.
type resourceYAML struct {
	Name      string            `yaml:"name"`
	Label     string            `yaml:"label"`
	Endpoint  string            `yaml:"endpoint"`
	IDKey     string            `yaml:"id_key"`
	PerPage   int               `yaml:"per_page"`
	Singleton bool              `yaml:"singleton"`
	Flatten   map[string]string `yaml:"flatten"`
	Columns   []columnYAML      `yaml:"columns"`
	Fields    []fieldYAML       `yaml:"fields"`
	Batch     *batchYAML        `yaml:"batch"`
}

// ParseError reports a schema file that could not be decoded or validated.
type ParseError struct {
	File    string
	Message string
}

func (e *ParseError) Error() string {
	if e.File == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Parse decodes one resource schema. Unknown keys are rejected.
// The name defaults to the file base name.
func Parse(r io.Reader, filename string) (*core.Resource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{File: filename, Message: err.Error()}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var raw resourceYAML
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ParseError{File: filename, Message: fmt.Sprintf("invalid YAML: %v", err)}
	}

	if raw.Name == "" && filename != "" {
		base := filepath.Base(filename)
		raw.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	res, err := convertResource(raw)
	if err != nil {
		return nil, &ParseError{File: filename, Message: err.Error()}
	}

	res.ApplyDefaults()
	if err := res.Validate(); err != nil {
		return nil, &ParseError{File: filename, Message: err.Error()}
	}
	return res, nil
}

// LoadFile parses a single schema file.
func LoadFile(path string) (*core.Resource, error) {
	f, err := os.Open(path) //nolint:gosec // schema paths come from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open schema: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f, path)
}

// LoadDir parses every *.yaml and *.yml file in dir.
// All broken files are reported together; valid ones are still returned.
func LoadDir(dir string) ([]*core.Resource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read schemas directory: %w", err)
	}

	var (
		resources []*core.Resource
		errs      *multierror.Error
		seen      = make(map[string]string)
	)
	for _, e := range entries {
		if e.IsDir() || !IsSchemaFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		res, err := LoadFile(path)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if prev, dup := seen[res.Name]; dup {
			errs = multierror.Append(errs, &ParseError{
				File:    path,
				Message: fmt.Sprintf("resource %q already defined in %s", res.Name, prev),
			})
			continue
		}
		seen[res.Name] = path
		resources = append(resources, res)
	}

	sort.Slice(resources, func(i, j int) bool {
		return resources[i].Name < resources[j].Name
	})
	return resources, errs.ErrorOrNil()
}

// IsSchemaFile reports whether a file name looks like a schema file.
func IsSchemaFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}

func convertResource(raw resourceYAML) (*core.Resource, error) {
	res := &core.Resource{
		Name:      raw.Name,
		Label:     raw.Label,
		Endpoint:  raw.Endpoint,
		IDKey:     raw.IDKey,
		PerPage:   raw.PerPage,
		Singleton: raw.Singleton,
	}
	if res.Label == "" {
		res.Label = Title(raw.Name)
	}

	paths := make([]string, 0, len(raw.Flatten))
	for p := range raw.Flatten {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		res.Flatten = append(res.Flatten, core.Flatten{Path: p, Field: raw.Flatten[p]})
	}

	for i, c := range raw.Columns {
		kind, err := core.ParseFilterKind(c.FilterType)
		if err != nil {
			return nil, fmt.Errorf("column %d (%s): %w", i, c.Header, err)
		}
		res.Columns = append(res.Columns, core.Column{
			Header:        c.Header,
			Accessor:      c.Accessor,
			FilterKey:     c.FilterKey,
			Filter:        kind,
			Render:        c.Render,
			DisableFilter: c.DisableFilter,
		})
	}

	fields, err := convertFields(raw.Fields)
	if err != nil {
		return nil, err
	}
	res.Fields = fields

	if raw.Batch != nil && raw.Batch.Enabled {
		batchFields, err := convertFields(raw.Batch.Fields)
		if err != nil {
			return nil, fmt.Errorf("batch: %w", err)
		}
		res.Batch = &core.BatchConfig{
			DocField: raw.Batch.DocField,
			MaxFiles: raw.Batch.MaxFiles,
			Fields:   batchFields,
		}
	}
	return res, nil
}

func convertFields(raw []fieldYAML) ([]core.Field, error) {
	fields := make([]core.Field, 0, len(raw))
	for _, f := range raw {
		kind, err := core.ParseFieldKind(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		label := f.Label
		if label == "" {
			label = Title(strings.ReplaceAll(f.Name, "_", " "))
		}
		field := core.Field{
			Name:        f.Name,
			Label:       label,
			Kind:        kind,
			Required:    f.Required,
			Searchable:  f.Searchable,
			Placeholder: f.Placeholder,
			ColSpan:     f.ColSpan,
			OnChange:    f.OnChange,
			Disabled:    f.Disabled,
			Default:     normalizeDefault(kind, f.Default),
			MinLength:   f.MinLength,
			MaxLength:   f.MaxLength,
			Matches:     f.Matches,
		}
		for _, o := range f.Options {
			opt := core.Option{Value: o.Value, Label: o.Label}
			if opt.Label == "" {
				opt.Label = opt.Value
			}
			field.Options = append(field.Options, opt)
		}
		fields = append(fields, field)
	}
	return fields, nil
}

// normalizeDefault maps YAML scalars onto the value map types.
func normalizeDefault(kind core.FieldKind, v any) any {
	if v == nil {
		return nil
	}
	switch kind {
	case core.FieldNumber:
		return cast.ToFloat64(v)
	case core.FieldCheckbox, core.FieldToggle:
		return cast.ToBool(v)
	case core.FieldFile:
		return nil
	default:
		return cast.ToString(v)
	}
}

// Title turns a resource or field name into a display label.
func Title(s string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(s, "-", " "))
}
