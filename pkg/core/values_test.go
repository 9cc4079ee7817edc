package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastPageFor(t *testing.T) {
	for total := 0; total <= 120; total++ {
		for _, perPage := range []int{1, 7, 10, 25, 100} {
			want := total / perPage
			if total%perPage != 0 {
				want++
			}
			assert.Equal(t, want, LastPageFor(total, perPage), "total=%d perPage=%d", total, perPage)
		}
	}
}

func TestResultPages(t *testing.T) {
	assert.Equal(t, 1, Result{LastPage: 0}.Pages())
	assert.Equal(t, 4, Result{LastPage: 4}.Pages())
}

func TestParseFieldKind(t *testing.T) {
	for kind, name := range fieldKindNames {
		got, err := ParseFieldKind(name)
		require.NoError(t, err)
		assert.Equal(t, kind, got)
		assert.Equal(t, name, kind.String())
	}

	got, err := ParseFieldKind("")
	require.NoError(t, err)
	assert.Equal(t, FieldText, got)

	_, err = ParseFieldKind("colour")
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	fields := []Field{
		{Name: "title", Kind: FieldText},
		{Name: "active", Kind: FieldToggle},
		{Name: "agree", Kind: FieldCheckbox},
		{Name: "doc", Kind: FieldFile},
		{Name: "status", Kind: FieldSelect, Default: "draft"},
	}

	got := Defaults(fields)

	assert.Equal(t, Values{
		"title":  "",
		"active": false,
		"agree":  false,
		"doc":    nil,
		"status": "draft",
	}, got)
}

func TestIsBlank(t *testing.T) {
	var nilFile *FileHandle

	tests := []struct {
		name  string
		kind  FieldKind
		value any
		want  bool
	}{
		{"nil text", FieldText, nil, true},
		{"empty text", FieldText, "", true},
		{"whitespace text", FieldText, "   ", true},
		{"text", FieldText, "x", false},
		{"zero number", FieldNumber, float64(0), false},
		{"empty number", FieldNumber, "", true},
		{"false toggle", FieldToggle, false, false},
		{"false checkbox", FieldCheckbox, false, false},
		{"nil toggle", FieldToggle, nil, true},
		{"nil file", FieldFile, nil, true},
		{"typed nil file", FieldFile, nilFile, true},
		{"file", FieldFile, &FileHandle{Name: "a.pdf"}, false},
		{"empty select", FieldSelect, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBlank(tt.kind, tt.value))
		})
	}
}

func TestValuesProjectDropsUnknownKeys(t *testing.T) {
	fields := []Field{{Name: "a"}, {Name: "b"}}
	v := Values{"a": "1", "b": "2", "created_at": "x", "secret": "y"}

	got := v.Project(fields)

	assert.Equal(t, Values{"a": "1", "b": "2"}, got)
}

func TestValuesHasFile(t *testing.T) {
	var nilFile *FileHandle
	assert.False(t, Values{"a": "x", "doc": nil}.HasFile())
	assert.False(t, Values{"doc": nilFile}.HasFile())
	assert.True(t, Values{"doc": &FileHandle{Name: "a.pdf"}}.HasFile())
}

func TestColumnFilterKeys(t *testing.T) {
	tests := []struct {
		name string
		col  Column
		want []string
	}{
		{"accessor", Column{Header: "No", Accessor: "invoice_no"}, []string{"invoice_no"}},
		{"explicit key", Column{Header: "Customer", Accessor: "customer_name", FilterKey: "customer"}, []string{"customer"}},
		{"date range", Column{Header: "Date", Accessor: "date", Filter: FilterDateRange}, []string{"date_from", "date_to"}},
		{"disabled", Column{Header: "Amount", Accessor: "amount", DisableFilter: true}, nil},
		{"render only", Column{Header: "Status", Render: "row['status']"}, nil},
		{"nothing", Column{Header: "Empty", FilterKey: "x"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.col.FilterKeys())
		})
	}
}

func TestResourceValidate(t *testing.T) {
	r := &Resource{
		Name:   "debitnotes",
		Fields: []Field{{Name: "dn_no"}, {Name: "dn_no"}},
	}
	assert.ErrorContains(t, r.Validate(), "duplicate field name")

	r = &Resource{
		Name:    "debitnotes",
		Fields:  []Field{{Name: "dn_no"}},
		Flatten: []Flatten{{Path: "a.b.c", Field: "dn_no"}},
	}
	assert.ErrorContains(t, r.Validate(), "one level deep")

	r = &Resource{
		Name:   "debitnotes",
		Fields: []Field{{Name: "dn_no"}},
		Batch:  &BatchConfig{},
	}
	assert.ErrorContains(t, r.Validate(), "doc_field")

	r = &Resource{
		Name:    "debitnotes",
		Fields:  []Field{{Name: "dn_no"}},
		Columns: []Column{{Header: "No", Accessor: "dn_no"}},
		Batch:   &BatchConfig{DocField: "dn_doc"},
	}
	r.ApplyDefaults()
	require.NoError(t, r.Validate())
	assert.Equal(t, "debitnotes", r.Endpoint)
	assert.Equal(t, DefaultPerPage, r.PerPage)
	assert.Equal(t, DefaultMaxBatchFiles, r.Batch.MaxFiles)
}

func TestRecordID(t *testing.T) {
	r := &Resource{Name: "invoices"}
	r.ApplyDefaults()

	assert.Equal(t, "42", r.RecordID(Record{"id": float64(42)}))
	assert.Equal(t, "abc", r.RecordID(Record{"id": "abc"}))
	assert.Equal(t, "", r.RecordID(Record{"name": "x"}))
}

func TestQueryURLValues(t *testing.T) {
	q := Query{Page: 2, PerPage: 25, Search: "acme", Filters: map[string]string{"date_from": "2024-01-01", "status": ""}}

	v := q.URLValues()

	assert.Equal(t, "2", v.Get("page"))
	assert.Equal(t, "25", v.Get("per_page"))
	assert.Equal(t, "acme", v.Get("search"))
	assert.Equal(t, "2024-01-01", v.Get("date_from"))
	assert.False(t, v.Has("status"))
}
