package script

import (
	"testing"

	"github.com/leapstack-labs/docdesk/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Cell(t *testing.T) {
	e := NewEngine()
	row := core.Record{
		"invoice_no": "INV-001",
		"amount":     float64(1234.5),
		"qty":        float64(3),
		"paid":       true,
		"issued_at":  "2024-03-05T10:00:00Z",
		"customer":   map[string]any{"name": "Acme"},
	}

	tests := []struct {
		name    string
		col     core.Column
		want    string
		wantErr bool
	}{
		{
			name: "accessor",
			col:  core.Column{Header: "No", Accessor: "invoice_no"},
			want: "INV-001",
		},
		{
			name: "whole number accessor",
			col:  core.Column{Header: "Qty", Accessor: "qty"},
			want: "3",
		},
		{
			name: "missing accessor",
			col:  core.Column{Header: "Ref", Accessor: "ref"},
			want: "",
		},
		{
			name: "nothing to display",
			col:  core.Column{Header: "Empty"},
			want: "",
		},
		{
			name: "conditional render",
			col:  core.Column{Header: "Status", Render: `"Paid" if row["paid"] else "Open"`},
			want: "Paid",
		},
		{
			name: "nested access",
			col:  core.Column{Header: "Customer", Render: `row["customer"]["name"]`},
			want: "Acme",
		},
		{
			name: "money builtin",
			col:  core.Column{Header: "Amount", Render: `money(row["amount"])`},
			want: "1,234.50",
		},
		{
			name: "date builtin",
			col:  core.Column{Header: "Issued", Render: `date(row["issued_at"])`},
			want: "2024-03-05",
		},
		{
			name: "coalesce builtin",
			col:  core.Column{Header: "Ref", Render: `coalesce(row.get("ref"), "-")`},
			want: "-",
		},
		{
			name:    "undefined name",
			col:     core.Column{Header: "Bad", Render: `nope`},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Cell(tt.col, row)
			if tt.wantErr {
				var evalErr *EvalError
				assert.ErrorAs(t, err, &evalErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEngine_OnChange(t *testing.T) {
	e := NewEngine()
	field := core.Field{
		Name: "status",
		OnChange: `
if value == "paid":
    set("paid_amount", values["amount"])
    set("note", "settled")
else:
    set("paid_amount", 0)
`,
	}

	updates, err := e.OnChange(field, core.Values{"status": "paid", "amount": float64(80)})
	require.NoError(t, err)
	assert.Equal(t, core.Values{"paid_amount": float64(80), "note": "settled"}, updates)

	updates, err = e.OnChange(field, core.Values{"status": "open", "amount": float64(80)})
	require.NoError(t, err)
	assert.Equal(t, core.Values{"paid_amount": float64(0)}, updates)
}

func TestEngine_OnChangeCannotMutateSnapshot(t *testing.T) {
	e := NewEngine()
	field := core.Field{Name: "a", OnChange: `values["b"] = 1`}

	_, err := e.OnChange(field, core.Values{"a": "x"})

	assert.Error(t, err)
}

func TestEngine_OnChangeEmpty(t *testing.T) {
	updates, err := NewEngine().OnChange(core.Field{Name: "a"}, core.Values{"a": "x"})
	require.NoError(t, err)
	assert.Empty(t, updates)
}

func TestEngine_StepLimit(t *testing.T) {
	e := NewEngine(WithMaxSteps(1000))
	field := core.Field{Name: "a", OnChange: `
for i in range(1000000):
    set("a", i)
`}

	_, err := e.OnChange(field, core.Values{})

	assert.Error(t, err)
}

func TestEngine_Check(t *testing.T) {
	e := NewEngine()

	ok := &core.Resource{
		Name:    "invoices",
		Columns: []core.Column{{Header: "Amount", Render: `money(row["amount"])`}},
		Fields:  []core.Field{{Name: "status", OnChange: "if value:\n    set(\"x\", 1)\n"}},
	}
	assert.NoError(t, e.Check(ok))

	bad := &core.Resource{
		Name:    "invoices",
		Columns: []core.Column{{Header: "Amount", Render: `fmt(row["amount"])`}},
		Fields:  []core.Field{{Name: "status", OnChange: "if value\n"}},
	}
	err := e.Check(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "Amount"`)
	assert.Contains(t, err.Error(), `field "status"`)
}

func TestGoToStarlarkRoundTrip(t *testing.T) {
	in := map[string]any{
		"s":    "x",
		"n":    float64(2.5),
		"b":    true,
		"nil":  nil,
		"list": []any{"a", float64(1)},
	}

	sv, err := GoToStarlark(in)
	require.NoError(t, err)
	out, err := ToGo(sv)
	require.NoError(t, err)

	assert.Equal(t, in, out)
}

func TestGoToStarlarkFileHandle(t *testing.T) {
	sv, err := GoToStarlark(&core.FileHandle{Name: "dn.pdf"})
	require.NoError(t, err)
	assert.Equal(t, `"dn.pdf"`, sv.String())

	_, err = GoToStarlark(struct{}{})
	assert.Error(t, err)
}
