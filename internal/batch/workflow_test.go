package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/leapstack-labs/docdesk/internal/client"
	"github.com/leapstack-labs/docdesk/internal/testutil"
	"github.com/leapstack-labs/docdesk/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	parsed    client.Columns
	parseErr  error
	createErr error

	parseCalls int
	parsedWith []*core.FileHandle
	created    []client.Columns
}

func (f *fakeBackend) BulkParse(_ context.Context, _ *core.Resource, files []*core.FileHandle) (client.Columns, error) {
	f.parseCalls++
	f.parsedWith = files
	return f.parsed, f.parseErr
}

func (f *fakeBackend) BulkCreate(_ context.Context, _ *core.Resource, cols client.Columns) error {
	f.created = append(f.created, cols)
	return f.createErr
}

func debitNotes(maxFiles int) *core.Resource {
	res := &core.Resource{
		Name: "debitnotes",
		Batch: &core.BatchConfig{
			DocField: "dn_doc",
			MaxFiles: maxFiles,
			Fields: []core.Field{
				{Name: "dn_no", Label: "DN No"},
				{Name: "amount", Label: "Amount", Kind: core.FieldNumber},
			},
		},
	}
	res.ApplyDefaults()
	return res
}

func files(n int) []*core.FileHandle {
	out := make([]*core.FileHandle, n)
	for i := range out {
		out[i] = &core.FileHandle{Name: fmt.Sprintf("dn-%d.pdf", i+1), Data: []byte("%PDF")}
	}
	return out
}

func newWorkflow(t *testing.T, backend *fakeBackend, maxFiles int) *Workflow {
	t.Helper()
	w, err := New(Config{Resource: debitNotes(maxFiles), Backend: backend, Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	return w
}

func TestBatchScenario(t *testing.T) {
	backend := &fakeBackend{parsed: client.Columns{
		"dn_no":  {"DN-1", "DN-2", "DN-3"},
		"amount": {float64(10), float64(20), float64(30)},
		"dn_doc": {"up/dn-1.pdf", "up/dn-2.pdf", "up/dn-3.pdf"},
	}}
	w := newWorkflow(t, backend, 5)

	require.NoError(t, w.AddFiles(files(3)...))
	require.NoError(t, w.Parse(context.Background()))

	snap := w.Snapshot()
	assert.Equal(t, StatusReviewing, snap.Status)
	require.Len(t, snap.Records, 3, "one editable record per file")
	for i, r := range snap.Records {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, fmt.Sprintf("DN-%d", i+1), r.Fields["dn_no"])
		assert.Equal(t, float64((i+1)*10), r.Fields["amount"])
		assert.Equal(t, fmt.Sprintf("up/dn-%d.pdf", i+1), r.ExistingDoc)
	}
	assert.Equal(t, 1, backend.parseCalls, "one call for all files")
	assert.Len(t, backend.parsedWith, 3)

	require.NoError(t, w.SetField(1, "amount", "25.5"))
	require.NoError(t, w.SetField(2, "dn_no", "DN-3A"))

	next, err := w.Submit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "/debitnotes", next)
	require.Len(t, backend.created, 1)
	assert.Equal(t, client.Columns{
		"dn_no":  {"DN-1", "DN-2", "DN-3A"},
		"amount": {float64(10), 25.5, float64(30)},
		"dn_doc": {"up/dn-1.pdf", "up/dn-2.pdf", "up/dn-3.pdf"},
	}, backend.created[0])
	assert.Equal(t, StatusDone, w.Snapshot().Status)
	assert.Empty(t, w.Snapshot().Files, "files released")
}

func TestAddFiles_RejectsWholeAdd(t *testing.T) {
	w := newWorkflow(t, &fakeBackend{}, 3)
	require.NoError(t, w.AddFiles(files(2)...))

	err := w.AddFiles(files(2)...)

	assert.ErrorIs(t, err, ErrTooManyFiles)
	assert.Len(t, w.Snapshot().Files, 2, "nothing truncated in")
}

func TestAddFiles_AssignsIDs(t *testing.T) {
	w := newWorkflow(t, &fakeBackend{}, 5)
	require.NoError(t, w.AddFiles(files(2)...))

	snap := w.Snapshot()
	require.Len(t, snap.Files, 2)
	assert.NotEmpty(t, snap.Files[0].ID)
	assert.NotEqual(t, snap.Files[0].ID, snap.Files[1].ID)

	assert.True(t, w.RemoveFile(snap.Files[0].ID))
	assert.False(t, w.RemoveFile("missing"))
	assert.Len(t, w.Snapshot().Files, 1)
}

func TestParse_FailureKeepsFiles(t *testing.T) {
	backend := &fakeBackend{parseErr: errors.New("ocr unavailable")}
	w := newWorkflow(t, backend, 5)
	require.NoError(t, w.AddFiles(files(3)...))

	err := w.Parse(context.Background())

	require.Error(t, err)
	snap := w.Snapshot()
	assert.Equal(t, StatusCollecting, snap.Status)
	assert.Len(t, snap.Files, 3)
	assert.EqualError(t, snap.Err, "ocr unavailable")

	backend.parseErr = nil
	backend.parsed = client.Columns{"dn_no": {"a", "b", "c"}}
	require.NoError(t, w.Parse(context.Background()), "retry works")
}

func TestParse_ShapeMismatch(t *testing.T) {
	backend := &fakeBackend{parsed: client.Columns{
		"dn_no":  {"DN-1", "DN-2", "DN-3"},
		"amount": {float64(10), float64(20)},
	}}
	w := newWorkflow(t, backend, 5)
	require.NoError(t, w.AddFiles(files(3)...))

	err := w.Parse(context.Background())

	assert.ErrorIs(t, err, ErrShapeMismatch)
	assert.Empty(t, w.Snapshot().Records, "no partial records")
}

func TestParse_NoFiles(t *testing.T) {
	w := newWorkflow(t, &fakeBackend{}, 5)
	assert.ErrorIs(t, w.Parse(context.Background()), ErrNoFiles)
}

func TestSubmit_FailureKeepsEdits(t *testing.T) {
	backend := &fakeBackend{
		parsed:    client.Columns{"dn_no": {"DN-1"}, "dn_doc": {"x.pdf"}},
		createErr: &client.APIError{Status: 422, Message: "duplicate"},
	}
	w := newWorkflow(t, backend, 5)
	require.NoError(t, w.AddFiles(files(1)...))
	require.NoError(t, w.Parse(context.Background()))
	require.NoError(t, w.SetField(0, "dn_no", "DN-9"))

	_, err := w.Submit(context.Background())

	require.Error(t, err)
	snap := w.Snapshot()
	assert.Equal(t, StatusReviewing, snap.Status)
	assert.Equal(t, "DN-9", snap.Records[0].Fields["dn_no"])
}

func TestSetField_WrongStateAndRange(t *testing.T) {
	w := newWorkflow(t, &fakeBackend{parsed: client.Columns{"dn_no": {"a"}}}, 5)
	assert.ErrorIs(t, w.SetField(0, "dn_no", "x"), ErrWrongState)

	require.NoError(t, w.AddFiles(files(1)...))
	require.NoError(t, w.Parse(context.Background()))

	assert.Error(t, w.SetField(4, "dn_no", "x"))
	assert.Error(t, w.SetField(0, "amount", "abc"), "declared number field rejects text")
	require.NoError(t, w.SetField(0, "dn_doc", "replaced.pdf"))
	assert.Equal(t, "replaced.pdf", w.Snapshot().Records[0].ExistingDoc)
}

func TestSetField_RejectsUnknownNames(t *testing.T) {
	backend := &fakeBackend{parsed: client.Columns{"dn_no": {"DN-1"}, "vendor": {"Acme"}, "dn_doc": {"x.pdf"}}}
	w := newWorkflow(t, backend, 5)
	require.NoError(t, w.AddFiles(files(1)...))
	require.NoError(t, w.Parse(context.Background()))

	assert.ErrorIs(t, w.SetField(0, "is_admin", "true"), ErrUnknownField)
	require.NoError(t, w.SetField(0, "vendor", "Acme Ltd"), "parsed column")
	require.NoError(t, w.SetField(0, "amount", "12"), "declared but not parsed")

	_, err := w.Submit(context.Background())
	require.NoError(t, err)
	require.Len(t, backend.created, 1)
	assert.NotContains(t, backend.created[0], "is_admin")
	assert.Equal(t, []any{"Acme Ltd"}, backend.created[0]["vendor"])
	assert.Equal(t, []any{float64(12)}, backend.created[0]["amount"])
}

func TestPivotOrdersByIndex(t *testing.T) {
	records := []Record{
		{Index: 1, Fields: core.Values{"a": "second"}, Folder: "f2"},
		{Index: 0, Fields: core.Values{"a": "first"}},
	}

	cols := Pivot(records, "doc")

	assert.Equal(t, []any{"first", "second"}, cols["a"])
	assert.Equal(t, []any{"", ""}, cols["doc"])
	assert.Equal(t, []any{"", "f2"}, cols[FolderKey])
}

func TestNew_RequiresBatchConfig(t *testing.T) {
	_, err := New(Config{Resource: &core.Resource{Name: "customers"}})
	assert.Error(t, err)
}
