package resourceform

import (
	"context"
	"errors"
	"testing"

	"github.com/leapstack-labs/docdesk/internal/client"
	"github.com/leapstack-labs/docdesk/internal/form"
	"github.com/leapstack-labs/docdesk/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeResources records create and update calls.
type fakeResources struct {
	client.Resources

	record    core.Record
	getErr    error
	submitErr error

	creates []client.Body
	updates []client.Body
	ids     []string
}

func (f *fakeResources) Get(_ context.Context, _ *core.Resource, id string) (core.Record, error) {
	f.ids = append(f.ids, id)
	return f.record, f.getErr
}

func (f *fakeResources) Create(_ context.Context, _ *core.Resource, body client.Body) (core.Record, error) {
	f.creates = append(f.creates, body)
	return core.Record{"id": float64(1)}, f.submitErr
}

func (f *fakeResources) Update(_ context.Context, _ *core.Resource, id string, body client.Body) (core.Record, error) {
	f.ids = append(f.ids, id)
	f.updates = append(f.updates, body)
	return core.Record{"id": id}, f.submitErr
}

func debitNotes() *core.Resource {
	res := &core.Resource{
		Name: "debitnotes",
		Flatten: []core.Flatten{
			{Path: "customer.id", Field: "customer_id"},
		},
		Fields: []core.Field{
			{Name: "dn_no", Label: "DN No", Required: true},
			{Name: "dn_date", Label: "Date", Kind: core.FieldDate},
			{Name: "customer_id", Label: "Customer", Kind: core.FieldSelect, Options: []core.Option{{Value: "7", Label: "Acme"}}},
			{Name: "dn_doc", Label: "Document", Kind: core.FieldFile},
		},
	}
	res.ApplyDefaults()
	return res
}

func TestModeDetection(t *testing.T) {
	res := debitNotes()

	assert.False(t, New(Config{Resource: res}).Edit())
	assert.True(t, New(Config{Resource: res, ID: "5"}).Edit())
	assert.True(t, New(Config{Resource: res, ForceEdit: true}).Edit())

	singleton := &core.Resource{Name: "password", Singleton: true}
	assert.True(t, New(Config{Resource: singleton}).Edit())
}

func TestLoad_FlattensAndProjects(t *testing.T) {
	fake := &fakeResources{record: core.Record{
		"id":         float64(5),
		"dn_no":      "DN-5",
		"dn_date":    "2024-02-10T00:00:00.000000Z",
		"customer":   map[string]any{"id": float64(7), "name": "Acme"},
		"dn_doc":     "uploads/dn-5.pdf",
		"created_at": "2024-02-10T08:00:00Z",
		"internal":   "secret",
	}}
	rf := New(Config{Resource: debitNotes(), Client: fake, ID: "5"})

	require.NoError(t, rf.Load(context.Background()))

	assert.Equal(t, []string{"5"}, fake.ids)
	assert.Equal(t, core.Values{
		"dn_no":       "DN-5",
		"dn_date":     "2024-02-10",
		"customer_id": "7",
		"dn_doc":      nil,
	}, rf.Form().Values(), "only declared fields survive")
	assert.Equal(t, "uploads/dn-5.pdf", rf.Record()["dn_doc"])
}

func TestLoad_ErrorPropagatesUnauthorized(t *testing.T) {
	var hooked error
	fake := &fakeResources{getErr: client.ErrUnauthorized}
	rf := New(Config{Resource: debitNotes(), Client: fake, ID: "5", OnUnauthorized: func(err error) { hooked = err }})

	err := rf.Load(context.Background())

	assert.ErrorIs(t, err, client.ErrUnauthorized)
	assert.ErrorIs(t, hooked, client.ErrUnauthorized)
	assert.ErrorIs(t, rf.LoadError(), client.ErrUnauthorized)
}

func TestLoad_CreateModeSkipsFetch(t *testing.T) {
	fake := &fakeResources{}
	rf := New(Config{Resource: debitNotes(), Client: fake})

	require.NoError(t, rf.Load(context.Background()))
	assert.Empty(t, fake.ids)
}

func TestSubmit_MultipartBranch(t *testing.T) {
	tests := []struct {
		name string
		doc  any
		want client.Encoding
	}{
		{"file present", &core.FileHandle{Name: "dn.pdf", Data: []byte("%PDF")}, client.EncodingMultipart},
		{"file empty", nil, client.EncodingJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeResources{}
			rf := New(Config{Resource: debitNotes(), Client: fake})
			rf.Form().Set("dn_no", "DN-1")
			rf.Form().Set("dn_date", "2024-01-01")
			rf.Form().Set("dn_doc", tt.doc)

			next, err := rf.Submit(context.Background())

			require.NoError(t, err)
			assert.Equal(t, "/debitnotes", next)
			require.Len(t, fake.creates, 1)
			assert.Equal(t, tt.want, fake.creates[0].Encoding)
			assert.Nil(t, rf.Form().Value("dn_doc"), "file handle released after submit")
		})
	}
}

func TestSubmit_EditUsesUpdate(t *testing.T) {
	fake := &fakeResources{record: core.Record{"dn_no": "DN-5"}}
	rf := New(Config{Resource: debitNotes(), Client: fake, ID: "5"})
	require.NoError(t, rf.Load(context.Background()))

	_, err := rf.Submit(context.Background())

	require.NoError(t, err)
	require.Len(t, fake.updates, 1)
	assert.Empty(t, fake.creates)
	assert.Equal(t, client.EncodingJSON, fake.updates[0].Encoding)
	assert.NotContains(t, fake.updates[0].Values, "internal")
}

func TestSubmit_RequiredGateSkipsBackend(t *testing.T) {
	fake := &fakeResources{}
	rf := New(Config{Resource: debitNotes(), Client: fake})

	_, err := rf.Submit(context.Background())

	assert.ErrorIs(t, err, form.ErrInvalid)
	assert.Empty(t, fake.creates)
	assert.NotEmpty(t, rf.Form().Error("dn_no"))
}

func TestSubmit_BackendErrorKeepsValues(t *testing.T) {
	fake := &fakeResources{submitErr: &client.APIError{Status: 422, Message: "dn_no taken"}}
	rf := New(Config{Resource: debitNotes(), Client: fake})
	rf.Form().Set("dn_no", "DN-1")

	next, err := rf.Submit(context.Background())

	require.Error(t, err)
	assert.Empty(t, next)
	assert.Contains(t, rf.Form().Error(form.SubmitErrorKey), "dn_no taken")
	assert.Equal(t, "DN-1", rf.Form().Value("dn_no"))
}

func TestSubmit_CustomSubmitter(t *testing.T) {
	fake := &fakeResources{}
	var got core.Values
	rf := New(Config{
		Resource: debitNotes(),
		Client:   fake,
		Submit: func(_ context.Context, values core.Values) error {
			got = values
			return errors.New("custom rejected")
		},
	})
	rf.Form().Set("dn_no", "DN-1")

	_, err := rf.Submit(context.Background())

	assert.EqualError(t, err, "custom rejected")
	assert.Equal(t, "DN-1", got["dn_no"])
	assert.Empty(t, fake.creates)
}

func TestFlattenRecord(t *testing.T) {
	rec := core.Record{"user": map[string]any{"id": float64(3)}, "user_id": "old", "name": "x"}

	out := FlattenRecord(rec, []core.Flatten{{Path: "user.id", Field: "user_id"}, {Path: "role.id", Field: "role_id"}})

	assert.Equal(t, float64(3), out["user_id"])
	assert.NotContains(t, out, "role_id")
	assert.Equal(t, "old", rec["user_id"], "input not mutated")
}
