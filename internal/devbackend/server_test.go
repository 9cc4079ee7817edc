package devbackend

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/docdesk/internal/client"
	"github.com/leapstack-labs/docdesk/internal/listing"
	"github.com/leapstack-labs/docdesk/internal/schema"
	"github.com/leapstack-labs/docdesk/internal/testutil"
	"github.com/leapstack-labs/docdesk/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invoicesResource() *core.Resource {
	res := &core.Resource{
		Name:  "invoices",
		Label: "Invoices",
		Columns: []core.Column{
			{Header: "Invoice No", Accessor: "invoice_no"},
			{Header: "Date", Accessor: "invoice_date", Filter: core.FilterDateRange},
			{Header: "Customer", Accessor: "customer"},
			{Header: "Amount", Accessor: "amount", DisableFilter: true},
		},
		Fields: []core.Field{
			{Name: "invoice_no", Label: "Invoice No", Kind: core.FieldText, Required: true},
			{Name: "invoice_date", Label: "Date", Kind: core.FieldDate},
			{Name: "customer", Label: "Customer", Kind: core.FieldText},
			{Name: "amount", Label: "Amount", Kind: core.FieldNumber},
			{Name: "paid", Label: "Paid", Kind: core.FieldToggle},
			{Name: "invoice_doc", Label: "Document", Kind: core.FieldFile},
		},
		Batch: &core.BatchConfig{
			DocField: "invoice_doc",
			Fields: []core.Field{
				{Name: "invoice_no", Label: "Invoice No", Kind: core.FieldText},
				{Name: "amount", Label: "Amount", Kind: core.FieldNumber},
			},
		},
	}
	res.ApplyDefaults()
	return res
}

func profileResource() *core.Resource {
	res := &core.Resource{
		Name:      "profile",
		Singleton: true,
		Fields:    []core.Field{{Name: "name", Label: "Name", Kind: core.FieldText, Required: true}},
	}
	res.ApplyDefaults()
	return res
}

type backend struct {
	store    *Store
	client   *client.HTTP
	invoices *core.Resource
	profile  *core.Resource
}

func newBackend(t *testing.T, token string) *backend {
	t.Helper()
	logger := testutil.NewTestLogger(t)

	store, err := Open(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	b := &backend{store: store, invoices: invoicesResource(), profile: profileResource()}
	srv := NewServer(Config{
		Store:     store,
		Resources: schema.NewRegistry(b.invoices, b.profile),
		Token:     token,
		Logger:    logger,
	})
	mux := chi.NewRouter()
	mux.Mount("/api", srv.Routes())
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	b.client, err = client.New(client.Config{BaseURL: ts.URL + "/api", Logger: logger})
	require.NoError(t, err)
	return b
}

func TestMigrate(t *testing.T) {
	store, err := Open(":memory:", nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	v, err := MigrationVersion(store.db)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestListPaginationAndDateRange(t *testing.T) {
	b := newBackend(t, "")
	ctx := context.Background()

	n, err := Seed(ctx, b.store, []*core.Resource{b.invoices, b.profile}, 30)
	require.NoError(t, err)
	assert.Equal(t, 30, n, "singletons are not seeded")

	page := listing.New(listing.Config{
		Resource: b.invoices,
		Fetch: func(ctx context.Context, q core.Query) (core.Result, error) {
			return b.client.List(ctx, b.invoices, q)
		},
	})

	require.True(t, page.Load(ctx, core.Query{Page: 1}))
	st := page.State()
	require.Equal(t, listing.StatusSuccess, st.Status)
	assert.Len(t, st.Rows, 25)
	assert.Equal(t, 30, st.Total)
	assert.Equal(t, 2, st.LastPage)
	assert.Equal(t, "Invoice No 030", st.Rows[0]["invoice_no"], "newest first")

	require.True(t, page.Load(ctx, core.Query{Page: 2}))
	assert.Len(t, page.State().Rows, 5)

	require.True(t, page.Load(ctx, core.Query{Page: 1, Filters: map[string]string{
		"invoice_date_from": "2024-01-01",
		"invoice_date_to":   "2024-01-05",
	}}))
	st = page.State()
	assert.Equal(t, 5, st.Total)
	assert.Equal(t, 1, st.LastPage)
	assert.Len(t, st.Rows, 5)
}

func TestListSearchAndTextFilter(t *testing.T) {
	b := newBackend(t, "")
	ctx := context.Background()
	_, err := Seed(ctx, b.store, []*core.Resource{b.invoices}, 30)
	require.NoError(t, err)

	result, err := b.client.List(ctx, b.invoices, core.Query{Search: "CUSTOMER 007"})
	require.NoError(t, err)
	require.Equal(t, 1, result.Total)
	assert.Equal(t, "Customer 007", result.Rows[0]["customer"])

	result, err = b.client.List(ctx, b.invoices, core.Query{Filters: map[string]string{"customer": "00"}})
	require.NoError(t, err)
	assert.Equal(t, 9, result.Total, "Customer 001..009")

	result, err = b.client.List(ctx, b.invoices, core.Query{Search: "100%"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Total, "wildcards are matched literally")
	assert.Equal(t, 0, result.LastPage)
}

func TestCreateUpdateDelete(t *testing.T) {
	b := newBackend(t, "")
	ctx := context.Background()

	_, err := b.client.Create(ctx, b.invoices, client.BodyFor(core.Values{"amount": 5.0}))
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 422, apiErr.Status)
	assert.Equal(t, "Invoice No is required", apiErr.Message)

	rec, err := b.client.Create(ctx, b.invoices, client.BodyFor(core.Values{
		"invoice_no": "INV-1",
		"amount":     12.5,
		"paid":       true,
		"invoice_doc": &core.FileHandle{
			Name: "inv.txt",
			Data: []byte("hello"),
		},
	}))
	require.NoError(t, err)
	id := b.invoices.RecordID(rec)
	require.NotEmpty(t, id)
	assert.Equal(t, 12.5, rec["amount"], "multipart numbers are stored typed")
	assert.Equal(t, true, rec["paid"])

	docPath, ok := rec["invoice_doc"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(docPath, "documents/"))

	doc, err := b.client.Download(ctx, docPath)
	require.NoError(t, err)
	assert.Equal(t, "inv.txt", doc.Name)
	assert.Equal(t, []byte("hello"), doc.Data)

	rec, err = b.client.Update(ctx, b.invoices, id, client.BodyFor(core.Values{
		"amount":      20.0,
		"invoice_doc": &core.FileHandle{Name: "v2.txt", Data: []byte("v2")},
	}))
	require.NoError(t, err)
	assert.Equal(t, "INV-1", rec["invoice_no"], "unsent fields are kept")
	assert.Equal(t, 20.0, rec["amount"])
	assert.NotEqual(t, docPath, rec["invoice_doc"])

	rec, err = b.client.Update(ctx, b.invoices, id, client.BodyFor(core.Values{"customer": "Acme"}))
	require.NoError(t, err)
	assert.Equal(t, "Acme", rec["customer"])
	assert.Equal(t, 20.0, rec["amount"])

	got, err := b.client.Get(ctx, b.invoices, id)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got["customer"])

	require.NoError(t, b.client.Delete(ctx, b.invoices, id))
	_, err = b.client.Get(ctx, b.invoices, id)
	assert.ErrorIs(t, err, client.ErrNotFound)
	assert.ErrorIs(t, b.client.Delete(ctx, b.invoices, id), client.ErrNotFound)
}

func TestBulkDeleteAndCreate(t *testing.T) {
	b := newBackend(t, "")
	ctx := context.Background()

	err := b.client.BulkCreate(ctx, b.invoices, client.Columns{
		"invoice_no": {"A", "B", "C"},
		"amount":     {1.0, 2.0, 3.0},
	})
	require.NoError(t, err)

	result, err := b.client.List(ctx, b.invoices, core.Query{})
	require.NoError(t, err)
	require.Equal(t, 3, result.Total)

	ids := []string{b.invoices.RecordID(result.Rows[0]), b.invoices.RecordID(result.Rows[1])}
	require.NoError(t, b.client.BulkDelete(ctx, b.invoices, ids))

	result, err = b.client.List(ctx, b.invoices, core.Query{})
	require.NoError(t, err)
	require.Equal(t, 1, result.Total)
	assert.Equal(t, "A", result.Rows[0]["invoice_no"])

	err = b.client.BulkCreate(ctx, b.invoices, client.Columns{
		"invoice_no": {"D", "E"},
		"amount":     {1.0},
	})
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 422, apiErr.Status)
}

func TestBulkParse(t *testing.T) {
	b := newBackend(t, "")
	ctx := context.Background()

	files := []*core.FileHandle{
		{Name: "inv9.txt", Data: []byte("Invoice No: INV-9\nAmount: 12.50\nFolder: 2024/Q1\n")},
		{Name: "scan.pdf", Data: []byte("%PDF-1.7\x00\x01binary")},
	}
	cols, err := b.client.BulkParse(ctx, b.invoices, files)
	require.NoError(t, err)

	assert.Equal(t, 2, cols.Len())
	assert.Equal(t, []any{"INV-9", ""}, cols["invoice_no"])
	assert.Equal(t, []any{"12.50", ""}, cols["amount"])
	assert.Equal(t, []any{"2024/Q1", ""}, cols["folder"])
	for _, p := range cols["invoice_doc"] {
		doc, err := b.client.Download(ctx, p.(string))
		require.NoError(t, err)
		assert.NotEmpty(t, doc.Data)
	}
}

func TestSingleton(t *testing.T) {
	b := newBackend(t, "")
	ctx := context.Background()

	rec, err := b.client.Get(ctx, b.profile, "")
	require.NoError(t, err)
	assert.Empty(t, rec)

	rec, err = b.client.Update(ctx, b.profile, "", client.BodyFor(core.Values{"name": "Ada"}))
	require.NoError(t, err)
	assert.Equal(t, "Ada", rec["name"])

	rec, err = b.client.Update(ctx, b.profile, "", client.BodyFor(core.Values{
		"name":   "Grace",
		"avatar": &core.FileHandle{Name: "me.png", Data: []byte{0x89, 'P', 'N', 'G'}},
	}))
	require.NoError(t, err)
	assert.Equal(t, "Grace", rec["name"])

	rec, err = b.client.Get(ctx, b.profile, "")
	require.NoError(t, err)
	assert.Equal(t, "Grace", rec["name"])
}

func TestTokenRequired(t *testing.T) {
	b := newBackend(t, "secret")
	ctx := context.Background()

	_, err := b.client.List(ctx, b.invoices, core.Query{})
	assert.True(t, errors.Is(err, client.ErrUnauthorized))

	_, err = b.client.WithToken("secret").List(ctx, b.invoices, core.Query{})
	assert.NoError(t, err)
}

func TestUnknownResource(t *testing.T) {
	b := newBackend(t, "")
	other := &core.Resource{Name: "payments"}
	other.ApplyDefaults()

	_, err := b.client.List(context.Background(), other, core.Query{})
	assert.ErrorIs(t, err, client.ErrNotFound)
}

func TestExtractPairs(t *testing.T) {
	got := extractPairs([]byte("Invoice  No: INV-1\nno colon here\namount: 3\nAmount: 4\n: empty key\n"))
	assert.Equal(t, map[string]string{"invoice_no": "INV-1", "amount": "3"}, got)

	assert.Empty(t, extractPairs([]byte{0xff, 0xfe, 0x00}))
}
