package console

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/docdesk/internal/bulk"
	"github.com/leapstack-labs/docdesk/internal/client"
	"github.com/leapstack-labs/docdesk/internal/devbackend"
	"github.com/leapstack-labs/docdesk/internal/schema"
	"github.com/leapstack-labs/docdesk/internal/testutil"
	"github.com/leapstack-labs/docdesk/internal/ui/notifier"
	"github.com/leapstack-labs/docdesk/internal/ui/session"
	"github.com/leapstack-labs/docdesk/pkg/core"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
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
			{Name: "invoice_no", Label: "Invoice No", Kind: core.FieldText, Required: true,
				OnChange: `set("customer", "ACME " + value)`},
			{Name: "invoice_date", Label: "Date", Kind: core.FieldDate},
			{Name: "customer", Label: "Customer", Kind: core.FieldText},
			{Name: "status", Label: "Status", Kind: core.FieldSelect, Searchable: true, Options: []core.Option{
				{Value: "draft", Label: "Draft"},
				{Value: "sent", Label: "Sent"},
				{Value: "paid", Label: "Paid"},
			}},
			{Name: "amount", Label: "Amount", Kind: core.FieldNumber},
			{Name: "paid", Label: "Paid", Kind: core.FieldToggle},
			{Name: "invoice_doc", Label: "Document", Kind: core.FieldFile},
		},
		Batch: &core.BatchConfig{
			DocField: "invoice_doc",
			MaxFiles: 3,
			Fields: []core.Field{
				{Name: "invoice_no", Label: "Invoice No", Kind: core.FieldText},
				{Name: "amount", Label: "Amount", Kind: core.FieldNumber},
			},
		},
	}
	res.ApplyDefaults()
	return res
}

func debitNotesResource() *core.Resource {
	res := &core.Resource{
		Name:  "debitnotes",
		Label: "Debit Notes",
		Columns: []core.Column{
			{Header: "Reference", Accessor: "reference"},
			{Header: "Issued", Accessor: "issued_on", Filter: core.FilterDate},
			{Header: "Amount", Accessor: "amount", DisableFilter: true},
		},
		Fields: []core.Field{
			{Name: "reference", Label: "Reference", Kind: core.FieldText, Required: true},
			{Name: "issued_on", Label: "Issued", Kind: core.FieldDate},
			{Name: "amount", Label: "Amount", Kind: core.FieldNumber},
		},
	}
	res.ApplyDefaults()
	return res
}

func profileResource() *core.Resource {
	res := &core.Resource{
		Name:      "profile",
		Label:     "Profile",
		Singleton: true,
		Fields:    []core.Field{{Name: "name", Label: "Name", Kind: core.FieldText, Required: true}},
	}
	res.ApplyDefaults()
	return res
}

type harness struct {
	t        *testing.T
	ts       *httptest.Server
	http     *http.Client
	store    *devbackend.Store
	handlers *Handlers
	confirm  *bulk.Dispatcher

	invoices   *core.Resource
	debitnotes *core.Resource
	profile    *core.Resource
}

// newHarness runs the console against an in-memory reference backend.
// backendToken is required by the backend; defaultToken is what the
// console sends when the session holds none.
func newHarness(t *testing.T, backendToken, defaultToken string) *harness {
	t.Helper()
	logger := testutil.NewTestLogger(t)

	store, err := devbackend.Open(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{
		t:          t,
		store:      store,
		confirm:    bulk.NewDispatcher(logger),
		invoices:   invoicesResource(),
		debitnotes: debitNotesResource(),
		profile:    profileResource(),
	}
	registry := schema.NewRegistry(h.invoices, h.debitnotes, h.profile)

	api := chi.NewRouter()
	api.Mount("/api", devbackend.NewServer(devbackend.Config{
		Store:     store,
		Resources: registry,
		Token:     backendToken,
		Logger:    logger,
	}).Routes())
	backend := httptest.NewServer(api)
	t.Cleanup(backend.Close)

	base, err := client.New(client.Config{BaseURL: backend.URL + "/api", Token: defaultToken, Logger: logger})
	require.NoError(t, err)

	router := chi.NewRouter()
	h.handlers, err = SetupRoutes(router, Config{
		Schemas: registry,
		Client: func(token string) client.Resources {
			if token == "" {
				return base
			}
			return base.WithToken(token)
		},
		Sessions: session.NewStore("test-secret-test-secret-test-sec"),
		Notifier: notifier.New(),
		Confirm:  h.confirm,
		Debounce: 10 * time.Millisecond,
		Logger:   logger,
	})
	require.NoError(t, err)

	h.ts = httptest.NewServer(router)
	t.Cleanup(h.ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	h.http = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return h
}

func (h *harness) seed(res *core.Resource, n int) {
	h.t.Helper()
	_, err := devbackend.Seed(h.t.Context(), h.store, []*core.Resource{res}, n)
	require.NoError(h.t, err)
}

func (h *harness) total(res *core.Resource) int {
	h.t.Helper()
	result, err := h.store.List(h.t.Context(), res, core.Query{Page: 1, PerPage: 100})
	require.NoError(h.t, err)
	return result.Total
}

func (h *harness) get(path string) *http.Response {
	h.t.Helper()
	resp, err := h.http.Get(h.ts.URL + path)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// page loads a console page and returns its view id and document.
func (h *harness) page(path string) (string, *html.Node) {
	h.t.Helper()
	resp := h.get(path)
	require.Equal(h.t, http.StatusOK, resp.StatusCode, path)
	doc, err := html.Parse(resp.Body)
	require.NoError(h.t, err)

	for _, n := range findAll(doc, func(n *html.Node) bool {
		return strings.Contains(attr(n, "data-init"), "/views/")
	}) {
		init := attr(n, "data-init")
		rest := init[strings.Index(init, "/views/")+len("/views/"):]
		return rest[:strings.Index(rest, "/")], doc
	}
	return "", doc
}

func (h *harness) post(viewID, action, contentType string, body io.Reader) string {
	h.t.Helper()
	req, err := http.NewRequest(http.MethodPost, h.ts.URL+"/views/"+viewID+"/"+action, body)
	require.NoError(h.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := h.http.Do(req)
	require.NoError(h.t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(h.t, http.StatusOK, resp.StatusCode, action)
	data, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	return string(data)
}

func (h *harness) action(viewID, action string) string {
	return h.post(viewID, action, "", nil)
}

func (h *harness) signals(viewID, action string, signals any) string {
	h.t.Helper()
	data, err := json.Marshal(signals)
	require.NoError(h.t, err)
	return h.post(viewID, action, "application/json", bytes.NewReader(data))
}

func (h *harness) form(viewID, action string, values url.Values) string {
	return h.post(viewID, action, "application/x-www-form-urlencoded", strings.NewReader(values.Encode()))
}

type upload struct {
	field, name, content string
}

func (h *harness) multipart(viewID, action string, values map[string]string, files ...upload) string {
	h.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range values {
		require.NoError(h.t, mw.WriteField(k, v))
	}
	for _, f := range files {
		w, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(h.t, err)
		_, err = io.WriteString(w, f.content)
		require.NoError(h.t, err)
	}
	require.NoError(h.t, mw.Close())
	return h.post(viewID, action, mw.FormDataContentType(), &buf)
}

// patched parses the elements of every patch event in an SSE body.
func patched(t *testing.T, sse string) *html.Node {
	t.Helper()
	var b strings.Builder
	for _, line := range strings.Split(sse, "\n") {
		if rest, ok := strings.CutPrefix(line, "data: elements "); ok {
			b.WriteString(rest)
			b.WriteByte('\n')
		}
	}
	doc, err := html.Parse(strings.NewReader(b.String()))
	require.NoError(t, err)
	return doc
}

func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func byTag(root *html.Node, tag string) []*html.Node {
	return findAll(root, func(n *html.Node) bool { return n.Data == tag })
}

func byClass(root *html.Node, tag, class string) []*html.Node {
	return findAll(root, func(n *html.Node) bool {
		return n.Data == tag && hasClass(n, class)
	})
}

func byName(root *html.Node, name string) *html.Node {
	nodes := findAll(root, func(n *html.Node) bool { return attr(n, "name") == name })
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

// bodyRows returns the data rows of the list table.
func bodyRows(root *html.Node) []*html.Node {
	return byClass(root, "tr", "row")
}
