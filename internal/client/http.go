package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/leapstack-labs/docdesk/pkg/core"
	"golang.org/x/time/rate"
)

// maxErrorBody bounds how much of an error response is kept as the message.
const maxErrorBody = 4 << 10

// Config configures the HTTP client.
type Config struct {
	// BaseURL is the backend root, e.g. https://api.example.com/api
	BaseURL string
	// Token is sent as a bearer token when set
	Token string
	// Timeout bounds every request (default 30s)
	Timeout time.Duration
	// RateLimit is requests per second; zero disables limiting
	RateLimit float64
	// Burst is the limiter bucket size (default 1)
	Burst  int
	Logger *slog.Logger
	// HTTPClient replaces the default client, mainly in tests
	HTTPClient *http.Client
}

// HTTP implements Resources against the conventional REST routes.
type HTTP struct {
	base    *url.URL
	token   string
	hc      *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ Resources = (*HTTP)(nil)

// New creates an HTTP client.
func New(cfg Config) (*HTTP, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api base_url is required")
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api base_url: %w", err)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &HTTP{base: base, token: cfg.Token, hc: hc, limiter: limiter, logger: logger}, nil
}

// WithToken returns a client sharing transport and limiter but sending token.
func (c *HTTP) WithToken(token string) *HTTP {
	cp := *c
	cp.token = token
	return &cp
}

// List fetches one page.
func (c *HTTP) List(ctx context.Context, res *core.Resource, q core.Query) (core.Result, error) {
	q = q.Normalize(res.PerPage)
	var raw any
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint(res), q.URLValues(), nil, &raw); err != nil {
		return core.Result{}, fmt.Errorf("list %s: %w", res.Name, err)
	}
	result, err := NormalizeList(raw, q)
	if err != nil {
		return core.Result{}, fmt.Errorf("list %s: %w", res.Name, err)
	}
	return result, nil
}

// Get fetches one record. Singletons are fetched without an id.
func (c *HTTP) Get(ctx context.Context, res *core.Resource, id string) (core.Record, error) {
	var raw any
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint(res, id), nil, nil, &raw); err != nil {
		return nil, fmt.Errorf("get %s %s: %w", res.Name, id, err)
	}
	return unwrapRecord(raw)
}

// Create sends a new record as JSON or multipart.
func (c *HTTP) Create(ctx context.Context, res *core.Resource, body Body) (core.Record, error) {
	rec, err := c.write(ctx, res, "", body, false)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", res.Name, err)
	}
	return rec, nil
}

// Update sends changes as JSON via PUT, or as multipart via POST with
// _method=PUT.
func (c *HTTP) Update(ctx context.Context, res *core.Resource, id string, body Body) (core.Record, error) {
	rec, err := c.write(ctx, res, id, body, true)
	if err != nil {
		return nil, fmt.Errorf("update %s %s: %w", res.Name, id, err)
	}
	return rec, nil
}

func (c *HTTP) write(ctx context.Context, res *core.Resource, id string, body Body, update bool) (core.Record, error) {
	target := c.endpoint(res, id)
	var raw any

	if body.Encoding == EncodingMultipart {
		extra := map[string]string{}
		if update {
			extra["_method"] = http.MethodPut
		}
		payload, contentType, err := encodeMultipart(body.Values, extra, nil)
		if err != nil {
			return nil, err
		}
		if err := c.do(ctx, http.MethodPost, target, nil, payload, contentType, &raw); err != nil {
			return nil, err
		}
		return unwrapRecord(raw)
	}

	method := http.MethodPost
	if update {
		method = http.MethodPut
	}
	if err := c.doJSON(ctx, method, target, nil, body.Values, &raw); err != nil {
		return nil, err
	}
	return unwrapRecord(raw)
}

// Delete removes one record.
func (c *HTTP) Delete(ctx context.Context, res *core.Resource, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, c.endpoint(res, id), nil, nil, nil); err != nil {
		return fmt.Errorf("delete %s %s: %w", res.Name, id, err)
	}
	return nil
}

// BulkDelete removes several records in one call.
func (c *HTTP) BulkDelete(ctx context.Context, res *core.Resource, ids []string) error {
	body := map[string]any{"ids": ids}
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint(res, "bulk-delete"), nil, body, nil); err != nil {
		return fmt.Errorf("bulk delete %s: %w", res.Name, err)
	}
	return nil
}

// BulkCreate sends a column-major payload.
func (c *HTTP) BulkCreate(ctx context.Context, res *core.Resource, columns Columns) error {
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint(res, "bulk-create"), nil, columns, nil); err != nil {
		return fmt.Errorf("bulk create %s: %w", res.Name, err)
	}
	return nil
}

// BulkParse uploads files as files[] and returns the aligned parse columns.
func (c *HTTP) BulkParse(ctx context.Context, res *core.Resource, files []*core.FileHandle) (Columns, error) {
	payload, contentType, err := encodeMultipart(nil, nil, files)
	if err != nil {
		return nil, fmt.Errorf("bulk parse %s: %w", res.Name, err)
	}
	var raw any
	if err := c.do(ctx, http.MethodPost, c.endpoint(res, "bulk-parse"), nil, payload, contentType, &raw); err != nil {
		return nil, fmt.Errorf("bulk parse %s: %w", res.Name, err)
	}
	cols, err := NormalizeColumns(raw)
	if err != nil {
		return nil, fmt.Errorf("bulk parse %s: %w", res.Name, err)
	}
	return cols, nil
}

// Download fetches a stored document. The path is cleaned so it always
// resolves under the base URL.
func (c *HTTP) Download(ctx context.Context, docPath string) (*core.FileHandle, error) {
	clean := path.Clean("/" + docPath)

	resp, err := c.send(ctx, http.MethodGet, c.base.Path+clean, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", docPath, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", docPath, err)
	}

	name := path.Base(clean)
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	return &core.FileHandle{
		Name:        name,
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (c *HTTP) endpoint(res *core.Resource, parts ...string) string {
	p := c.base.Path + "/" + res.Endpoint
	for _, part := range parts {
		if part != "" {
			p += "/" + part
		}
	}
	return p
}

func (c *HTTP) doJSON(ctx context.Context, method, p string, query url.Values, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, p, query, body, contentType, out)
}

func (c *HTTP) do(ctx context.Context, method, p string, query url.Values, body io.Reader, contentType string, out any) error {
	resp, err := c.send(ctx, method, p, query, body, contentType)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// send performs the request and maps error statuses. The caller closes the
// body of a successful response.
func (c *HTTP) send(ctx context.Context, method, p string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	u := *c.base
	u.Path = p
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("backend request", "method", method, "path", p, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case http.StatusNotFound:
		return nil, ErrNotFound
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
}

// errorMessage extracts {"message": ...} or falls back to the raw body.
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(data))
}

// encodeMultipart writes values as form fields, file handles as file parts,
// extra as additional fields, and files as repeated files[] parts.
func encodeMultipart(values core.Values, extra map[string]string, files []*core.FileHandle) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		switch v := values[k].(type) {
		case *core.FileHandle:
			if v == nil {
				continue
			}
			if err := writeFile(w, k, v); err != nil {
				return nil, "", err
			}
		default:
			s, ok := formValue(v)
			if !ok {
				continue
			}
			if err := w.WriteField(k, s); err != nil {
				return nil, "", err
			}
		}
	}
	for k, v := range extra {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	for _, f := range files {
		if err := writeFile(w, "files[]", f); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, field string, f *core.FileHandle) error {
	part, err := w.CreateFormFile(field, f.Name)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f.Reader())
	return err
}
