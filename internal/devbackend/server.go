package devbackend

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/docdesk/internal/form"
	"github.com/leapstack-labs/docdesk/pkg/core"
)

// maxUpload bounds multipart request bodies held in memory.
const maxUpload = 32 << 20

// Resolver looks resources up by name.
type Resolver interface {
	List() []*core.Resource
}

// Config configures the HTTP handler.
type Config struct {
	Store     *Store
	Resources Resolver
	// Token, when set, must be sent as a bearer token on every request
	Token  string
	Logger *slog.Logger
}

// Server serves the resource routes.
type Server struct {
	store     *Store
	resources Resolver
	token     string
	logger    *slog.Logger
}

// NewServer creates the backend handler.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{store: cfg.Store, resources: cfg.Resources, token: cfg.Token, logger: logger}
}

// Routes returns the API routes, to be mounted under the API root.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, s.authenticate)

	r.Get("/documents/{id}/{name}", s.handleDocument)

	r.Route("/{resource}", func(r chi.Router) {
		r.Use(s.resolveResource)
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)
		r.Put("/", s.handleSingletonUpdate)
		r.Post("/bulk-delete", s.handleBulkDelete)
		r.Post("/bulk-create", s.handleBulkCreate)
		r.Post("/bulk-parse", s.handleBulkParse)
		r.Get("/{id}", s.handleGet)
		r.Put("/{id}", s.handleUpdate)
		r.Post("/{id}", s.handleUpdate)
		r.Delete("/{id}", s.handleDelete)
	})
	return r
}

type ctxKey struct{}

func withResource(ctx context.Context, res *core.Resource) context.Context {
	return context.WithValue(ctx, ctxKey{}, res)
}

func resourceFrom(ctx context.Context) *core.Resource {
	res, _ := ctx.Value(ctxKey{}).(*core.Resource)
	return res
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
				writeError(w, http.StatusUnauthorized, "Unauthenticated.")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) resolveResource(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := chi.URLParam(r, "resource")
		for _, res := range s.resources.List() {
			if res.Endpoint == endpoint {
				next.ServeHTTP(w, r.WithContext(withResource(r.Context(), res)))
				return
			}
		}
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown resource %q", endpoint))
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	res := resourceFrom(r.Context())
	if res.Singleton {
		rec, err := s.store.Singleton(r.Context(), res)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
		return
	}

	q := parseQuery(r, res)
	result, err := s.store.List(r.Context(), res, q)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":         result.Rows,
		"current_page": result.Page,
		"per_page":     result.PerPage,
		"total":        result.Total,
		"last_page":    result.LastPage,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	res := resourceFrom(r.Context())
	id, err := ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	rec, err := s.store.Get(r.Context(), res, id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rec})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	res := resourceFrom(r.Context())
	values, files, method, err := readBody(r, res)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if res.Singleton && method == http.MethodPut {
		s.writeSingleton(w, r, res, values, files)
		return
	}
	if !s.valid(w, res, values, files, true) {
		return
	}
	if err := s.storeFiles(r, res, values, files); err != nil {
		s.fail(w, err)
		return
	}
	rec, err := s.store.Create(r.Context(), res, values)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.logger.Info("record created", "resource", res.Name, "id", res.RecordID(rec))
	writeJSON(w, http.StatusCreated, map[string]any{"data": rec})
}

func (s *Server) handleSingletonUpdate(w http.ResponseWriter, r *http.Request) {
	res := resourceFrom(r.Context())
	if !res.Singleton {
		writeError(w, http.StatusMethodNotAllowed, "PUT needs a record id")
		return
	}
	values, files, _, err := readBody(r, res)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeSingleton(w, r, res, values, files)
}

func (s *Server) writeSingleton(w http.ResponseWriter, r *http.Request, res *core.Resource, values map[string]any, files map[string]*core.FileHandle) {
	if !s.valid(w, res, values, files, false) {
		return
	}
	if err := s.storeFiles(r, res, values, files); err != nil {
		s.fail(w, err)
		return
	}
	rec, err := s.store.PutSingleton(r.Context(), res, values)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rec})
}

// handleUpdate serves PUT and POST with _method=PUT.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	res := resourceFrom(r.Context())
	id, err := ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	values, files, method, err := readBody(r, res)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if r.Method == http.MethodPost && method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "POST to a record needs _method=PUT")
		return
	}
	if !s.valid(w, res, values, files, false) {
		return
	}
	if err := s.storeFiles(r, res, values, files); err != nil {
		s.fail(w, err)
		return
	}
	rec, err := s.store.Update(r.Context(), res, id, values)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rec})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	res := resourceFrom(r.Context())
	id, err := ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := s.store.Delete(r.Context(), res, id); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	res := resourceFrom(r.Context())
	var body struct {
		IDs []any `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return
	}
	if len(body.IDs) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "ids must not be empty")
		return
	}
	ids := make([]int64, 0, len(body.IDs))
	for _, raw := range body.IDs {
		id, err := ParseID(fmt.Sprint(raw))
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		ids = append(ids, id)
	}
	n, err := s.store.BulkDelete(r.Context(), res, ids)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.logger.Info("records deleted", "resource", res.Name, "requested", len(ids), "deleted", n)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
}

func (s *Server) handleBulkCreate(w http.ResponseWriter, r *http.Request) {
	res := resourceFrom(r.Context())
	var cols map[string][]any
	if err := json.NewDecoder(r.Body).Decode(&cols); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "body must map field names to arrays")
		return
	}
	n, err := s.store.BulkCreate(r.Context(), res, cols)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.logger.Info("records created", "resource", res.Name, "count", n)
	writeJSON(w, http.StatusCreated, map[string]any{"created": n})
}

func (s *Server) handleBulkParse(w http.ResponseWriter, r *http.Request) {
	res := resourceFrom(r.Context())
	if res.Batch == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s has no batch upload", res.Name))
		return
	}
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "expected a multipart upload")
		return
	}
	headers := r.MultipartForm.File["files[]"]
	if len(headers) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "no files uploaded")
		return
	}
	if len(headers) > res.Batch.MaxFiles {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("at most %d files per batch", res.Batch.MaxFiles))
		return
	}
	files := make([]*core.FileHandle, 0, len(headers))
	for _, h := range headers {
		fh, err := readFile(h)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		files = append(files, fh)
	}
	cols, err := s.store.ParseDocuments(r.Context(), res, files)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": cols})
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	fh, err := s.store.Document(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	contentType := fh.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": fh.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(fh.Data)))
	_, _ = w.Write(fh.Data)
}

// valid runs the field rules. On create every declared field is checked;
// on update only the submitted ones are.
func (s *Server) valid(w http.ResponseWriter, res *core.Resource, values map[string]any, files map[string]*core.FileHandle, create bool) bool {
	check := core.Values{}
	for k, v := range values {
		check[k] = v
	}
	for k, fh := range files {
		check[k] = fh
	}

	fields := res.Fields
	if !create {
		fields = slices.DeleteFunc(slices.Clone(res.Fields), func(f core.Field) bool {
			_, ok := check[f.Name]
			return !ok
		})
	}
	errs := form.Validate(fields, check)
	if len(errs) == 0 {
		return true
	}

	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, errs[k])
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"message": strings.Join(msgs, "; "),
		"errors":  errs,
	})
	return false
}

// storeFiles saves uploaded files and replaces them by their download path.
func (s *Server) storeFiles(r *http.Request, res *core.Resource, values map[string]any, files map[string]*core.FileHandle) error {
	for name, fh := range files {
		p, err := s.store.SaveDocument(r.Context(), res, fh)
		if err != nil {
			return err
		}
		values[name] = p
	}
	return nil
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.logger.Error("backend request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

// readBody decodes a JSON or multipart body into typed values. Uploaded
// files are returned separately. The method override of a multipart body
// is returned as method.
func readBody(r *http.Request, res *core.Resource) (map[string]any, map[string]*core.FileHandle, string, error) {
	values := map[string]any{}
	files := map[string]*core.FileHandle{}
	method := r.Method

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxUpload); err != nil {
			return nil, nil, "", fmt.Errorf("invalid multipart body: %w", err)
		}
		for k, vs := range r.MultipartForm.Value {
			if k == "_method" {
				if len(vs) > 0 {
					method = strings.ToUpper(vs[0])
				}
				continue
			}
			if len(vs) > 0 {
				values[k] = vs[0]
			}
		}
		for k, hs := range r.MultipartForm.File {
			if len(hs) == 0 {
				continue
			}
			fh, err := readFile(hs[0])
			if err != nil {
				return nil, nil, "", err
			}
			files[k] = fh
		}

	default:
		if err := json.NewDecoder(r.Body).Decode(&values); err != nil && !errors.Is(err, io.EOF) {
			return nil, nil, "", fmt.Errorf("invalid JSON body: %w", err)
		}
	}

	for _, f := range res.Fields {
		raw, ok := values[f.Name]
		if !ok || f.Kind == core.FieldFile {
			continue
		}
		v, err := form.Decode(f, raw)
		if err != nil {
			return nil, nil, "", err
		}
		values[f.Name] = v
	}
	return values, files, method, nil
}

func readFile(h *multipart.FileHeader) (*core.FileHandle, error) {
	f, err := h.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read upload %s: %w", h.Filename, err)
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload %s: %w", h.Filename, err)
	}
	return &core.FileHandle{
		Name:        h.Filename,
		ContentType: h.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func parseQuery(r *http.Request, res *core.Resource) core.Query {
	v := r.URL.Query()
	q := core.Query{Search: v.Get("search"), Filters: map[string]string{}}
	q.Page, _ = strconv.Atoi(v.Get("page"))
	q.PerPage, _ = strconv.Atoi(v.Get("per_page"))
	for _, c := range res.Columns {
		for _, k := range c.FilterKeys() {
			if val := v.Get(k); val != "" {
				q.Filters[k] = val
			}
		}
	}
	return q.Normalize(res.PerPage)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
