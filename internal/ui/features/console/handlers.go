// Package console serves the schema-driven resource pages: list, add,
// batch upload, show and edit, plus their SSE actions.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/docdesk/internal/bulk"
	"github.com/leapstack-labs/docdesk/internal/client"
	"github.com/leapstack-labs/docdesk/internal/export"
	"github.com/leapstack-labs/docdesk/internal/script"
	"github.com/leapstack-labs/docdesk/internal/ui/components"
	"github.com/leapstack-labs/docdesk/internal/ui/notifier"
	"github.com/leapstack-labs/docdesk/internal/ui/session"
	"github.com/leapstack-labs/docdesk/internal/ui/views"
	"github.com/leapstack-labs/docdesk/pkg/core"
	"github.com/starfederation/datastar-go/datastar"
	gomponents "maragu.dev/gomponents"
)

// maxUploadMemory bounds the in-memory part of a multipart action.
const maxUploadMemory = 32 << 20

// exportConcurrency bounds parallel record fetches of an export.
const exportConcurrency = 4

// keepAliveInterval refreshes the view while its updates stream is open.
const keepAliveInterval = time.Minute

// Schemas resolves resource schemas by name.
type Schemas interface {
	Get(name string) (*core.Resource, bool)
	List() []*core.Resource
}

// ClientFunc returns a backend client sending token. An empty token means
// the configured default.
type ClientFunc func(token string) client.Resources

// Config holds the dependencies of the console handlers.
type Config struct {
	Schemas  Schemas
	Client   ClientFunc
	Engine   *script.Engine
	Sessions sessions.Store
	Notifier *notifier.Notifier
	Views    *views.Registry[*View]
	// Confirm is the confirmation dialog slot shared by every view; nil
	// creates one for these handlers
	Confirm *bulk.Dispatcher
	// Debounce is the search quiet period; zero uses the query default
	Debounce time.Duration
	Logger   *slog.Logger
	IsDev    bool
}

// Handlers provides HTTP handlers for the console.
type Handlers struct {
	schemas  Schemas
	client   ClientFunc
	engine   *script.Engine
	sessions sessions.Store
	notifier *notifier.Notifier
	views    *views.Registry[*View]
	slot     *confirmSlot
	debounce time.Duration
	logger   *slog.Logger
	isDev    bool
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(cfg Config) *Handlers {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	engine := cfg.Engine
	if engine == nil {
		engine = script.NewEngine(script.WithLogger(logger))
	}
	registry := cfg.Views
	if registry == nil {
		registry = views.NewRegistry[*View](0, logger)
	}
	dispatcher := cfg.Confirm
	if dispatcher == nil {
		dispatcher = bulk.NewDispatcher(logger)
	}
	return &Handlers{
		schemas:  cfg.Schemas,
		client:   cfg.Client,
		engine:   engine,
		sessions: cfg.Sessions,
		notifier: cfg.Notifier,
		views:    registry,
		slot:     &confirmSlot{dispatcher: dispatcher},
		debounce: cfg.Debounce,
		logger:   logger,
		isDev:    cfg.IsDev,
	}
}

// Views returns the registry of open views.
func (h *Handlers) Views() *views.Registry[*View] {
	return h.views
}

// HomePage lists the configured resources.
func (h *Handlers) HomePage(w http.ResponseWriter, r *http.Request) {
	nav := h.nav("")
	h.renderPage(w, r, components.Document("Home", nav, "", h.isDev, components.Home(nav)))
}

// LoginRequiredPage tells the operator the backend rejected the token.
func (h *Handlers) LoginRequiredPage(w http.ResponseWriter, r *http.Request) {
	flashes := session.Flashes(h.sessions, w, r)
	body := components.Message("Sign in required",
		"The backend did not accept the current credentials. Provide an API token to continue.",
		components.TokenForm(flashes),
	)
	h.renderPage(w, r, components.Document("Sign in required", h.nav(""), "", h.isDev, body))
}

// StartSession stores the submitted token for this browser.
func (h *Handlers) StartSession(w http.ResponseWriter, r *http.Request) {
	token := r.FormValue("token")
	if token == "" {
		http.Redirect(w, r, session.LoginRequiredPath, http.StatusSeeOther)
		return
	}
	if err := session.SetToken(h.sessions, w, r, token); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ExpireSession drops the token after a 401 and sends the browser to the
// login-required page.
func (h *Handlers) ExpireSession(w http.ResponseWriter, r *http.Request) {
	if err := session.Expire(h.sessions, w, r, "Your session has expired."); err != nil {
		h.logger.Warn("failed to expire session", "error", err)
	}
	http.Redirect(w, r, session.LoginRequiredPath, http.StatusSeeOther)
}

// ResourcePage is the list tab, or the edit form of a singleton.
func (h *Handlers) ResourcePage(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	mode := ModeList
	if res.Singleton {
		mode = ModeEdit
	}
	h.openView(w, r, res, mode, "")
}

// AddPage is the add tab.
func (h *Handlers) AddPage(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	if res.Singleton {
		http.Redirect(w, r, "/"+res.Name, http.StatusSeeOther)
		return
	}
	h.openView(w, r, res, ModeAdd, "")
}

// BatchPage is the batch upload tab.
func (h *Handlers) BatchPage(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	if res.Batch == nil {
		http.NotFound(w, r)
		return
	}
	h.openView(w, r, res, ModeBatch, "")
}

// ShowPage renders one record read-only.
func (h *Handlers) ShowPage(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	h.openView(w, r, res, ModeShow, chi.URLParam(r, "id"))
}

// EditPage renders the edit form of one record.
func (h *Handlers) EditPage(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	if res.Singleton {
		http.Redirect(w, r, "/"+res.Name, http.StatusSeeOther)
		return
	}
	h.openView(w, r, res, ModeEdit, chi.URLParam(r, "id"))
}

// DocumentDownload streams a stored document from the backend.
func (h *Handlers) DocumentDownload(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.resource(w, r); !ok {
		return
	}
	docPath := r.URL.Query().Get("path")
	if docPath == "" {
		http.Error(w, "missing document path", http.StatusBadRequest)
		return
	}

	fh, err := h.client(h.token(r)).Download(r.Context(), docPath)
	switch {
	case client.IsUnauthorized(err):
		http.Redirect(w, r, session.ExpiredPath, http.StatusSeeOther)
		return
	case errors.Is(err, client.ErrNotFound):
		http.NotFound(w, r)
		return
	case err != nil:
		h.logger.Warn("document download failed", "path", docPath, "error", err)
		http.Error(w, "document unavailable", http.StatusBadGateway)
		return
	}

	contentType := fh.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", fh.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(fh.Size(), 10))
	_, _ = w.Write(fh.Data)
}

// ViewUpdates is the long-lived SSE endpoint of one view. It does not send
// initial state; that was rendered with the page. Every ping re-renders the
// view, and a schema reload that replaced the resource reloads the page.
func (h *Handlers) ViewUpdates(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "view")
	v, ok := h.views.Get(id)
	sse := datastar.NewSSE(w, r)
	if !ok {
		_ = sse.ExecuteScript("window.location.reload()")
		return
	}

	updates := h.notifier.Subscribe(id)
	defer h.notifier.Unsubscribe(id, updates)

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			h.views.Touch(id)
		case <-updates:
			if _, ok := h.views.Get(id); !ok {
				return
			}
			if v.Unauthorized() {
				h.views.Remove(id)
				_ = sse.Redirect(session.ExpiredPath)
				return
			}
			if current, ok := h.schemas.Get(v.Resource().Name); !ok || current != v.Resource() {
				h.views.Remove(id)
				_ = sse.ExecuteScript("window.location.reload()")
				return
			}
			if err := sse.PatchElementTempl(components.Templ(v.Render())); err != nil {
				_ = sse.ConsoleError(err)
				// keep the stream open for the next update
			}
		}
	}
}

// Export downloads the selected rows of a list view.
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	v, ok := h.views.Get(chi.URLParam(r, "view"))
	if !ok || v.list == nil {
		http.NotFound(w, r)
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ids := v.list.Selection().IDs()
	if len(ids) == 0 {
		http.Error(w, "no rows selected", http.StatusBadRequest)
		return
	}

	rows, err := export.Collect(r.Context(), ids, func(ctx context.Context, id string) (core.Record, error) {
		return v.client.Get(ctx, v.res, id)
	}, exportConcurrency)
	if client.IsUnauthorized(err) {
		v.setUnauthorized(err)
		http.Redirect(w, r, session.ExpiredPath, http.StatusSeeOther)
		return
	}
	if err != nil {
		h.logger.Warn("export failed", "resource", v.res.Name, "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	table, err := export.Build(v.res.Columns, rows, v.engine.Cell)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename(v.res.Name)))
	if err := export.Write(w, format, v.res.Label, table); err != nil {
		h.logger.Warn("failed to write export", "resource", v.res.Name, "error", err)
	}
	h.logger.Info("exported rows", "resource", v.res.Name, "format", string(format), "rows", len(rows))
}

// openView creates the view of a page, loads it and renders the full page.
func (h *Handlers) openView(w http.ResponseWriter, r *http.Request, res *core.Resource, mode Mode, recordID string) {
	id := views.NewID()
	v, err := newView(viewConfig{
		ID:       id,
		Resource: res,
		Mode:     mode,
		Path:     r.URL.Path,
		RecordID: recordID,
		Client:   h.client(h.token(r)),
		Engine:   h.engine,
		Confirm:  h.slot,
		Logger:   h.logger,
		Debounce: h.debounce,
		Notify:   func() { h.notifier.Broadcast(id) },
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	v.Load(r.Context())
	if v.Unauthorized() {
		v.Close()
		http.Redirect(w, r, session.ExpiredPath, http.StatusSeeOther)
		return
	}
	h.views.Put(id, v)

	doc := components.Document(v.Title(), h.nav(res.Name), components.ActionURL(id, "updates"), h.isDev, v.Render())
	h.renderPage(w, r, doc)
}

func (h *Handlers) renderPage(w http.ResponseWriter, r *http.Request, doc gomponents.Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := components.Templ(doc).Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handlers) resource(w http.ResponseWriter, r *http.Request) (*core.Resource, bool) {
	res, ok := h.schemas.Get(chi.URLParam(r, "resource"))
	if !ok {
		http.NotFound(w, r)
		return nil, false
	}
	return res, true
}

func (h *Handlers) nav(current string) components.Nav {
	nav := components.Nav{Current: current}
	for _, res := range h.schemas.List() {
		nav.Items = append(nav.Items, components.NavItem{Name: res.Name, Label: res.Label})
	}
	return nav
}

func (h *Handlers) token(r *http.Request) string {
	return session.Token(h.sessions, r)
}

// parseForm accepts both multipart and urlencoded action bodies.
func parseForm(r *http.Request) error {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return fmt.Errorf("failed to parse form: %w", err)
	}
	return nil
}

// readUpload loads one uploaded part into a file handle.
func readUpload(hdr *multipart.FileHeader) (*core.FileHandle, error) {
	f, err := hdr.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload %s: %w", hdr.Filename, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload %s: %w", hdr.Filename, err)
	}
	return &core.FileHandle{
		Name:        hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
