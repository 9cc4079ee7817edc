package console

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/docdesk/internal/batch"
	"github.com/leapstack-labs/docdesk/internal/form"
	"github.com/leapstack-labs/docdesk/internal/ui/components"
	"github.com/leapstack-labs/docdesk/internal/ui/session"
	"github.com/leapstack-labs/docdesk/pkg/core"
	"github.com/starfederation/datastar-go/datastar"
)

// outcome tells the action wrapper how to answer.
type outcome struct {
	// Redirect navigates the browser and drops the view
	Redirect string
	// Quiet skips the re-render, leaving updates to the stream
	Quiet bool
}

// actionFunc mutates a view. It runs before the SSE response starts, so it
// may still read the request body.
type actionFunc func(v *View, r *http.Request) (outcome, error)

type listSignals struct {
	Search  string            `json:"search"`
	Filters map[string]string `json:"filters"`
}

// action adapts an actionFunc to an SSE handler.
func (h *Handlers) action(name string, fn actionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "view")
		v, ok := h.views.Get(id)
		if !ok {
			sse := datastar.NewSSE(w, r)
			_ = sse.ExecuteScript("window.location.reload()")
			return
		}

		out, err := fn(v, r)
		if err != nil {
			v.logger.Debug("view action failed", "action", name, "error", err)
		}

		sse := datastar.NewSSE(w, r)
		switch {
		case v.Unauthorized():
			h.views.Remove(id)
			_ = sse.Redirect(session.ExpiredPath)
		case out.Redirect != "":
			h.views.Remove(id)
			_ = sse.Redirect(out.Redirect)
		case out.Quiet:
		default:
			if err := sse.PatchElementTempl(components.Templ(v.Render())); err != nil {
				_ = sse.ConsoleError(err)
			}
		}
	}
}

func requireList(v *View) error {
	if v.list == nil {
		return errViewMode
	}
	return nil
}

func requireForm(v *View) error {
	if v.form == nil {
		return errViewMode
	}
	return nil
}

func requireBatch(v *View) error {
	if v.batch == nil {
		return errViewMode
	}
	return nil
}

func (h *Handlers) search(v *View, r *http.Request) (outcome, error) {
	if err := requireList(v); err != nil {
		return outcome{Quiet: true}, err
	}
	var s listSignals
	if err := datastar.ReadSignals(r, &s); err != nil {
		return outcome{Quiet: true}, err
	}
	v.query.SetSearchText(s.Search)
	return outcome{Quiet: true}, nil
}

func (h *Handlers) applyFilters(v *View, r *http.Request) (outcome, error) {
	if err := requireList(v); err != nil {
		return outcome{}, err
	}
	var s listSignals
	if err := datastar.ReadSignals(r, &s); err != nil {
		return outcome{}, err
	}
	for _, c := range v.res.Columns {
		for _, k := range c.FilterKeys() {
			v.query.SetFilter(k, s.Filters[k])
		}
	}
	v.query.ApplyFiltersNow()
	return outcome{}, nil
}

func (h *Handlers) clearFilter(v *View, r *http.Request) (outcome, error) {
	if err := requireList(v); err != nil {
		return outcome{}, err
	}
	key := chi.URLParam(r, "key")
	for _, c := range v.res.Columns {
		if c.HasFilter() && c.ResolvedFilterKey() == key {
			// both bounds of a date range go together
			v.query.ClearFilter(c.FilterKeys()...)
			v.query.ApplyFiltersNow()
			return outcome{}, nil
		}
	}
	return outcome{}, fmt.Errorf("unknown filter %q", key)
}

func (h *Handlers) clearFilters(v *View, _ *http.Request) (outcome, error) {
	if err := requireList(v); err != nil {
		return outcome{}, err
	}
	v.query.ClearFilters()
	return outcome{}, nil
}

func (h *Handlers) setPage(v *View, r *http.Request) (outcome, error) {
	if err := requireList(v); err != nil {
		return outcome{}, err
	}
	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil {
		return outcome{}, fmt.Errorf("invalid page: %w", err)
	}
	if last := v.list.State().LastPage; last > 0 && page > last {
		page = last
	}
	v.query.SetPage(page)
	return outcome{}, nil
}

func (h *Handlers) setPerPage(v *View, r *http.Request) (outcome, error) {
	if err := requireList(v); err != nil {
		return outcome{}, err
	}
	n, err := strconv.Atoi(r.URL.Query().Get("n"))
	if err != nil || n <= 0 {
		return outcome{}, fmt.Errorf("invalid page size %q", r.URL.Query().Get("n"))
	}
	v.query.SetPerPage(n)
	return outcome{}, nil
}

func (h *Handlers) toggleRow(v *View, r *http.Request) (outcome, error) {
	if err := requireList(v); err != nil {
		return outcome{}, err
	}
	v.list.Toggle(chi.URLParam(r, "id"))
	return outcome{}, nil
}

func (h *Handlers) toggleAll(v *View, _ *http.Request) (outcome, error) {
	if err := requireList(v); err != nil {
		return outcome{}, err
	}
	v.list.ToggleAll()
	return outcome{}, nil
}

func (h *Handlers) deleteRecord(v *View, r *http.Request) (outcome, error) {
	id := chi.URLParam(r, "id")
	if id == "" {
		return outcome{}, v.RequestDelete()
	}
	return outcome{}, v.RequestDelete(id)
}

func (h *Handlers) bulkDelete(v *View, _ *http.Request) (outcome, error) {
	return outcome{}, v.RequestBulkDelete()
}

func (h *Handlers) confirm(v *View, r *http.Request) (outcome, error) {
	if !v.Confirm(r.Context()) {
		return outcome{}, nil
	}
	if v.mode == ModeShow {
		return outcome{Redirect: "/" + v.res.Name}, nil
	}
	return outcome{}, nil
}

func (h *Handlers) cancel(v *View, _ *http.Request) (outcome, error) {
	v.Cancel()
	return outcome{}, nil
}

func (h *Handlers) dismiss(v *View, _ *http.Request) (outcome, error) {
	v.Dismiss()
	return outcome{}, nil
}

func (h *Handlers) selectTab(v *View, r *http.Request) (outcome, error) {
	if v.shell == nil {
		return outcome{}, errViewMode
	}
	key := chi.URLParam(r, "key")
	if key == "view" {
		key = ""
	}
	href, ok := v.shell.SelectKey(key)
	if !ok {
		return outcome{}, fmt.Errorf("unknown tab %q", key)
	}
	return outcome{Redirect: href}, nil
}

func (h *Handlers) changeField(v *View, r *http.Request) (outcome, error) {
	if err := requireForm(v); err != nil {
		return outcome{}, err
	}
	if err := parseForm(r); err != nil {
		return outcome{}, err
	}
	name := chi.URLParam(r, "name")
	field, ok := v.form.Form().Field(name)
	if !ok {
		return outcome{}, fmt.Errorf("unknown field %q", name)
	}

	if field.Kind == core.FieldFile {
		fh, err := formFile(r, name)
		if err != nil || fh == nil {
			return outcome{}, err
		}
		return outcome{}, v.ChangeField(name, fh)
	}
	return outcome{}, v.ChangeField(name, r.FormValue(name))
}

func (h *Handlers) togglePassword(v *View, r *http.Request) (outcome, error) {
	if err := requireForm(v); err != nil {
		return outcome{}, err
	}
	if err := parseForm(r); err != nil {
		return outcome{}, err
	}
	name := chi.URLParam(r, "name")
	if _, ok := r.Form[name]; ok {
		_ = v.form.Form().SetRaw(name, r.FormValue(name))
	}
	v.form.Form().TogglePassword(name)
	return outcome{}, nil
}

func (h *Handlers) combo(v *View, r *http.Request) (outcome, error) {
	if err := requireForm(v); err != nil {
		return outcome{}, err
	}
	if err := parseForm(r); err != nil {
		return outcome{}, err
	}
	name := chi.URLParam(r, "name")
	q := r.URL.Query()
	switch {
	case q.Has("choose"):
		return outcome{}, v.Choose(name, q.Get("choose"))
	case q.Get("key") != "":
		return outcome{}, v.ComboKey(name, q.Get("key"))
	default:
		return outcome{}, v.ComboQuery(name, r.FormValue(name+components.QuerySuffix))
	}
}

func (h *Handlers) clearFile(v *View, r *http.Request) (outcome, error) {
	if err := requireForm(v); err != nil {
		return outcome{}, err
	}
	v.form.Form().ClearFile(chi.URLParam(r, "name"))
	return outcome{}, nil
}

func (h *Handlers) submit(v *View, r *http.Request) (outcome, error) {
	if err := requireForm(v); err != nil {
		return outcome{}, err
	}
	if err := parseForm(r); err != nil {
		return outcome{}, err
	}
	if err := syncForm(v.form.Form(), r, h.logger); err != nil {
		return outcome{}, err
	}

	next, err := v.Submit(r.Context())
	if errors.Is(err, form.ErrInvalid) {
		return outcome{}, nil
	}
	if err != nil {
		return outcome{}, err
	}
	h.logger.Info("record saved", "resource", v.res.Name, "edit", v.form.Edit())
	return outcome{Redirect: next}, nil
}

// syncForm copies every submitted field into the form so a submit sees
// values typed without a change event. Disabled inputs are not submitted
// and keep their value. Inputs that fail to decode stay on the form as
// rejected and block the submit.
func syncForm(f *form.Form, r *http.Request, logger *slog.Logger) error {
	for _, field := range f.Fields() {
		switch field.Kind {
		case core.FieldFile:
			fh, err := formFile(r, field.Name)
			if err != nil {
				return err
			}
			if fh != nil {
				f.Set(field.Name, fh)
			}
		case core.FieldCheckbox, core.FieldToggle:
			if field.Disabled {
				continue
			}
			if err := f.SetRaw(field.Name, r.FormValue(field.Name)); err != nil {
				logger.Debug("field input rejected", "field", field.Name, "error", err)
			}
		default:
			if _, ok := r.Form[field.Name]; ok {
				if err := f.SetRaw(field.Name, r.FormValue(field.Name)); err != nil {
					logger.Debug("field input rejected", "field", field.Name, "error", err)
				}
			}
		}
	}
	return nil
}

// formFile reads the upload of one field, or nil when none was sent.
func formFile(r *http.Request, name string) (*core.FileHandle, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[name]) == 0 {
		return nil, nil
	}
	hdr := r.MultipartForm.File[name][0]
	if hdr.Filename == "" {
		return nil, nil
	}
	return readUpload(hdr)
}

func (h *Handlers) batchFiles(v *View, r *http.Request) (outcome, error) {
	if err := requireBatch(v); err != nil {
		return outcome{}, err
	}
	if err := parseForm(r); err != nil {
		return outcome{}, err
	}
	if r.MultipartForm == nil {
		return outcome{}, nil
	}
	var files []*core.FileHandle
	for _, hdr := range r.MultipartForm.File["files"] {
		fh, err := readUpload(hdr)
		if err != nil {
			v.SetActionError(err)
			return outcome{}, err
		}
		files = append(files, fh)
	}
	err := v.batch.AddFiles(files...)
	if errors.Is(err, batch.ErrWrongState) {
		v.SetActionError(err)
	}
	return outcome{}, err
}

func (h *Handlers) batchRemove(v *View, r *http.Request) (outcome, error) {
	if err := requireBatch(v); err != nil {
		return outcome{}, err
	}
	v.batch.RemoveFile(chi.URLParam(r, "file"))
	return outcome{}, nil
}

func (h *Handlers) batchParse(v *View, r *http.Request) (outcome, error) {
	if err := requireBatch(v); err != nil {
		return outcome{}, err
	}
	return outcome{}, v.batch.Parse(r.Context())
}

func (h *Handlers) batchField(v *View, r *http.Request) (outcome, error) {
	if err := requireBatch(v); err != nil {
		return outcome{}, err
	}
	if err := parseForm(r); err != nil {
		return outcome{}, err
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return outcome{}, fmt.Errorf("invalid record index: %w", err)
	}
	name := chi.URLParam(r, "name")
	if err := v.batch.SetField(index, name, r.FormValue(components.BatchInputName(index, name))); err != nil {
		v.SetActionError(err)
		return outcome{}, err
	}
	v.Dismiss()
	return outcome{}, nil
}

func (h *Handlers) batchSubmit(v *View, r *http.Request) (outcome, error) {
	if err := requireBatch(v); err != nil {
		return outcome{}, err
	}
	next, err := v.batch.Submit(r.Context())
	if err != nil {
		return outcome{}, err
	}
	return outcome{Redirect: next}, nil
}

func (h *Handlers) batchBack(v *View, _ *http.Request) (outcome, error) {
	if err := requireBatch(v); err != nil {
		return outcome{}, err
	}
	v.batch.Back()
	return outcome{}, nil
}

func (h *Handlers) batchReset(v *View, _ *http.Request) (outcome, error) {
	if err := requireBatch(v); err != nil {
		return outcome{}, err
	}
	v.batch.Reset()
	v.Dismiss()
	return outcome{}, nil
}
