package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leapstack-labs/docdesk/internal/batch"
	"github.com/leapstack-labs/docdesk/internal/bulk"
	"github.com/leapstack-labs/docdesk/internal/client"
	"github.com/leapstack-labs/docdesk/internal/listing"
	"github.com/leapstack-labs/docdesk/internal/query"
	"github.com/leapstack-labs/docdesk/internal/resourceform"
	"github.com/leapstack-labs/docdesk/internal/script"
	"github.com/leapstack-labs/docdesk/internal/tabs"
	"github.com/leapstack-labs/docdesk/pkg/core"
)

// Mode is what a view shows.
type Mode int

// View modes.
const (
	ModeList Mode = iota
	ModeAdd
	ModeBatch
	ModeShow
	ModeEdit
)

func (m Mode) String() string {
	switch m {
	case ModeList:
		return "list"
	case ModeAdd:
		return "add"
	case ModeBatch:
		return "batch"
	case ModeShow:
		return "show"
	case ModeEdit:
		return "edit"
	default:
		return "unknown"
	}
}

// viewConfig configures a View.
type viewConfig struct {
	ID       string
	Resource *core.Resource
	Mode     Mode
	Path     string
	RecordID string
	Client   client.Resources
	Engine   *script.Engine
	Confirm  *confirmSlot
	Logger   *slog.Logger
	Debounce time.Duration
	Notify   func()
}

// View is the server-side state of one open page. Every component the page
// needs lives here so SSE actions and the updates stream share it.
type View struct {
	id       string
	res      *core.Resource
	mode     Mode
	recordID string
	shell    *tabs.Shell
	client   client.Resources
	engine   *script.Engine
	logger   *slog.Logger
	notify   func()

	ctx    context.Context
	cancel context.CancelFunc

	query *query.Controller
	list  *listing.Page
	slot  *confirmSlot

	form  *resourceform.ResourceForm
	batch *batch.Workflow

	mu         sync.Mutex
	deregister func()
	pending    *bulk.Confirmation
	confirming bool
	actionErr  string
	notice     string
	record     core.Record
	showErr    error

	unauthorized atomic.Bool
}

func newView(cfg viewConfig) (*View, error) {
	ctx, cancel := context.WithCancel(context.Background())
	v := &View{
		id:       cfg.ID,
		res:      cfg.Resource,
		mode:     cfg.Mode,
		recordID: cfg.RecordID,
		client:   cfg.Client,
		engine:   cfg.Engine,
		logger:   cfg.Logger.With("view", cfg.ID, "resource", cfg.Resource.Name, "mode", cfg.Mode.String()),
		notify:   cfg.Notify,
		slot:     cfg.Confirm,
		ctx:      ctx,
		cancel:   cancel,
	}
	if v.notify == nil {
		v.notify = func() {}
	}
	if !cfg.Resource.Singleton && (cfg.Mode == ModeList || cfg.Mode == ModeAdd || cfg.Mode == ModeBatch) {
		v.shell = tabs.New(tabs.ForResource(cfg.Resource), cfg.Path, "/"+cfg.Resource.Name, 0)
	}

	if v.slot == nil {
		v.slot = &confirmSlot{dispatcher: bulk.NewDispatcher(v.logger)}
	}

	switch cfg.Mode {
	case ModeList:
		v.list = listing.New(listing.Config{
			Resource: cfg.Resource,
			Fetch: func(ctx context.Context, q core.Query) (core.Result, error) {
				return v.client.List(ctx, v.res, q)
			},
			Logger:         v.logger,
			OnChange:       v.notify,
			OnUnauthorized: v.setUnauthorized,
		})
		v.query = query.New(query.Config{
			PerPage:  cfg.Resource.PerPage,
			Debounce: cfg.Debounce,
			OnQuery: func(q core.Query) {
				v.list.Load(v.ctx, q)
			},
		})

	case ModeAdd, ModeEdit:
		v.form = resourceform.New(resourceform.Config{
			Resource:       cfg.Resource,
			Client:         cfg.Client,
			ID:             cfg.RecordID,
			ForceEdit:      cfg.Resource.Singleton,
			Logger:         v.logger,
			OnUnauthorized: v.setUnauthorized,
		})

	case ModeBatch:
		wf, err := batch.New(batch.Config{
			Resource:       cfg.Resource,
			Backend:        cfg.Client,
			Logger:         v.logger,
			OnUnauthorized: v.setUnauthorized,
		})
		if err != nil {
			v.Close()
			return nil, err
		}
		v.batch = wf
	}
	return v, nil
}

// ID returns the view id.
func (v *View) ID() string {
	return v.id
}

// Resource returns the schema the view was opened with.
func (v *View) Resource() *core.Resource {
	return v.res
}

// Mode returns what the view shows.
func (v *View) Mode() Mode {
	return v.mode
}

// Unauthorized reports whether a backend call answered 401.
func (v *View) Unauthorized() bool {
	return v.unauthorized.Load()
}

func (v *View) setUnauthorized(error) {
	v.unauthorized.Store(true)
}

// Load performs the initial fetch of the view.
func (v *View) Load(ctx context.Context) {
	switch v.mode {
	case ModeList:
		v.list.Load(ctx, v.query.Effective())
	case ModeAdd, ModeEdit:
		_ = v.form.Load(ctx)
	case ModeShow:
		rec, err := v.client.Get(ctx, v.res, v.recordID)
		if client.IsUnauthorized(err) {
			v.setUnauthorized(err)
		}
		v.mu.Lock()
		v.record, v.showErr = rec, err
		v.mu.Unlock()
	}
}

// Close releases the timer, the confirmation slot and any held uploads.
func (v *View) Close() {
	v.cancel()
	if v.query != nil {
		v.query.Close()
	}
	v.mu.Lock()
	deregister := v.deregister
	v.deregister = nil
	v.mu.Unlock()
	if deregister != nil {
		deregister()
	}
	if v.form != nil {
		v.form.Form().Release()
	}
	if v.batch != nil {
		v.batch.Reset()
	}
}

// RequestDelete asks for confirmation before deleting ids. With no ids the
// view's own record is deleted.
func (v *View) RequestDelete(ids ...string) error {
	if len(ids) == 0 && v.recordID != "" {
		ids = []string{v.recordID}
	}
	if len(ids) == 0 {
		return nil
	}

	del := func(ctx context.Context, ids []string) error {
		var err error
		if len(ids) == 1 {
			err = v.client.Delete(ctx, v.res, ids[0])
		} else {
			err = v.client.BulkDelete(ctx, v.res, ids)
		}
		if err != nil {
			return err
		}
		if v.list != nil {
			v.list.OnDeleted(ids...)
			v.list.Refresh(ctx)
		}
		return nil
	}
	return v.slot.request(v, bulk.DeleteConfirmation(v.res.Label, ids, del))
}

// RequestBulkDelete asks to delete the current selection.
func (v *View) RequestBulkDelete() error {
	if v.list == nil {
		return nil
	}
	ids := v.list.Selection().IDs()
	if len(ids) == 0 {
		return nil
	}
	return v.RequestDelete(ids...)
}

// Confirm runs the pending confirmation. It reports whether the action
// succeeded.
func (v *View) Confirm(ctx context.Context) bool {
	v.mu.Lock()
	c := v.pending
	if c == nil || v.confirming {
		v.mu.Unlock()
		return false
	}
	v.confirming = true
	v.mu.Unlock()

	err := c.OnConfirm(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending = nil
	v.confirming = false
	if err != nil {
		if client.IsUnauthorized(err) {
			v.setUnauthorized(err)
		}
		v.logger.Warn("confirmed action failed", "type", string(c.Type), "error", err)
		v.actionErr = err.Error()
		return false
	}
	v.actionErr = ""
	v.notice = "Done."
	if c.Type == bulk.KindDelete {
		v.notice = "Deleted."
	}
	return true
}

// Cancel drops the pending confirmation.
func (v *View) Cancel() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending = nil
}

// Dismiss clears every banner of the view.
func (v *View) Dismiss() {
	v.mu.Lock()
	v.actionErr = ""
	v.notice = ""
	v.mu.Unlock()
	if v.list != nil {
		v.list.DismissError()
	}
	if v.form != nil {
		v.form.Form().DismissSubmitError()
	}
}

// SetActionError shows err as a view-level banner.
func (v *View) SetActionError(err error) {
	if err == nil {
		return
	}
	if client.IsUnauthorized(err) {
		v.setUnauthorized(err)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.actionErr = err.Error()
}

// ChangeField stores a submitted value and runs the field's on_change
// handler over the updated form.
func (v *View) ChangeField(name string, raw any) error {
	f := v.form.Form()
	if err := f.SetRaw(name, raw); err != nil {
		return err
	}
	return v.runOnChange(name)
}

func (v *View) runOnChange(name string) error {
	f := v.form.Form()
	field, ok := f.Field(name)
	if !ok || field.OnChange == "" {
		return nil
	}
	updates, err := v.engine.OnChange(field, f.Values())
	if err != nil {
		v.logger.Warn("on_change failed", "field", name, "error", err)
		f.SetError(name, err.Error())
		return err
	}
	if ignored := f.Apply(updates); len(ignored) > 0 {
		v.logger.Debug("on_change set undeclared fields", "field", name, "ignored", ignored)
	}
	return nil
}

// Choose commits a searchable select option.
func (v *View) Choose(name, value string) error {
	sel, ok := v.form.Form().Select(name)
	if !ok {
		return fmt.Errorf("field %q is not a searchable select", name)
	}
	return v.ChangeField(name, sel.Choose(value))
}

// ComboKey handles one combobox keystroke or the special "open" key.
func (v *View) ComboKey(name, key string) error {
	sel, ok := v.form.Form().Select(name)
	if !ok {
		return fmt.Errorf("field %q is not a searchable select", name)
	}
	if key == "open" {
		sel.Open()
		return nil
	}
	if value, committed := sel.Key(key); committed {
		return v.ChangeField(name, value)
	}
	return nil
}

// ComboQuery updates the typed text of a combobox.
func (v *View) ComboQuery(name, q string) error {
	sel, ok := v.form.Form().Select(name)
	if !ok {
		return fmt.Errorf("field %q is not a searchable select", name)
	}
	sel.SetQuery(q)
	return nil
}

// Submit sends the form and returns where to go next.
func (v *View) Submit(ctx context.Context) (string, error) {
	next, err := v.form.Submit(ctx)
	if err != nil {
		return "", err
	}
	if v.res.Singleton {
		return "/" + v.res.Name, nil
	}
	return next, nil
}

// docHref links a stored document through the console's download proxy.
func (v *View) docHref(docPath string) string {
	if docPath == "" {
		return ""
	}
	return "/" + v.res.Name + "/doc?path=" + url.QueryEscape(docPath)
}

func docName(docPath string) string {
	if docPath == "" {
		return ""
	}
	return path.Base(docPath)
}

var errViewMode = errors.New("action not available in this view")
