// Package resourceform wraps a form with create/edit mode detection,
// record loading and the multipart-or-JSON submit branch.
package resourceform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/leapstack-labs/docdesk/internal/client"
	"github.com/leapstack-labs/docdesk/internal/form"
	"github.com/leapstack-labs/docdesk/pkg/core"
)

// Config configures a ResourceForm.
type Config struct {
	Resource *core.Resource
	Client   client.Resources
	// ID is the route identifier; empty means create unless ForceEdit is set
	ID string
	// ForceEdit selects update semantics without an id (singletons)
	ForceEdit bool
	// Submit replaces the default create/update call when set
	Submit form.SubmitFunc
	Logger *slog.Logger
	// OnUnauthorized is called when a backend call fails with client.ErrUnauthorized
	OnUnauthorized func(error)
}

// ResourceForm is the resource form orchestrator.
type ResourceForm struct {
	res            *core.Resource
	client         client.Resources
	id             string
	edit           bool
	custom         form.SubmitFunc
	logger         *slog.Logger
	onUnauthorized func(error)

	form *form.Form

	mu      sync.Mutex
	loading bool
	loadErr error
	record  core.Record
}

// New creates the orchestrator. The form starts with field defaults.
func New(cfg Config) *ResourceForm {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ResourceForm{
		res:            cfg.Resource,
		client:         cfg.Client,
		id:             cfg.ID,
		edit:           cfg.ID != "" || cfg.ForceEdit || cfg.Resource.Singleton,
		custom:         cfg.Submit,
		logger:         logger,
		onUnauthorized: cfg.OnUnauthorized,
		form:           form.New(cfg.Resource.Fields, nil),
	}
}

// Edit reports whether the form uses update semantics.
func (r *ResourceForm) Edit() bool {
	return r.edit
}

// ID returns the record id being edited.
func (r *ResourceForm) ID() string {
	return r.id
}

// Resource returns the schema driving the form.
func (r *ResourceForm) Resource() *core.Resource {
	return r.res
}

// Form returns the underlying form state.
func (r *ResourceForm) Form() *form.Form {
	return r.form
}

// Loading reports whether the edit record is still being fetched.
func (r *ResourceForm) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}

// LoadError returns the error of the last Load.
func (r *ResourceForm) LoadError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadErr
}

// Record returns the loaded record, or nil in create mode.
func (r *ResourceForm) Record() core.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.record
}

// Load fetches the record in edit mode and seeds the form with it.
// In create mode it does nothing.
func (r *ResourceForm) Load(ctx context.Context) error {
	if !r.edit {
		return nil
	}

	r.mu.Lock()
	r.loading = true
	r.mu.Unlock()

	rec, err := r.client.Get(ctx, r.res, r.id)

	r.mu.Lock()
	r.loading = false
	r.loadErr = err
	r.record = rec
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("failed to load record", "resource", r.res.Name, "id", r.id, "error", err)
		r.unauthorized(err)
		return fmt.Errorf("load %s %s: %w", r.res.Name, r.id, err)
	}

	r.form.Seed(PrepareValues(r.res, rec))
	return nil
}

// Submit validates and sends the form. On success it returns the list path
// to navigate to and releases file handles. On a backend error the submit
// error is set and every value stays in place.
func (r *ResourceForm) Submit(ctx context.Context) (string, error) {
	err := r.form.Submit(ctx, r.send)
	if err != nil {
		if !errors.Is(err, form.ErrInvalid) {
			r.logger.Warn("submit failed", "resource", r.res.Name, "edit", r.edit, "error", err)
			r.unauthorized(err)
		}
		return "", err
	}
	r.form.Release()
	return "/" + r.res.Name, nil
}

func (r *ResourceForm) send(ctx context.Context, values core.Values) error {
	if r.custom != nil {
		return r.custom(ctx, values)
	}

	body := client.BodyFor(values)
	r.logger.Debug("submitting resource form", "resource", r.res.Name, "edit", r.edit, "encoding", body.Encoding.String())

	var err error
	if r.edit {
		_, err = r.client.Update(ctx, r.res, r.id, body)
	} else {
		_, err = r.client.Create(ctx, r.res, body)
	}
	return err
}

func (r *ResourceForm) unauthorized(err error) {
	if client.IsUnauthorized(err) && r.onUnauthorized != nil {
		r.onUnauthorized(err)
	}
}

// PrepareValues turns a loaded record into form values: configured nested
// relations are flattened one level, date fields are trimmed to YYYY-MM-DD,
// and undeclared keys are dropped. File fields start empty; the stored
// document stays visible through the record.
func PrepareValues(res *core.Resource, rec core.Record) core.Values {
	flat := FlattenRecord(rec, res.Flatten)

	values := make(core.Values, len(res.Fields))
	for _, f := range res.Fields {
		v, ok := flat[f.Name]
		if !ok || f.Kind == core.FieldFile {
			continue
		}
		if decoded, err := form.Decode(f, v); err == nil {
			v = decoded
		}
		values[f.Name] = v
	}
	return values
}

// FlattenRecord copies nested one-level paths such as "user.id" into flat
// keys such as "user_id". Existing flat keys are kept when the nested value
// is absent.
func FlattenRecord(rec core.Record, flatten []core.Flatten) core.Record {
	out := make(core.Record, len(rec)+len(flatten))
	for k, v := range rec {
		out[k] = v
	}
	for _, fl := range flatten {
		parent, child, ok := strings.Cut(fl.Path, ".")
		if !ok {
			continue
		}
		nested, ok := rec[parent].(map[string]any)
		if !ok {
			continue
		}
		if v, ok := nested[child]; ok {
			out[fl.Field] = v
		}
	}
	return out
}
