// Package batch implements the two-step batch upload wizard: collect files,
// parse them server-side into records, review every field, then create all
// records in one bulk call.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/leapstack-labs/docdesk/internal/client"
	"github.com/leapstack-labs/docdesk/internal/form"
	"github.com/leapstack-labs/docdesk/pkg/core"
)

// Workflow errors.
var (
	ErrTooManyFiles  = errors.New("too many files")
	ErrShapeMismatch = errors.New("parse response arrays are not aligned with the uploaded files")
	ErrNoFiles       = errors.New("no files to parse")
	ErrWrongState    = errors.New("action not allowed in the current step")
	ErrUnknownField  = errors.New("field is neither parsed nor declared")
)

// FolderKey is the optional parse column carrying the source folder.
const FolderKey = "folder"

// Status is the step of the wizard.
type Status int

// Workflow steps.
const (
	StatusCollecting Status = iota
	StatusParsing
	StatusReviewing
	StatusSubmitting
	StatusDone
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusCollecting:
		return "collecting"
	case StatusParsing:
		return "parsing"
	case StatusReviewing:
		return "reviewing"
	case StatusSubmitting:
		return "submitting"
	case StatusDone:
		return "done"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Backend is the part of client.Resources the workflow calls.
type Backend interface {
	BulkParse(ctx context.Context, res *core.Resource, files []*core.FileHandle) (client.Columns, error)
	BulkCreate(ctx context.Context, res *core.Resource, columns client.Columns) error
}

// Record is one parsed file under review.
type Record struct {
	Index int
	// Fields holds every parsed column except the doc field and folder
	Fields core.Values
	// Folder is the optional source folder
	Folder string
	// ExistingDoc is the stored document reference from the doc field
	ExistingDoc string
}

// Config configures a Workflow.
type Config struct {
	Resource *core.Resource
	Backend  Backend
	Logger   *slog.Logger
	// OnUnauthorized is called when a backend call fails with client.ErrUnauthorized
	OnUnauthorized func(error)
}

// Workflow is the batch upload state machine of one view. Uploaded files
// belong to it until the batch is done or reset.
type Workflow struct {
	res            *core.Resource
	cfg            core.BatchConfig
	backend        Backend
	logger         *slog.Logger
	onUnauthorized func(error)

	mu      sync.Mutex
	status  Status
	files   []*core.FileHandle
	records []Record
	err     error
}

// New creates a workflow collecting files. The resource must enable batch upload.
func New(cfg Config) (*Workflow, error) {
	if cfg.Resource.Batch == nil {
		return nil, fmt.Errorf("resource %s has no batch upload", cfg.Resource.Name)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Workflow{
		res:            cfg.Resource,
		cfg:            *cfg.Resource.Batch,
		backend:        cfg.Backend,
		logger:         logger,
		onUnauthorized: cfg.OnUnauthorized,
	}, nil
}

// AddFiles appends files, assigning each a fresh id. The whole add is
// rejected with ErrTooManyFiles when the total would exceed the maximum.
func (w *Workflow) AddFiles(files ...*core.FileHandle) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.status != StatusCollecting {
		return ErrWrongState
	}
	if len(w.files)+len(files) > w.cfg.MaxFiles {
		w.err = fmt.Errorf("%w: %d selected, at most %d allowed", ErrTooManyFiles, len(w.files)+len(files), w.cfg.MaxFiles)
		return w.err
	}
	for _, f := range files {
		f.ID = uuid.NewString()
		w.files = append(w.files, f)
	}
	w.err = nil
	return nil
}

// RemoveFile drops one file by id.
func (w *Workflow) RemoveFile(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status != StatusCollecting {
		return false
	}
	before := len(w.files)
	w.files = slices.DeleteFunc(w.files, func(f *core.FileHandle) bool { return f.ID == id })
	return len(w.files) != before
}

// Parse sends every file in one bulk-parse call and builds one record per
// file. On failure the workflow returns to collecting with the files kept.
func (w *Workflow) Parse(ctx context.Context) error {
	w.mu.Lock()
	if w.status != StatusCollecting {
		w.mu.Unlock()
		return ErrWrongState
	}
	if len(w.files) == 0 {
		w.err = ErrNoFiles
		w.mu.Unlock()
		return ErrNoFiles
	}
	w.status = StatusParsing
	w.err = nil
	files := slices.Clone(w.files)
	w.mu.Unlock()

	cols, err := w.backend.BulkParse(ctx, w.res, files)
	var records []Record
	if err == nil {
		records, err = BuildRecords(cols, w.cfg.DocField, len(files))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.status = StatusCollecting
		w.err = err
		w.logger.Warn("batch parse failed", "resource", w.res.Name, "files", len(files), "error", err)
		w.unauthorized(err)
		return err
	}
	w.records = records
	w.status = StatusReviewing
	w.logger.Info("batch parsed", "resource", w.res.Name, "records", len(records))
	return nil
}

// SetField edits one parsed value. Declared batch fields are decoded for
// their kind; the doc field and folder edit their dedicated slots. Names
// that were not parsed for the record and are not declared are rejected.
func (w *Workflow) SetField(index int, name string, value any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.status != StatusReviewing {
		return ErrWrongState
	}
	if index < 0 || index >= len(w.records) {
		return fmt.Errorf("record %d out of range", index)
	}

	rec := &w.records[index]
	switch name {
	case w.cfg.DocField:
		rec.ExistingDoc = fmt.Sprint(value)
		return nil
	case FolderKey:
		rec.Folder = fmt.Sprint(value)
		return nil
	}

	_, known := rec.Fields[name]
	for _, f := range w.cfg.Fields {
		if f.Name == name {
			v, err := form.Decode(f, value)
			if err != nil {
				return err
			}
			value, known = v, true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	rec.Fields[name] = value
	return nil
}

// Submit pivots the reviewed records to column-major arrays and creates
// them in one call. Success returns the list path; failure returns to
// reviewing with every edit intact.
func (w *Workflow) Submit(ctx context.Context) (string, error) {
	w.mu.Lock()
	if w.status != StatusReviewing {
		w.mu.Unlock()
		return "", ErrWrongState
	}
	w.status = StatusSubmitting
	w.err = nil
	payload := Pivot(w.records, w.cfg.DocField)
	w.mu.Unlock()

	err := w.backend.BulkCreate(ctx, w.res, payload)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.status = StatusReviewing
		w.err = err
		w.logger.Warn("batch submit failed", "resource", w.res.Name, "records", len(w.records), "error", err)
		w.unauthorized(err)
		return "", err
	}
	w.status = StatusDone
	w.files = nil
	w.logger.Info("batch created", "resource", w.res.Name, "records", len(w.records))
	return "/" + w.res.Name, nil
}

// Back returns from review to file collection, discarding parsed records.
func (w *Workflow) Back() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status == StatusReviewing {
		w.status = StatusCollecting
		w.records = nil
		w.err = nil
	}
}

// Reset releases files and starts over.
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = StatusCollecting
	w.files = nil
	w.records = nil
	w.err = nil
}

// Snapshot is the state of the workflow for rendering.
type Snapshot struct {
	Status   Status
	Files    []*core.FileHandle
	Records  []Record
	Err      error
	MaxFiles int
	Fields   []core.Field
	DocField string
}

// Snapshot returns a copy of the state.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	records := make([]Record, len(w.records))
	for i, r := range w.records {
		r.Fields = maps.Clone(r.Fields)
		records[i] = r
	}
	return Snapshot{
		Status:   w.status,
		Files:    slices.Clone(w.files),
		Records:  records,
		Err:      w.err,
		MaxFiles: w.cfg.MaxFiles,
		Fields:   w.cfg.Fields,
		DocField: w.cfg.DocField,
	}
}

func (w *Workflow) unauthorized(err error) {
	if client.IsUnauthorized(err) && w.onUnauthorized != nil {
		w.onUnauthorized(err)
	}
}

// BuildRecords zips aligned parse columns into n records. Any column whose
// length differs from n fails the whole step with ErrShapeMismatch.
func BuildRecords(cols client.Columns, docField string, n int) ([]Record, error) {
	for name, col := range cols {
		if len(col) != n {
			return nil, fmt.Errorf("%w: %q has %d values for %d files", ErrShapeMismatch, name, len(col), n)
		}
	}
	if n > 0 && len(cols) == 0 {
		return nil, fmt.Errorf("%w: empty response for %d files", ErrShapeMismatch, n)
	}

	records := make([]Record, n)
	for i := range records {
		records[i] = Record{Index: i, Fields: make(core.Values, len(cols))}
	}
	for name, col := range cols {
		for i, v := range col {
			switch name {
			case docField:
				records[i].ExistingDoc = core.DisplayValue(v)
			case FolderKey:
				records[i].Folder = core.DisplayValue(v)
			default:
				records[i].Fields[name] = v
			}
		}
	}
	return records, nil
}

// Pivot turns records into one array per field ordered by record index.
// A field missing from some record contributes nil at that position.
func Pivot(records []Record, docField string) client.Columns {
	sorted := slices.Clone(records)
	slices.SortFunc(sorted, func(a, b Record) int { return a.Index - b.Index })

	names := map[string]bool{}
	hasFolder := false
	for _, r := range sorted {
		for k := range r.Fields {
			names[k] = true
		}
		if r.Folder != "" {
			hasFolder = true
		}
	}

	cols := make(client.Columns, len(names)+2)
	for name := range names {
		col := make([]any, len(sorted))
		for i, r := range sorted {
			col[i] = r.Fields[name]
		}
		cols[name] = col
	}
	if docField != "" {
		col := make([]any, len(sorted))
		for i, r := range sorted {
			col[i] = r.ExistingDoc
		}
		cols[docField] = col
	}
	if hasFolder {
		col := make([]any, len(sorted))
		for i, r := range sorted {
			col[i] = r.Folder
		}
		cols[FolderKey] = col
	}
	return cols
}
