package script

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/docdesk/pkg/core"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// DefaultMaxSteps bounds a single evaluation so a runaway schema snippet
// cannot stall a request.
const DefaultMaxSteps = 100_000

// handlerOptions allows if statements at the top level of on_change handlers.
var handlerOptions = &syntax.FileOptions{TopLevelControl: true, GlobalReassign: true}

// Engine evaluates column render expressions and field on_change handlers.
// It is safe for concurrent use; every evaluation runs on its own thread.
type Engine struct {
	globals  starlark.StringDict
	maxSteps uint64
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxSteps overrides the per-evaluation step budget.
func WithMaxSteps(n uint64) Option {
	return func(e *Engine) {
		e.maxSteps = n
	}
}

// WithLogger routes Starlark print() output to the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an engine with the standard builtins.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		globals:  Predeclared(),
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cell returns the display text of one column for one row.
// Render expressions see the record as `row`; plain columns read the accessor.
func (e *Engine) Cell(col core.Column, row core.Record) (string, error) {
	if col.Render == "" {
		if col.Accessor == "" {
			return "", nil
		}
		return core.DisplayValue(row[col.Accessor]), nil
	}

	rowVal, err := GoToStarlark(row)
	if err != nil {
		return "", &EvalError{Name: col.Header, Source: col.Render, Message: err.Error()}
	}
	result, err := e.eval("column "+col.Header, col.Render, starlark.StringDict{"row": rowVal})
	if err != nil {
		return "", err
	}
	return display(result), nil
}

// OnChange runs a field's on_change handler after the field changed.
// The handler sees `value` (the new value) and `values` (a read-only
// snapshot of the form) and calls set(name, value) to update other fields.
// The returned map holds the last value set for each name.
func (e *Engine) OnChange(field core.Field, values core.Values) (core.Values, error) {
	updates := core.Values{}
	if field.OnChange == "" {
		return updates, nil
	}

	snapshot, err := GoToStarlark(values)
	if err != nil {
		return nil, &EvalError{Name: field.Name, Source: field.OnChange, Message: err.Error()}
	}
	snapshot.Freeze()

	current, err := GoToStarlark(values[field.Name])
	if err != nil {
		return nil, &EvalError{Name: field.Name, Source: field.OnChange, Message: err.Error()}
	}

	set := starlark.NewBuiltin("set", func(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name string
		var v starlark.Value
		if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 2, &name, &v); err != nil {
			return nil, err
		}
		gv, err := ToGo(v)
		if err != nil {
			return nil, fmt.Errorf("set(%q): %w", name, err)
		}
		updates[name] = gv
		return starlark.None, nil
	})

	predeclared := make(starlark.StringDict, len(e.globals)+3)
	for k, v := range e.globals {
		predeclared[k] = v
	}
	predeclared["value"] = current
	predeclared["values"] = snapshot
	predeclared["set"] = set

	thread := e.newThread("on_change " + field.Name)
	if _, err := starlark.ExecFileOptions(handlerOptions, thread, field.Name+".star", field.OnChange, predeclared); err != nil {
		return nil, &EvalError{Name: field.Name, Source: field.OnChange, Message: err.Error()}
	}
	return updates, nil
}

// Check compiles every snippet of a resource without running it.
// Undefined names are reported; row, value, values and set are always known.
func (e *Engine) Check(res *core.Resource) error {
	known := func(name string) bool {
		if _, ok := e.globals[name]; ok {
			return true
		}
		if _, ok := starlark.Universe[name]; ok {
			return true
		}
		switch name {
		case "row", "value", "values", "set":
			return true
		}
		return false
	}

	compile := func(name, src string, opts *syntax.FileOptions) error {
		file, err := opts.Parse(name, src, 0)
		if err != nil {
			return err
		}
		_, err = starlark.FileProgram(file, known)
		return err
	}

	var problems []string
	for _, c := range res.Columns {
		if c.Render == "" {
			continue
		}
		if err := compile(c.Header, c.Render, &syntax.FileOptions{}); err != nil {
			problems = append(problems, fmt.Sprintf("column %q: %v", c.Header, err))
		}
	}
	for _, f := range res.Fields {
		if f.OnChange == "" {
			continue
		}
		if err := compile(f.Name+".star", f.OnChange, handlerOptions); err != nil {
			problems = append(problems, fmt.Sprintf("field %q on_change: %v", f.Name, err))
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("resource %s: %s", res.Name, strings.Join(problems, "; "))
	}
	return nil
}

func (e *Engine) eval(name, expr string, locals starlark.StringDict) (starlark.Value, error) {
	thread := e.newThread(name)

	env := make(starlark.StringDict, len(e.globals)+len(locals))
	for k, v := range e.globals {
		env[k] = v
	}
	for k, v := range locals {
		env[k] = v
	}

	result, err := starlark.EvalOptions(&syntax.FileOptions{}, thread, name, expr, env)
	if err != nil {
		return nil, &EvalError{Name: name, Source: expr, Message: err.Error()}
	}
	return result, nil
}

func (e *Engine) newThread(name string) *starlark.Thread {
	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			if e.logger != nil {
				e.logger.Debug("script print", "script", name, "msg", msg)
			}
		},
	}
	if e.maxSteps > 0 {
		thread.SetMaxExecutionSteps(e.maxSteps)
	}
	return thread
}

// EvalError represents an error while evaluating a schema snippet.
type EvalError struct {
	Name    string
	Source  string
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("%s: error evaluating %q: %s", e.Name, e.Source, e.Message)
}
