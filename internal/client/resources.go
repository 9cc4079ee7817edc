// Package client talks to the resource backend over HTTP using the
// conventional route layout of every resource.
package client

import (
	"context"

	"github.com/leapstack-labs/docdesk/pkg/core"
)

// Resources is the backend contract every console component depends on.
// Implementations return ErrUnauthorized for 401 responses so callers can
// propagate them instead of swallowing them.
type Resources interface {
	List(ctx context.Context, res *core.Resource, q core.Query) (core.Result, error)
	Get(ctx context.Context, res *core.Resource, id string) (core.Record, error)
	Create(ctx context.Context, res *core.Resource, body Body) (core.Record, error)
	Update(ctx context.Context, res *core.Resource, id string, body Body) (core.Record, error)
	Delete(ctx context.Context, res *core.Resource, id string) error
	BulkDelete(ctx context.Context, res *core.Resource, ids []string) error
	BulkCreate(ctx context.Context, res *core.Resource, columns Columns) error
	BulkParse(ctx context.Context, res *core.Resource, files []*core.FileHandle) (Columns, error)
	Download(ctx context.Context, path string) (*core.FileHandle, error)
}

// Columns is a column-major payload: one aligned array per field name.
type Columns map[string][]any

// Len returns the shared array length, or -1 when the arrays disagree.
func (c Columns) Len() int {
	n := -1
	for _, col := range c {
		if n == -1 {
			n = len(col)
			continue
		}
		if len(col) != n {
			return -1
		}
	}
	if n == -1 {
		return 0
	}
	return n
}

// Encoding selects how a create or update body is sent.
type Encoding int

// Body encodings.
const (
	EncodingJSON Encoding = iota
	EncodingMultipart
)

func (e Encoding) String() string {
	if e == EncodingMultipart {
		return "multipart"
	}
	return "json"
}

// Body is a create or update payload.
type Body struct {
	Values   core.Values
	Encoding Encoding
}

// BodyFor picks multipart when any value is a file handle and JSON otherwise.
func BodyFor(values core.Values) Body {
	if values.HasFile() {
		return Body{Values: values, Encoding: EncodingMultipart}
	}
	return Body{Values: values, Encoding: EncodingJSON}
}
