package client

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/docdesk/pkg/core"
	"github.com/spf13/cast"
)

// envelope is the canonical paginated list response.
type envelope struct {
	Data        []map[string]any `mapstructure:"data"`
	CurrentPage int              `mapstructure:"current_page"`
	PerPage     int              `mapstructure:"per_page"`
	Total       int              `mapstructure:"total"`
	LastPage    int              `mapstructure:"last_page"`
}

// NormalizeList turns a decoded list response into a Result.
//
// The {data, current_page, per_page, total, last_page} envelope is the
// canonical shape; numbers may arrive as strings. A bare array is accepted
// as a compatibility shim: it is treated as the full result set and the
// requested page is cut from it.
func NormalizeList(raw any, q core.Query) (core.Result, error) {
	q = q.Normalize(core.DefaultPerPage)

	switch v := raw.(type) {
	case []any:
		return paginateArray(v, q)

	case map[string]any:
		if _, ok := v["data"]; !ok {
			return core.Result{}, fmt.Errorf("list response has no data key")
		}
		var env envelope
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &env,
		})
		if err != nil {
			return core.Result{}, err
		}
		if err := dec.Decode(v); err != nil {
			return core.Result{}, fmt.Errorf("invalid list envelope: %w", err)
		}

		res := core.Result{
			Page:     orDefault(env.CurrentPage, q.Page),
			PerPage:  orDefault(env.PerPage, q.PerPage),
			Total:    env.Total,
			LastPage: env.LastPage,
		}
		if res.Total == 0 && len(env.Data) > 0 && env.LastPage == 0 {
			res.Total = len(env.Data)
		}
		if res.LastPage == 0 {
			res.LastPage = core.LastPageFor(res.Total, res.PerPage)
		}
		res.Rows = toRecords(env.Data)
		if len(res.Rows) > res.PerPage {
			res.Rows = res.Rows[:res.PerPage]
		}
		return res, nil

	case nil:
		return core.Result{Page: q.Page, PerPage: q.PerPage}, nil

	default:
		return core.Result{}, fmt.Errorf("unexpected list response type %T", raw)
	}
}

func paginateArray(items []any, q core.Query) (core.Result, error) {
	rows := make([]core.Record, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return core.Result{}, fmt.Errorf("list item %d is %T, not an object", i, item)
		}
		rows = append(rows, core.Record(m))
	}

	total := len(rows)
	start := min((q.Page-1)*q.PerPage, total)
	end := min(start+q.PerPage, total)
	return core.Result{
		Rows:     rows[start:end],
		Page:     q.Page,
		PerPage:  q.PerPage,
		Total:    total,
		LastPage: core.LastPageFor(total, q.PerPage),
	}, nil
}

// NormalizeColumns decodes a bulk-parse response, with or without a data
// wrapper, into aligned columns.
func NormalizeColumns(raw any) (Columns, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parse response is %T, not an object", raw)
	}
	if inner, ok := m["data"].(map[string]any); ok {
		m = inner
	}
	cols := make(Columns, len(m))
	for k, v := range m {
		arr, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("parse column %q is %T, not an array", k, v)
		}
		cols[k] = arr
	}
	return cols, nil
}

// unwrapRecord accepts a bare record or {data: record}.
func unwrapRecord(raw any) (core.Record, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		if raw == nil {
			return core.Record{}, nil
		}
		return nil, fmt.Errorf("record response is %T, not an object", raw)
	}
	if inner, ok := m["data"].(map[string]any); ok && len(m) <= 2 {
		return core.Record(inner), nil
	}
	return core.Record(m), nil
}

func toRecords(data []map[string]any) []core.Record {
	rows := make([]core.Record, len(data))
	for i, m := range data {
		rows[i] = core.Record(m)
	}
	return rows
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// formValue renders a scalar for a multipart part.
func formValue(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case bool:
		if val {
			return "1", true
		}
		return "0", true
	default:
		s, err := cast.ToStringE(val)
		if err != nil {
			return fmt.Sprint(val), true
		}
		return s, true
	}
}
