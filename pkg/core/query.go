package core

import (
	"maps"
	"net/url"
	"slices"
	"strconv"
)

// Query is the effective list query sent to the backend.
type Query struct {
	Page    int
	PerPage int
	Search  string
	Filters map[string]string
}

// Normalize clamps page and page size to valid values.
func (q Query) Normalize(defaultPerPage int) Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage <= 0 {
		q.PerPage = defaultPerPage
	}
	if q.PerPage <= 0 {
		q.PerPage = DefaultPerPage
	}
	return q
}

// Clone returns a copy that does not share the filter map.
func (q Query) Clone() Query {
	q.Filters = maps.Clone(q.Filters)
	return q
}

// URLValues encodes the query with the backend parameter names.
// Empty filters are omitted.
func (q Query) URLValues() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("per_page", strconv.Itoa(q.PerPage))
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	for _, k := range slices.Sorted(maps.Keys(q.Filters)) {
		if q.Filters[k] != "" {
			v.Set(k, q.Filters[k])
		}
	}
	return v
}

// Result is one page of list results.
type Result struct {
	Rows     []Record
	Page     int
	PerPage  int
	Total    int
	LastPage int
}

// LastPageFor returns ceil(total/perPage). An empty result has last page 0.
func LastPageFor(total, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

// Pages returns the number of pages to offer in a pager, at least 1.
func (r Result) Pages() int {
	if r.LastPage < 1 {
		return 1
	}
	return r.LastPage
}
