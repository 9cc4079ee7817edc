package devbackend

import (
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/leapstack-labs/docdesk/pkg/core"
)

// safeKey guards JSON paths built from schema and query keys.
var safeKey = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// buildWhere translates a list query into a WHERE clause over the JSON data
// column. Text filters match case-insensitive substrings, date filters match
// the calendar day, and date-range filters are inclusive on both ends.
// Unknown filter keys are ignored.
func buildWhere(res *core.Resource, q core.Query) (string, []any) {
	conds := []string{"resource = ?"}
	args := []any{res.Name}

	if search := strings.TrimSpace(q.Search); search != "" {
		var ors []string
		for _, key := range searchKeys(res) {
			ors = append(ors, "LOWER(CAST(json_extract(data, ?) AS TEXT)) LIKE ? ESCAPE '\\'")
			args = append(args, jsonPath(key), likePattern(search))
		}
		if len(ors) > 0 {
			conds = append(conds, "("+strings.Join(ors, " OR ")+")")
		}
	}

	for _, key := range sortedKeys(q.Filters) {
		value := strings.TrimSpace(q.Filters[key])
		if value == "" {
			continue
		}
		col, ok := res.ColumnForFilter(key)
		if !ok {
			continue
		}
		field := col.ResolvedFilterKey()
		if !safeKey.MatchString(field) {
			continue
		}
		day := "substr(json_extract(data, ?), 1, 10)"

		switch col.Filter {
		case core.FilterDateRange:
			op := ">="
			if key == core.RangeToKey(field) {
				op = "<="
			}
			conds = append(conds, day+" "+op+" ?")
			args = append(args, jsonPath(field), value)
		case core.FilterDate:
			conds = append(conds, day+" = ?")
			args = append(args, jsonPath(field), value)
		default:
			conds = append(conds, "LOWER(CAST(json_extract(data, ?) AS TEXT)) LIKE ? ESCAPE '\\'")
			args = append(args, jsonPath(field), likePattern(value))
		}
	}
	return strings.Join(conds, " AND "), args
}

// searchKeys are the record keys the free-text search looks at: every
// column accessor plus every text-like form field.
func searchKeys(res *core.Resource) []string {
	seen := map[string]bool{}
	var keys []string
	add := func(k string) {
		if k != "" && !seen[k] && safeKey.MatchString(k) {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for _, c := range res.Columns {
		add(c.Accessor)
	}
	for _, f := range res.Fields {
		switch f.Kind {
		case core.FieldText, core.FieldEmail, core.FieldTel, core.FieldTextarea, core.FieldSelect:
			add(f.Name)
		}
	}
	return keys
}

func jsonPath(key string) string {
	return `$."` + key + `"`
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(s)) + "%"
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
