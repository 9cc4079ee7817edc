package components

import (
	"strconv"

	"github.com/leapstack-labs/docdesk/internal/listing"
	"github.com/leapstack-labs/docdesk/pkg/core"
	gomponents "maragu.dev/gomponents"
	data "maragu.dev/gomponents-datastar"
	html "maragu.dev/gomponents/html"
)

// PerPageOptions are the page sizes offered by the list toolbar.
var PerPageOptions = []int{10, 25, 50, 100}

// FilterControl is the filter input of one column.
type FilterControl struct {
	Kind        core.FilterKind
	Key         string
	Placeholder string
}

// TableColumn is one header cell and its optional filter.
type TableColumn struct {
	Header string
	Filter *FilterControl
}

// TableRow is one rendered record.
type TableRow struct {
	ID       string
	Cells    []string
	Selected bool
}

// ListView is everything the list tab renders.
type ListView struct {
	ViewID      string
	Resource    string
	Label       string
	Tabs        []TabItem
	Columns     []TableColumn
	Rows        []TableRow
	Filters     map[string]string
	Search      string
	Loading     bool
	Error       string
	Notice      string
	AllSelected bool
	Selected    int
	Page        int
	LastPage    int
	PerPage     int
	Total       int
	Confirm     *Confirm
}

// HasFilters reports whether the filter row is rendered.
func (v ListView) HasFilters() bool {
	for _, c := range v.Columns {
		if c.Filter != nil {
			return true
		}
	}
	return false
}

// ColumnCount is the number of table columns including the checkbox and
// actions columns.
func (v ListView) ColumnCount() int {
	return len(v.Columns) + 2
}

// List renders the list tab.
func List(v ListView) gomponents.Node {
	return html.Div(html.ID(ViewElementID),
		data.Signals(map[string]any{"search": v.Search, "filters": filterSignals(v)}),
		Tabs(v.ViewID, v.Tabs),
		Banner("notice", v.Notice, ActionURL(v.ViewID, "dismiss")),
		Banner("error", v.Error, ActionURL(v.ViewID, "dismiss")),
		toolbar(v),
		html.Table(html.Class("list"),
			html.THead(headerRow(v), gomponents.If(v.HasFilters(), filterRow(v))),
			html.TBody(bodyRows(v)...),
		),
		Pager(v.ViewID, v.Page, v.LastPage, v.Total),
		ConfirmDialog(v.ViewID, v.Confirm),
	)
}

func filterSignals(v ListView) map[string]any {
	out := map[string]any{}
	for _, c := range v.Columns {
		if c.Filter == nil {
			continue
		}
		for _, k := range filterKeys(c.Filter) {
			out[k] = v.Filters[k]
		}
	}
	return out
}

func filterKeys(f *FilterControl) []string {
	if f.Kind == core.FilterDateRange {
		return []string{core.RangeFromKey(f.Key), core.RangeToKey(f.Key)}
	}
	return []string{f.Key}
}

func toolbar(v ListView) gomponents.Node {
	perPage := make([]gomponents.Node, 0, len(PerPageOptions))
	for _, n := range PerPageOptions {
		perPage = append(perPage, html.Option(
			html.Value(strconv.Itoa(n)),
			gomponents.If(n == v.PerPage, html.Selected()),
			gomponents.Text(strconv.Itoa(n)+" / page"),
		))
	}
	return html.Div(html.Class("toolbar"),
		html.Input(
			html.Type("search"),
			html.Name("search"),
			html.Placeholder("Search "+v.Label),
			html.Value(v.Search),
			data.Bind("search"),
			on("input", post(ActionURL(v.ViewID, "search"))),
		),
		html.Button(html.Type("button"),
			on("click", post(ActionURL(v.ViewID, "filters", "clear"))),
			gomponents.Text("Clear filters"),
		),
		html.Span(html.Class("spacer")),
		gomponents.If(v.Loading, html.Span(html.Class("muted"), gomponents.Text("Loading…"))),
		gomponents.If(v.Selected > 0, gomponents.Group([]gomponents.Node{
			html.Span(gomponents.Textf("%d selected", v.Selected)),
			html.A(html.Href(ActionURL(v.ViewID, "export")+"?format=xlsx"), gomponents.Text("Export XLSX")),
			html.A(html.Href(ActionURL(v.ViewID, "export")+"?format=csv"), gomponents.Text("Export CSV")),
			html.Button(html.Type("button"), html.Class("danger"),
				on("click", post(ActionURL(v.ViewID, "bulk-delete"))),
				gomponents.Text("Delete selected"),
			),
		})),
		html.Select(html.Name("per_page"),
			on("change", "@post('"+ActionURL(v.ViewID, "per-page")+"?n=' + evt.target.value)"),
			gomponents.Group(perPage),
		),
	)
}

func headerRow(v ListView) gomponents.Node {
	cells := []gomponents.Node{
		html.Th(html.Input(
			html.Type("checkbox"),
			html.Aria("label", "Select all"),
			gomponents.If(v.AllSelected, html.Checked()),
			on("click__stop", post(ActionURL(v.ViewID, "select-all"))),
		)),
	}
	for _, c := range v.Columns {
		cells = append(cells, html.Th(gomponents.Text(c.Header)))
	}
	cells = append(cells, html.Th(gomponents.Text("Actions")))
	return html.Tr(cells...)
}

func filterRow(v ListView) gomponents.Node {
	cells := []gomponents.Node{html.Th()}
	for _, c := range v.Columns {
		if c.Filter == nil {
			cells = append(cells, html.Th())
			continue
		}
		cells = append(cells, html.Th(filterControl(v.ViewID, c.Filter)))
	}
	cells = append(cells, html.Th())
	return html.Tr(html.Class("filters"), gomponents.Group(cells))
}

func filterControl(viewID string, f *FilterControl) gomponents.Node {
	apply := on("change", post(ActionURL(viewID, "filter")))
	clear := html.Button(html.Type("button"), html.Aria("label", "Clear filter"),
		on("click", post(ActionURL(viewID, "filter", "clear", f.Key))),
		gomponents.Text("×"),
	)
	switch f.Kind {
	case core.FilterDateRange:
		return html.Div(
			html.Input(html.Type("date"), html.Aria("label", f.Placeholder+" from"), data.Bind("filters."+core.RangeFromKey(f.Key)), apply),
			html.Input(html.Type("date"), html.Aria("label", f.Placeholder+" to"), data.Bind("filters."+core.RangeToKey(f.Key)), apply),
			clear,
		)
	case core.FilterDate:
		return html.Div(
			html.Input(html.Type("date"), html.Aria("label", f.Placeholder), data.Bind("filters."+f.Key), apply),
			clear,
		)
	default:
		return html.Div(
			html.Input(html.Type("text"), html.Placeholder(f.Placeholder), data.Bind("filters."+f.Key), apply),
			clear,
		)
	}
}

func bodyRows(v ListView) []gomponents.Node {
	if len(v.Rows) == 0 {
		msg := "No records found."
		if v.Loading {
			msg = "Loading…"
		}
		return []gomponents.Node{html.Tr(
			html.Td(html.Class("empty"), html.ColSpan(strconv.Itoa(v.ColumnCount())), gomponents.Text(msg)),
		)}
	}

	rows := make([]gomponents.Node, 0, len(v.Rows))
	for _, r := range v.Rows {
		show := "/" + v.Resource + "/show/" + r.ID
		cells := []gomponents.Node{
			html.Td(html.Input(
				html.Type("checkbox"),
				html.Aria("label", "Select row"),
				gomponents.If(r.Selected, html.Checked()),
				on("click__stop", post(ActionURL(v.ViewID, "select", r.ID))),
			)),
		}
		for _, c := range r.Cells {
			cells = append(cells, html.Td(gomponents.Text(c)))
		}
		edit := "/" + v.Resource + "/edit/" + r.ID
		cells = append(cells, html.Td(html.Class("actions"),
			on("click__stop", "void 0"),
			html.A(html.Href(edit), on("click__stop", navigate(edit)), gomponents.Text("Edit")),
			html.Button(html.Type("button"), html.Class("danger"),
				on("click__stop", post(ActionURL(v.ViewID, "delete", r.ID))),
				gomponents.Text("Delete"),
			),
		))
		rows = append(rows, html.Tr(html.Class("row"), html.Data("id", r.ID),
			on("click", navigate(show)),
			gomponents.Group(cells),
		))
	}
	return rows
}

// Pager renders the windowed pagination strip.
func Pager(viewID string, page, lastPage, total int) gomponents.Node {
	items := listing.PageWindow(page, lastPage, listing.PagerDelta)
	nodes := make([]gomponents.Node, 0, len(items)+3)
	nodes = append(nodes, html.Button(html.Type("button"),
		gomponents.If(page <= 1, html.Disabled()),
		on("click", post(ActionURL(viewID, "page", strconv.Itoa(page-1)))),
		gomponents.Text("Previous"),
	))
	for _, it := range items {
		if it.Ellipsis {
			nodes = append(nodes, html.Span(html.Class("ellipsis"), gomponents.Text("…")))
			continue
		}
		nodes = append(nodes, html.Button(html.Type("button"),
			html.Class(classIf("", "current", it.Current)),
			gomponents.If(it.Current, html.Aria("current", "page")),
			on("click", post(ActionURL(viewID, "page", strconv.Itoa(it.Page)))),
			gomponents.Text(strconv.Itoa(it.Page)),
		))
	}
	nodes = append(nodes,
		html.Button(html.Type("button"),
			gomponents.If(page >= lastPage, html.Disabled()),
			on("click", post(ActionURL(viewID, "page", strconv.Itoa(page+1)))),
			gomponents.Text("Next"),
		),
		html.Span(html.Class("muted"), gomponents.Textf("%d total", total)),
	)
	return html.Nav(html.Class("pager"), html.Aria("label", "Pagination"), gomponents.Group(nodes))
}
