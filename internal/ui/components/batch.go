package components

import (
	"strconv"

	"github.com/leapstack-labs/docdesk/internal/batch"
	"github.com/leapstack-labs/docdesk/pkg/core"
	gomponents "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"
)

// BatchFile is one staged upload.
type BatchFile struct {
	ID   string
	Name string
	Size int64
}

// BatchRow is one parsed record under review.
type BatchRow struct {
	Index   int
	Values  map[string]string
	Folder  string
	DocName string
	DocHref string
}

// BatchView is everything the batch upload tab renders.
type BatchView struct {
	ViewID   string
	Resource string
	Tabs     []TabItem
	Status   batch.Status
	Files    []BatchFile
	MaxFiles int
	Fields   []core.Field
	Rows     []BatchRow
	Error    string
}

// BatchInputName names the review input of one parsed value.
func BatchInputName(index int, field string) string {
	return strconv.Itoa(index) + ":" + field
}

// Batch renders the batch upload wizard.
func Batch(v BatchView) gomponents.Node {
	var body gomponents.Node
	switch v.Status {
	case batch.StatusParsing:
		body = html.P(html.Class("muted"), gomponents.Text("Parsing documents…"))
	case batch.StatusSubmitting:
		body = html.P(html.Class("muted"), gomponents.Text("Creating records…"))
	case batch.StatusReviewing:
		body = batchReview(v)
	case batch.StatusDone:
		body = html.Div(
			Banner("notice", "All records were created.", ""),
			html.A(html.Href("/"+v.Resource), gomponents.Text("Back to list")),
		)
	default:
		body = batchCollect(v)
	}
	return html.Div(html.ID(ViewElementID),
		Tabs(v.ViewID, v.Tabs),
		Banner("error", v.Error, ""),
		body,
	)
}

func batchCollect(v BatchView) gomponents.Node {
	files := make([]gomponents.Node, 0, len(v.Files))
	for _, f := range v.Files {
		files = append(files, html.Li(
			html.Span(gomponents.Text(f.Name)),
			html.Span(html.Class("muted"), gomponents.Textf(" %d bytes ", f.Size)),
			html.Button(html.Type("button"),
				on("click", post(ActionURL(v.ViewID, "batch", "remove", f.ID))),
				gomponents.Text("Remove"),
			),
		))
	}
	return html.Div(
		html.Form(html.EncType("multipart/form-data"),
			html.Label(html.For("batch-files"), gomponents.Textf("Documents (up to %d)", v.MaxFiles)),
			html.Input(html.ID("batch-files"), html.Name("files"), html.Type("file"), html.Multiple(),
				on("change", postForm(ActionURL(v.ViewID, "batch", "files"))),
			),
		),
		gomponents.If(len(files) > 0, html.Ul(html.Class("files"), gomponents.Group(files))),
		html.Div(html.Class("toolbar"),
			html.Button(html.Type("button"), html.Class("primary"),
				gomponents.If(len(v.Files) == 0, html.Disabled()),
				on("click", post(ActionURL(v.ViewID, "batch", "parse"))),
				gomponents.Textf("Parse %d file(s)", len(v.Files)),
			),
			gomponents.If(len(v.Files) > 0, html.Button(html.Type("button"),
				on("click", post(ActionURL(v.ViewID, "batch", "reset"))),
				gomponents.Text("Clear"),
			)),
		),
	)
}

func batchReview(v BatchView) gomponents.Node {
	head := []gomponents.Node{html.Th(gomponents.Text("#")), html.Th(gomponents.Text("Document"))}
	for _, f := range v.Fields {
		head = append(head, html.Th(gomponents.Text(f.Label)))
	}
	head = append(head, html.Th(gomponents.Text("Folder")))

	rows := make([]gomponents.Node, 0, len(v.Rows))
	for _, r := range v.Rows {
		cells := []gomponents.Node{
			html.Td(gomponents.Text(strconv.Itoa(r.Index + 1))),
			html.Td(gomponents.If(r.DocHref != "", html.A(html.Href(r.DocHref), html.Target("_blank"), gomponents.Text(r.DocName)))),
		}
		for _, f := range v.Fields {
			cells = append(cells, html.Td(batchInput(v.ViewID, r.Index, f, r.Values[f.Name])))
		}
		cells = append(cells, html.Td(batchInput(v.ViewID, r.Index, core.Field{Name: batch.FolderKey}, r.Folder)))
		rows = append(rows, html.Tr(cells...))
	}

	return html.Form(html.EncType("multipart/form-data"),
		html.Table(html.Class("list"),
			html.THead(html.Tr(head...)),
			html.TBody(rows...),
		),
		html.Div(html.Class("toolbar"),
			html.Button(html.Type("button"),
				on("click", post(ActionURL(v.ViewID, "batch", "back"))),
				gomponents.Text("Back"),
			),
			html.Button(html.Type("button"), html.Class("primary"),
				on("click", post(ActionURL(v.ViewID, "batch", "submit"))),
				gomponents.Textf("Create %d record(s)", len(v.Rows)),
			),
		),
	)
}

func batchInput(viewID string, index int, f core.Field, value string) gomponents.Node {
	name := BatchInputName(index, f.Name)
	change := on("change", postForm(ActionURL(viewID, "batch", "field", strconv.Itoa(index), f.Name)))
	switch f.Kind {
	case core.FieldSelect:
		opts := []gomponents.Node{html.Option(html.Value(""), gomponents.Text("Select…"))}
		for _, o := range f.Options {
			opts = append(opts, html.Option(html.Value(o.Value), gomponents.If(o.Value == value, html.Selected()), gomponents.Text(o.Label)))
		}
		return html.Select(html.Name(name), change, gomponents.Group(opts))
	case core.FieldCheckbox, core.FieldToggle:
		return html.Input(html.Name(name), html.Type("checkbox"), html.Value("true"),
			gomponents.If(value == "Yes", html.Checked()), change)
	default:
		return html.Input(html.Name(name), html.Type(inputType(f.Kind)), html.Value(value), change)
	}
}
