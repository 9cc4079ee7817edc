package components

import (
	"fmt"
	"net/url"

	"github.com/leapstack-labs/docdesk/internal/form"
	"github.com/leapstack-labs/docdesk/pkg/core"
	gomponents "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"
)

// FormID is the element id of the resource form.
const FormID = "resource-form"

// FieldView is the render state of one field.
type FieldView struct {
	Field   core.Field
	Value   string
	Checked bool
	Error   string
	// Visible is the password visibility flag
	Visible bool
	// Combo is set for searchable selects
	Combo *form.View
	// FileName is the name of a staged upload
	FileName string
	// DocHref links the stored document in edit mode
	DocHref string
}

// FormView is everything the add and edit forms render.
type FormView struct {
	ViewID      string
	Title       string
	Tabs        []TabItem
	Fields      []FieldView
	Edit        bool
	Loading     bool
	LoadError   string
	SubmitError string
	Submitting  bool
	CancelHref  string
}

// Form renders the resource form.
func Form(v FormView) gomponents.Node {
	if v.LoadError != "" {
		return html.Div(html.ID(ViewElementID),
			Tabs(v.ViewID, v.Tabs),
			Banner("error", v.LoadError, ""),
		)
	}

	fields := make([]gomponents.Node, 0, len(v.Fields))
	for _, f := range v.Fields {
		fields = append(fields, fieldNode(v.ViewID, f))
	}
	label := "Create"
	if v.Edit {
		label = "Save"
	}
	return html.Div(html.ID(ViewElementID),
		Tabs(v.ViewID, v.Tabs),
		gomponents.If(v.Title != "", html.H1(gomponents.Text(v.Title))),
		Banner("error", v.SubmitError, ActionURL(v.ViewID, "dismiss")),
		gomponents.If(v.Loading, html.P(html.Class("muted"), gomponents.Text("Loading…"))),
		html.Form(
			html.ID(FormID),
			html.Method("post"),
			html.EncType("multipart/form-data"),
			on("submit__prevent", postForm(ActionURL(v.ViewID, "submit"))),
			html.Div(html.Class("form-grid"), gomponents.Group(fields)),
			html.Div(html.Class("toolbar"),
				html.Button(html.Type("submit"), html.Class("primary"),
					gomponents.If(v.Submitting || v.Loading, html.Disabled()),
					gomponents.Text(label),
				),
				gomponents.If(v.CancelHref != "", html.A(html.Href(v.CancelHref), gomponents.Text("Cancel"))),
			),
		),
	)
}

func fieldNode(viewID string, f FieldView) gomponents.Node {
	field := f.Field
	inputID := "field-" + field.Name
	span := 6
	if field.Span() == 2 {
		span = 12
	}
	return html.Div(
		html.Class("field"),
		html.Style(fmt.Sprintf("grid-column: span %d", span)),
		html.Data("field", field.Name),
		html.Label(html.For(inputID), gomponents.Text(field.Label),
			gomponents.If(field.Required, html.Span(html.Class("required"), gomponents.Text(" *"))),
		),
		widget(viewID, inputID, f),
		gomponents.If(f.Error != "", html.Div(html.Class("error"), html.Role("alert"), gomponents.Text(f.Error))),
	)
}

func widget(viewID, inputID string, f FieldView) gomponents.Node {
	field := f.Field
	change := on("change", postForm(ActionURL(viewID, "field", field.Name)))
	common := []gomponents.Node{
		html.ID(inputID),
		html.Name(field.Name),
		gomponents.If(field.Disabled, html.Disabled()),
		gomponents.If(field.Placeholder != "", html.Placeholder(field.Placeholder)),
		gomponents.If(f.Error != "", html.Aria("invalid", "true")),
	}

	switch field.Kind {
	case core.FieldTextarea:
		return html.Textarea(gomponents.Group(common), html.Rows("4"), change, gomponents.Text(f.Value))

	case core.FieldSelect:
		if f.Combo != nil {
			return combobox(viewID, inputID, f)
		}
		opts := []gomponents.Node{html.Option(html.Value(""), gomponents.Text("Select…"))}
		for _, o := range field.Options {
			opts = append(opts, html.Option(html.Value(o.Value),
				gomponents.If(o.Value == f.Value, html.Selected()),
				gomponents.Text(o.Label),
			))
		}
		return html.Select(gomponents.Group(common), change, gomponents.Group(opts))

	case core.FieldCheckbox:
		return html.Input(gomponents.Group(common), html.Type("checkbox"), html.Value("true"),
			gomponents.If(f.Checked, html.Checked()), change)

	case core.FieldToggle:
		return html.Input(gomponents.Group(common), html.Type("checkbox"), html.Role("switch"), html.Value("true"),
			gomponents.If(f.Checked, html.Checked()), change)

	case core.FieldFile:
		return html.Div(
			html.Input(gomponents.Group(common), html.Type("file"), change),
			gomponents.If(f.FileName != "", html.Span(html.Class("file-name"),
				gomponents.Text(f.FileName),
				html.Button(html.Type("button"),
					on("click", post(ActionURL(viewID, "file", field.Name, "clear"))),
					gomponents.Text("Remove"),
				),
			)),
			gomponents.If(f.DocHref != "", html.A(
				html.Href(f.DocHref),
				html.Target("_blank"),
				gomponents.Text("Current document"),
			)),
		)

	case core.FieldPasswordToggle:
		kind, label := "password", "Show"
		if f.Visible {
			kind, label = "text", "Hide"
		}
		return html.Div(
			html.Input(gomponents.Group(common), html.Type(kind), html.Value(f.Value), html.AutoComplete("new-password"), change),
			html.Button(html.Type("button"),
				html.Aria("pressed", boolString(f.Visible)),
				on("click", postForm(ActionURL(viewID, "password", field.Name))),
				gomponents.Text(label),
			),
		)

	default:
		return html.Input(gomponents.Group(common), html.Type(inputType(field.Kind)), html.Value(f.Value), change)
	}
}

func inputType(k core.FieldKind) string {
	switch k {
	case core.FieldEmail:
		return "email"
	case core.FieldTel:
		return "tel"
	case core.FieldNumber:
		return "number"
	case core.FieldDate:
		return "date"
	default:
		return "text"
	}
}

const comboKeys = `['ArrowDown','ArrowUp','Enter','Escape'].includes(evt.key)`

func combobox(viewID, inputID string, f FieldView) gomponents.Node {
	field := f.Field
	c := f.Combo
	u := ActionURL(viewID, "combo", field.Name)

	shown := c.Query
	if !c.Open && shown == "" {
		shown = form.LabelFor(field.Options, f.Value)
	}

	items := make([]gomponents.Node, 0, len(c.Options))
	for i, o := range c.Options {
		items = append(items, html.Li(
			html.Role("option"),
			html.Class(classIf("", "highlight", i == c.Highlight)),
			html.Aria("selected", boolString(o.Value == f.Value)),
			on("mousedown__prevent", postForm(u+"?choose="+url.QueryEscape(o.Value))),
			gomponents.Text(o.Label),
		))
	}
	if c.Open && len(items) == 0 {
		items = append(items, html.Li(html.Class("muted"), gomponents.Text("No matches")))
	}

	return html.Div(html.Class("combo"),
		gomponents.If(c.Open, on("click__outside", postForm(u+"?key="+form.KeyEscape))),
		html.Input(html.Type("hidden"), html.Name(field.Name), html.Value(f.Value)),
		html.Input(
			html.ID(inputID),
			html.Name(field.Name+QuerySuffix),
			html.Type("text"),
			html.Role("combobox"),
			html.AutoComplete("off"),
			html.Aria("expanded", boolString(c.Open)),
			gomponents.If(field.Disabled, html.Disabled()),
			html.Placeholder(field.Placeholder),
			html.Value(shown),
			on("focus", postForm(u+"?key=open")),
			on("input", postForm(u)),
			on("keydown", "if ("+comboKeys+") { evt.preventDefault(); "+
				"@post('"+u+"?key=' + evt.key, {contentType: 'form'}) }"),
		),
		gomponents.If(c.Open, html.Ul(html.Role("listbox"), gomponents.Group(items))),
	)
}

// QuerySuffix names the typed-text input of a combobox.
const QuerySuffix = "__query"
