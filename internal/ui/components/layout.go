package components

import (
	"github.com/leapstack-labs/docdesk/internal/ui/resources"
	gomponents "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"
)

// NavItem is one resource link of the sidebar.
type NavItem struct {
	Name  string
	Label string
}

// Nav is the sidebar.
type Nav struct {
	Items   []NavItem
	Current string
}

// Document is a full HTML page. body is wrapped in the sidebar shell.
// updatesURL, when set, opens the long-lived SSE stream of the view.
func Document(title string, nav Nav, updatesURL string, isDev bool, body gomponents.Node) gomponents.Node {
	return html.Doctype(html.HTML(html.Lang("en"),
		html.Head(
			html.Meta(html.Charset("utf-8")),
			html.Meta(html.Name("viewport"), html.Content("width=device-width, initial-scale=1")),
			html.TitleEl(gomponents.Text(title+" · docdesk")),
			html.Link(html.Rel("stylesheet"), html.Href(resources.StaticPath("app.css"))),
			html.Script(html.Type("module"), html.Src(resources.DatastarScript)),
		),
		html.Body(
			gomponents.If(isDev, html.Div(html.Data("init", "@get('/reload')"))),
			gomponents.If(updatesURL != "", html.Div(html.Data("init", "@get('"+updatesURL+"')"))),
			html.Div(html.Class("shell"),
				sidebar(nav),
				html.Main(html.Class("main"), body),
			),
		),
	))
}

func sidebar(nav Nav) gomponents.Node {
	links := make([]gomponents.Node, 0, len(nav.Items))
	for _, it := range nav.Items {
		links = append(links, html.A(
			html.Href("/"+it.Name),
			html.Class(classIf("", "active", it.Name == nav.Current)),
			gomponents.Text(it.Label),
		))
	}
	return html.Nav(html.Class("nav"),
		html.H3(html.A(html.Href("/"), gomponents.Text("docdesk"))),
		gomponents.Group(links),
	)
}

// Banner is a dismissable message. dismissURL may be empty.
func Banner(kind, msg, dismissURL string) gomponents.Node {
	if msg == "" {
		return nil
	}
	return html.Div(html.Class("banner "+kind), html.Role("alert"),
		html.Span(gomponents.Text(msg)),
		gomponents.If(dismissURL != "", html.Button(
			html.Type("button"),
			on("click", post(dismissURL)),
			gomponents.Text("Dismiss"),
		)),
	)
}

// Message is a simple standalone page body.
func Message(title, msg string, extra ...gomponents.Node) gomponents.Node {
	return html.Div(html.ID(ViewElementID),
		html.H1(gomponents.Text(title)),
		html.P(gomponents.Text(msg)),
		gomponents.Group(extra),
	)
}

// TokenForm lets an operator supply a bearer token for the session.
func TokenForm(flashes []string) gomponents.Node {
	notes := make([]gomponents.Node, 0, len(flashes))
	for _, f := range flashes {
		notes = append(notes, Banner("notice", f, ""))
	}
	return html.Div(
		gomponents.Group(notes),
		html.Form(html.Method("post"), html.Action("/session"),
			html.Div(html.Class("field"),
				html.Label(html.For("token"), gomponents.Text("API token")),
				html.Input(html.ID("token"), html.Name("token"), html.Type("password"), html.AutoComplete("off")),
			),
			html.Button(html.Type("submit"), html.Class("primary"), gomponents.Text("Continue")),
		),
	)
}

// Home lists the configured resources.
func Home(nav Nav) gomponents.Node {
	items := make([]gomponents.Node, 0, len(nav.Items))
	for _, it := range nav.Items {
		items = append(items, html.Li(html.A(html.Href("/"+it.Name), gomponents.Text(it.Label))))
	}
	return html.Div(html.ID(ViewElementID),
		html.H1(gomponents.Text("Resources")),
		gomponents.If(len(items) == 0, html.P(gomponents.Text("No resource schemas are loaded."))),
		html.Ul(gomponents.Group(items)),
	)
}

func classIf(base, extra string, cond bool) string {
	if !cond {
		return base
	}
	if base == "" {
		return extra
	}
	return base + " " + extra
}
