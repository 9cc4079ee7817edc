package components

import (
	gomponents "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"
)

// TabItem is one tab of the resource shell.
type TabItem struct {
	Key    string
	Label  string
	Active bool
}

// Tabs renders the tab strip. Selecting a tab posts to the view, which
// marks it active and redirects to its path.
func Tabs(viewID string, items []TabItem) gomponents.Node {
	if len(items) == 0 {
		return nil
	}
	buttons := make([]gomponents.Node, 0, len(items))
	for _, t := range items {
		key := t.Key
		if key == "" {
			key = "view"
		}
		buttons = append(buttons, html.Button(
			html.Type("button"),
			html.Role("tab"),
			html.Class(classIf("", "active", t.Active)),
			html.Aria("selected", boolString(t.Active)),
			on("click", post(ActionURL(viewID, "tab", key))),
			gomponents.Text(t.Label),
		))
	}
	return html.Div(html.Class("tabs"), html.Role("tablist"), gomponents.Group(buttons))
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
