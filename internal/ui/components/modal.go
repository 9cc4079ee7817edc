package components

import (
	gomponents "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"
)

// Confirm is a pending confirmation dialog.
type Confirm struct {
	Title       string
	Message     string
	ConfirmText string
	Busy        bool
}

// ConfirmDialog renders the modal of a pending confirmation, or nothing.
func ConfirmDialog(viewID string, c *Confirm) gomponents.Node {
	if c == nil {
		return nil
	}
	return html.Div(html.Class("modal-backdrop"),
		html.Div(html.Class("modal"), html.Role("dialog"), html.Aria("modal", "true"),
			html.H2(gomponents.Text(c.Title)),
			html.P(gomponents.Text(c.Message)),
			html.Div(html.Class("actions"),
				html.Button(html.Type("button"),
					on("click", post(ActionURL(viewID, "cancel"))),
					gomponents.Text("Cancel"),
				),
				html.Button(html.Type("button"), html.Class("danger"),
					gomponents.If(c.Busy, html.Disabled()),
					on("click", post(ActionURL(viewID, "confirm"))),
					gomponents.Text(c.ConfirmText),
				),
			),
		),
	)
}
