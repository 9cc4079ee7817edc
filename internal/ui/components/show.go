package components

import (
	gomponents "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"
)

// DetailItem is one labelled value of the show page.
type DetailItem struct {
	Label string
	Value string
	Href  string
}

// ShowView is the read-only record page.
type ShowView struct {
	ViewID   string
	Title    string
	Items    []DetailItem
	EditHref string
	BackHref string
	Error    string
	Confirm  *Confirm
	CanEdit  bool
}

// Show renders one record.
func Show(v ShowView) gomponents.Node {
	items := make([]gomponents.Node, 0, 2*len(v.Items))
	for _, it := range v.Items {
		value := gomponents.Text(it.Value)
		if it.Href != "" {
			value = html.A(html.Href(it.Href), html.Target("_blank"), gomponents.Text(it.Value))
		}
		items = append(items, html.Dt(gomponents.Text(it.Label)), html.Dd(value))
	}
	return html.Div(html.ID(ViewElementID),
		html.H1(gomponents.Text(v.Title)),
		Banner("error", v.Error, ""),
		gomponents.If(v.Error == "", html.Dl(html.Class("detail"), gomponents.Group(items))),
		html.Div(html.Class("toolbar"),
			html.A(html.Href(v.BackHref), gomponents.Text("Back")),
			gomponents.If(v.CanEdit, html.A(html.Href(v.EditHref), gomponents.Text("Edit"))),
			gomponents.If(v.CanEdit, html.Button(html.Type("button"), html.Class("danger"),
				on("click", post(ActionURL(v.ViewID, "delete"))),
				gomponents.Text("Delete"),
			)),
		),
		ConfirmDialog(v.ViewID, v.Confirm),
	)
}
