// Package components renders the console HTML with gomponents. Every
// top-level node keeps a stable id so SSE patches morph it in place.
package components

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/a-h/templ"
	gomponents "maragu.dev/gomponents"
)

// ViewElementID is the id of the patched content element of a view.
const ViewElementID = "view"

// Templ adapts a node to templ so handlers can patch it over SSE.
func Templ(n gomponents.Node) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return n.Render(w)
	})
}

// ActionURL returns the path of a view action.
func ActionURL(viewID, action string, parts ...string) string {
	p := "/views/" + url.PathEscape(viewID) + "/" + action
	for _, s := range parts {
		p += "/" + url.PathEscape(s)
	}
	return p
}

func on(event, expr string) gomponents.Node {
	return gomponents.Attr("data-on:"+event, expr)
}

func post(u string) string {
	return fmt.Sprintf("@post('%s')", u)
}

// postForm submits the closest form, multipart when it declares so.
func postForm(u string) string {
	return fmt.Sprintf("@post('%s', {contentType: 'form'})", u)
}

func navigate(href string) string {
	return fmt.Sprintf("window.location.href = '%s'", href)
}
