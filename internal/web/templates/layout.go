// Package templates holds the HTML components of the web UI.
//
// Components are templ.Component values so handlers render them the same way
// whether they are full pages or HTMX-style partials.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// esc escapes text for HTML element and attribute content.
func esc(s string) string {
	return templ.EscapeString(s)
}

const styles = `body{font-family:system-ui,sans-serif;margin:0;background:#f7f7f8;color:#1f2328}
header{background:#1f2328;color:#fff;padding:12px 24px}header a{color:#fff;text-decoration:none;font-weight:600}
main{max-width:1100px;margin:24px auto;padding:0 24px}
section{background:#fff;border:1px solid #d0d7de;border-radius:6px;padding:16px;margin-bottom:16px}
table{border-collapse:collapse;width:100%;font-size:13px}th,td{border:1px solid #d0d7de;padding:4px 8px;text-align:left}
th{background:#f6f8fa}.scroll{overflow:auto;max-height:420px}
pre{white-space:pre-wrap;background:#f6f8fa;padding:12px;border-radius:6px;min-height:80px}
.alert{border-left:4px solid #cf222e;background:#ffebe9;padding:8px 12px;margin-bottom:16px}
.muted{color:#656d76;font-size:13px}.status{font-weight:600;text-transform:capitalize}
progress{width:100%}`

// Page wraps body in the shared HTML layout.
func Page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<meta name="viewport" content="width=device-width, initial-scale=1">`+
			`<title>%s | datacrew</title><style>%s</style></head><body>`+
			`<header><a href="/">datacrew</a> <span class="muted">data analysis crew</span></header><main>`,
			esc(title), styles); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}

// ErrorAlert renders a user-facing error with its support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<div class="alert" role="alert"><strong>%s</strong>`, esc(message))
		if err != nil {
			return err
		}
		if action != "" {
			if _, err := fmt.Fprintf(w, ` %s`, esc(action)); err != nil {
				return err
			}
		}
		if code != "" {
			if _, err := fmt.Fprintf(w, ` <span class="muted">(%s)</span>`, esc(code)); err != nil {
				return err
			}
		}
		_, err = io.WriteString(w, `</div>`)
		return err
	})
}
