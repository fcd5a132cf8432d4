package templates

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/datacrew/internal/core"
)

// IndexParams feeds the upload page.
type IndexParams struct {
	Runs        []core.RunRecord
	MaxFileSize int64
	Error       *core.UserMessage
}

// IndexPage is the upload form followed by recent runs.
func IndexPage(p IndexParams) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if p.Error != nil {
			if err := ErrorAlert(p.Error.Message, p.Error.Action, p.Error.Code).Render(ctx, w); err != nil {
				return err
			}
		}

		_, err := fmt.Fprintf(w, `<section><h2>Analyze a dataset</h2>`+
			`<form method="post" action="/analyze" enctype="multipart/form-data">`+
			`<input type="file" name="file" accept=".csv,.xlsx" required> `+
			`<button type="submit">Start analysis</button></form>`+
			`<p class="muted">CSV or Excel (.xlsx), up to %d MB. The crew researches, cleans and reports on the data.</p></section>`,
			p.MaxFileSize>>20)
		if err != nil {
			return err
		}
		return RunHistory(p.Runs).Render(ctx, w)
	})
	return Page("Upload", body)
}

// RunHistory lists runs newest first.
func RunHistory(runs []core.RunRecord) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<section><h2>Recent runs</h2>`); err != nil {
			return err
		}
		if len(runs) == 0 {
			_, err := io.WriteString(w, `<p class="muted">No analyses yet.</p></section>`)
			return err
		}

		if _, err := io.WriteString(w, `<table><thead><tr><th>File</th><th>Status</th><th>Rows</th><th>Started</th><th>Duration</th></tr></thead><tbody>`); err != nil {
			return err
		}
		for _, r := range runs {
			duration := ""
			if d := r.Duration(); d > 0 {
				duration = d.Round(100 * time.Millisecond).String()
			}
			if _, err := fmt.Fprintf(w, `<tr><td><a href="/runs/%s">%s</a></td><td class="status">%s</td><td>%d</td><td>%s</td><td>%s</td></tr>`,
				esc(r.ID), esc(r.FileName), esc(string(r.Status)), r.Rows,
				r.StartedAt.Format("2006-01-02 15:04:05"), duration); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</tbody></table></section>`)
		return err
	})
}
