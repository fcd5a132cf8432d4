package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/datacrew/internal/core"
	"github.com/JonMunkholm/datacrew/internal/dataset"
)

// RunParams feeds the run page. Preview is nil once the run has left memory.
type RunParams struct {
	Run      core.RunRecord
	Progress *core.RunProgress
	Preview  *dataset.Preview
}

// RunPage shows the dataframe preview, live progress and the crew output.
func RunPage(p RunParams) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		r := p.Run
		if _, err := fmt.Fprintf(w, `<section><h2>%s</h2><p class="muted">%d rows x %d columns, model %s</p>`,
			esc(r.FileName), r.Rows, r.Columns, esc(r.Model)); err != nil {
			return err
		}
		if p.Preview != nil {
			if err := PreviewTable(*p.Preview).Render(ctx, w); err != nil {
				return err
			}
		} else {
			if _, err := io.WriteString(w, `<p class="muted">The preview is no longer available for this run.</p>`); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `</section>`); err != nil {
			return err
		}

		if err := RunStatus(r, p.Progress).Render(ctx, w); err != nil {
			return err
		}

		if _, err := fmt.Fprintf(w, `<section><h2>Output</h2><pre id="output">%s</pre></section>`, esc(r.Result)); err != nil {
			return err
		}

		if !r.Status.Finished() {
			_, err := fmt.Fprintf(w, progressScript, esc(r.ID))
			return err
		}
		return nil
	})
	return Page(p.Run.FileName, body)
}

// RunStatus is the progress panel of a run.
func RunStatus(r core.RunRecord, progress *core.RunProgress) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		message, percent := "", 0
		if progress != nil {
			message, percent = progress.Message, progress.Percent()
		}
		if r.Status == core.PhaseComplete {
			percent = 100
		}
		if r.Error != "" {
			message = r.Error
		}

		if _, err := fmt.Fprintf(w, `<section id="status"><h2>Progress</h2>`+
			`<p>Status: <span class="status" id="phase">%s</span></p>`+
			`<progress id="bar" max="100" value="%d"></progress><p id="message">%s</p>`,
			esc(string(r.Status)), percent, esc(message)); err != nil {
			return err
		}

		if !r.Status.Finished() {
			if _, err := fmt.Fprintf(w, `<form method="post" action="/runs/%s/cancel" id="cancel"><button type="submit">Cancel</button></form>`, esc(r.ID)); err != nil {
				return err
			}
		}
		if r.ReportPath != "" {
			if _, err := fmt.Fprintf(w, `<p><a href="/api/runs/%s/report">Download report</a></p>`, esc(r.ID)); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</section>`)
		return err
	})
}

// PreviewTable renders a dataframe preview.
func PreviewTable(p dataset.Preview) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<div class="scroll"><table><thead><tr>`); err != nil {
			return err
		}
		for _, h := range p.Headers {
			if _, err := fmt.Fprintf(w, `<th>%s</th>`, esc(h)); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `</tr></thead><tbody>`); err != nil {
			return err
		}
		for _, row := range p.Rows {
			if _, err := io.WriteString(w, `<tr>`); err != nil {
				return err
			}
			for _, cell := range row {
				if _, err := fmt.Fprintf(w, `<td>%s</td>`, esc(cell)); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, `</tr>`); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `</tbody></table></div>`); err != nil {
			return err
		}
		if p.Truncated {
			if _, err := fmt.Fprintf(w, `<p class="muted">Showing %d of %d rows.</p>`, len(p.Rows), p.TotalRows); err != nil {
				return err
			}
		}
		return nil
	})
}

// progressScript follows the SSE stream and loads the result when it ends.
const progressScript = `<script>
(function(){
  var id = "%s";
  var es = new EventSource("/api/runs/" + id + "/progress");
  es.addEventListener("progress", function(e){
    var p = JSON.parse(e.data);
    document.getElementById("phase").textContent = p.phase;
    document.getElementById("message").textContent = p.error || p.message || "";
    var bar = document.getElementById("bar");
    if (p.task_count > 0) { bar.value = Math.round(100 * p.tasks_done / p.task_count); }
  });
  es.addEventListener("complete", function(){
    es.close();
    fetch("/api/runs/" + id + "/result").then(function(r){ return r.json(); }).then(function(r){
      document.getElementById("output").textContent = r.result || r.error || "";
      var cancel = document.getElementById("cancel");
      if (cancel) { cancel.remove(); }
      if (r.report_path) { location.reload(); }
    });
  });
})();
</script>`
