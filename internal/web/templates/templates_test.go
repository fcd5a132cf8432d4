package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/datacrew/internal/dataset"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return buf.String()
}

func TestErrorAlert_Escapes(t *testing.T) {
	out := render(t, ErrorAlert(`<script>alert("x")</script>`, "Try again & retry.", "FILE004"))

	if strings.Contains(out, "<script>") {
		t.Errorf("message not escaped: %s", out)
	}
	for _, want := range []string{"&lt;script&gt;", "Try again &amp; retry.", "(FILE004)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestPage_WrapsBody(t *testing.T) {
	out := render(t, Page("a<b", ErrorAlert("m", "", "")))
	if !strings.HasPrefix(out, "<!DOCTYPE html>") || !strings.HasSuffix(out, "</main></body></html>") {
		t.Errorf("layout = %s", out)
	}
	if !strings.Contains(out, "<title>a&lt;b | datacrew</title>") {
		t.Errorf("title not escaped: %s", out)
	}
	if !strings.Contains(out, `<div class="alert" role="alert"><strong>m</strong></div>`) {
		t.Errorf("body not rendered: %s", out)
	}
}

func TestPreviewTable(t *testing.T) {
	ds, err := dataset.New("p.csv", dataset.FormatCSV, []string{"name", "note"}, [][]string{{"alice", "<b>"}})
	if err != nil {
		t.Fatal(err)
	}

	out := render(t, PreviewTable(ds.Preview(10)))
	for _, want := range []string{"<th>name</th>", "<td>alice</td>", "<td>&lt;b&gt;</td>"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}
