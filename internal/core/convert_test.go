package core

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/datacrew/internal/llm"
)

func TestToPgText(t *testing.T) {
	tests := []struct {
		in        string
		wantValid bool
		want      string
	}{
		{"", false, ""},
		{"   ", false, ""},
		{" report ", true, "report"},
	}
	for _, tt := range tests {
		got := ToPgText(tt.in)
		if got.Valid != tt.wantValid || got.String != tt.want {
			t.Errorf("ToPgText(%q) = %+v, want valid=%v %q", tt.in, got, tt.wantValid, tt.want)
		}
	}
}

func TestToPgContent_KeepsWhitespace(t *testing.T) {
	tests := []struct {
		in        string
		wantValid bool
	}{
		{"", false},
		{"   ", true},
		{"\n# Report\n\n", true},
	}
	for _, tt := range tests {
		got := toPgContent(tt.in)
		if got.Valid != tt.wantValid || (got.Valid && got.String != tt.in) {
			t.Errorf("toPgContent(%q) = %+v", tt.in, got)
		}
	}
}

func TestToPgUUID(t *testing.T) {
	id := uuid.New()
	if got := ToPgUUID(id.String()); !got.Valid || FromPgUUID(got) != id.String() {
		t.Errorf("ToPgUUID(%s) = %+v", id, got)
	}
	if got := ToPgUUID("not-a-uuid"); got.Valid {
		t.Errorf("invalid id should be NULL, got %+v", got)
	}
	if FromPgUUID(ToPgUUID("")) != "" {
		t.Error("NULL uuid should format as empty")
	}
}

func TestRunRecordDBConversion(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := RunRecord{
		ID:         uuid.NewString(),
		FileName:   "sales.xlsx",
		Format:     "xlsx",
		Rows:       120,
		Columns:    8,
		Status:     PhaseComplete,
		Model:      "openai/gpt-4o-mini",
		Result:     "  # Report\n\n    indented code\n",
		ReportPath: "reports/x/data-analysis-report.md",
		Usage:      llm.Usage{PromptTokens: 900, CompletionTokens: 300, TotalTokens: 1200},
		ClientIP:   "10.0.0.7",
		StartedAt:  started,
		FinishedAt: started.Add(42 * time.Second),
	}

	got := fromDBRun(toDBRun(rec))
	if !reflect.DeepEqual(got, rec) {
		t.Errorf("conversion mismatch:\n got %+v\nwant %+v", got, rec)
	}

	running := RunRecord{ID: rec.ID, Status: PhaseRunning, StartedAt: started}
	row := toDBRun(running)
	if row.FinishedAt.Valid || row.Result.Valid || row.ErrorMessage.Valid {
		t.Errorf("unset fields should be NULL: %+v", row)
	}
}
