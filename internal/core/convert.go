package core

// convert.go translates between RunRecord and the pgx row types of the
// history table. All ToPg* helpers return Valid=false for empty input so
// the column is stored as NULL.

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	db "github.com/JonMunkholm/datacrew/internal/database"
)

// ToPgText converts a short identifier-like string to pgtype.Text, trimmed
// and NULL when blank.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// toPgContent stores free text such as a report verbatim; only the empty
// string becomes NULL.
func toPgContent(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgUUID parses a run id. Invalid ids yield Valid=false.
func ToPgUUID(s string) pgtype.UUID {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}

// ToPgTimestamptz converts a time, NULL when zero.
func ToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

// FromPgUUID formats a UUID, "" when NULL.
func FromPgUUID(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

func fromPgText(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

func fromPgTime(t pgtype.Timestamptz) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time
}

func toDBRun(r RunRecord) db.AnalysisRun {
	return db.AnalysisRun{
		ID:               ToPgUUID(r.ID),
		FileName:         r.FileName,
		Format:           r.Format,
		RowCount:         int32(r.Rows),
		ColumnCount:      int32(r.Columns),
		Status:           string(r.Status),
		Model:            r.Model,
		Result:           toPgContent(r.Result),
		ReportPath:       toPgContent(r.ReportPath),
		ErrorMessage:     toPgContent(r.Error),
		ErrorCode:        ToPgText(r.ErrorCode),
		PromptTokens:     int32(r.Usage.PromptTokens),
		CompletionTokens: int32(r.Usage.CompletionTokens),
		ClientIp:         ToPgText(r.ClientIP),
		StartedAt:        ToPgTimestamptz(r.StartedAt),
		FinishedAt:       ToPgTimestamptz(r.FinishedAt),
	}
}

func fromDBRun(row db.AnalysisRun) RunRecord {
	r := RunRecord{
		ID:         FromPgUUID(row.ID),
		FileName:   row.FileName,
		Format:     row.Format,
		Rows:       int(row.RowCount),
		Columns:    int(row.ColumnCount),
		Status:     RunPhase(row.Status),
		Model:      row.Model,
		Result:     fromPgText(row.Result),
		ReportPath: fromPgText(row.ReportPath),
		Error:      fromPgText(row.ErrorMessage),
		ErrorCode:  fromPgText(row.ErrorCode),
		ClientIP:   fromPgText(row.ClientIp),
		StartedAt:  fromPgTime(row.StartedAt),
		FinishedAt: fromPgTime(row.FinishedAt),
	}
	r.Usage.PromptTokens = int(row.PromptTokens)
	r.Usage.CompletionTokens = int(row.CompletionTokens)
	r.Usage.TotalTokens = r.Usage.PromptTokens + r.Usage.CompletionTokens
	return r
}
