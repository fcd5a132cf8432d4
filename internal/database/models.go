package database

import "github.com/jackc/pgx/v5/pgtype"

type AnalysisRun struct {
	ID               pgtype.UUID
	FileName         string
	Format           string
	RowCount         int32
	ColumnCount      int32
	Status           string
	Model            string
	Result           pgtype.Text
	ReportPath       pgtype.Text
	ErrorMessage     pgtype.Text
	ErrorCode        pgtype.Text
	PromptTokens     int32
	CompletionTokens int32
	ClientIp         pgtype.Text
	StartedAt        pgtype.Timestamptz
	FinishedAt       pgtype.Timestamptz
}
