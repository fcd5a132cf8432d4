package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const runColumns = `id, file_name, format, row_count, column_count, status, model, result,
    report_path, error_message, error_code, prompt_tokens, completion_tokens,
    client_ip, started_at, finished_at`

const insertRun = `-- name: InsertRun :exec
INSERT INTO analysis_runs (` + runColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (id) DO UPDATE SET
    status = EXCLUDED.status,
    result = EXCLUDED.result,
    report_path = EXCLUDED.report_path,
    error_message = EXCLUDED.error_message,
    error_code = EXCLUDED.error_code,
    prompt_tokens = EXCLUDED.prompt_tokens,
    completion_tokens = EXCLUDED.completion_tokens,
    finished_at = EXCLUDED.finished_at
`

type InsertRunParams = AnalysisRun

// InsertRun stores a run, updating the outcome columns if it already exists.
func (q *Queries) InsertRun(ctx context.Context, arg InsertRunParams) error {
	_, err := q.db.Exec(ctx, insertRun,
		arg.ID,
		arg.FileName,
		arg.Format,
		arg.RowCount,
		arg.ColumnCount,
		arg.Status,
		arg.Model,
		arg.Result,
		arg.ReportPath,
		arg.ErrorMessage,
		arg.ErrorCode,
		arg.PromptTokens,
		arg.CompletionTokens,
		arg.ClientIp,
		arg.StartedAt,
		arg.FinishedAt,
	)
	return err
}

const getRun = `-- name: GetRun :one
SELECT ` + runColumns + `
FROM analysis_runs
WHERE id = $1
`

func (q *Queries) GetRun(ctx context.Context, id pgtype.UUID) (AnalysisRun, error) {
	row := q.db.QueryRow(ctx, getRun, id)
	var i AnalysisRun
	err := row.Scan(
		&i.ID,
		&i.FileName,
		&i.Format,
		&i.RowCount,
		&i.ColumnCount,
		&i.Status,
		&i.Model,
		&i.Result,
		&i.ReportPath,
		&i.ErrorMessage,
		&i.ErrorCode,
		&i.PromptTokens,
		&i.CompletionTokens,
		&i.ClientIp,
		&i.StartedAt,
		&i.FinishedAt,
	)
	return i, err
}

const listRuns = `-- name: ListRuns :many
SELECT ` + runColumns + `
FROM analysis_runs
ORDER BY started_at DESC
LIMIT $1
`

func (q *Queries) ListRuns(ctx context.Context, limit int32) ([]AnalysisRun, error) {
	rows, err := q.db.Query(ctx, listRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AnalysisRun
	for rows.Next() {
		var i AnalysisRun
		if err := rows.Scan(
			&i.ID,
			&i.FileName,
			&i.Format,
			&i.RowCount,
			&i.ColumnCount,
			&i.Status,
			&i.Model,
			&i.Result,
			&i.ReportPath,
			&i.ErrorMessage,
			&i.ErrorCode,
			&i.PromptTokens,
			&i.CompletionTokens,
			&i.ClientIp,
			&i.StartedAt,
			&i.FinishedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteRunsBefore = `-- name: DeleteRunsBefore :many
DELETE FROM analysis_runs
WHERE started_at < $1
RETURNING id
`

// DeleteRunsBefore removes runs started before cutoff and returns their ids.
func (q *Queries) DeleteRunsBefore(ctx context.Context, cutoff pgtype.Timestamptz) ([]pgtype.UUID, error) {
	rows, err := q.db.Query(ctx, deleteRunsBefore, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []pgtype.UUID
	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
