package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	db "github.com/JonMunkholm/datacrew/internal/database"
)

// ErrRunNotFound is returned for unknown or expired run ids.
var ErrRunNotFound = errors.New("run not found")

// HistoryStore persists finished runs.
type HistoryStore interface {
	Save(ctx context.Context, rec RunRecord) error
	Get(ctx context.Context, id string) (RunRecord, error)
	List(ctx context.Context, limit int) ([]RunRecord, error)
	// DeleteBefore removes runs started before cutoff and returns their ids.
	DeleteBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

// MemoryHistory keeps the most recent runs in memory. It is used when no
// database is configured; history is lost on restart.
type MemoryHistory struct {
	mu   sync.RWMutex
	max  int
	runs map[string]RunRecord
}

// NewMemoryHistory keeps at most max runs (oldest evicted first).
func NewMemoryHistory(max int) *MemoryHistory {
	if max <= 0 {
		max = 100
	}
	return &MemoryHistory{max: max, runs: make(map[string]RunRecord)}
}

func (h *MemoryHistory) Save(ctx context.Context, rec RunRecord) error {
	rec.Tasks = nil

	h.mu.Lock()
	defer h.mu.Unlock()

	h.runs[rec.ID] = rec
	for len(h.runs) > h.max {
		var oldest string
		for id, r := range h.runs {
			if oldest == "" || r.StartedAt.Before(h.runs[oldest].StartedAt) {
				oldest = id
			}
		}
		delete(h.runs, oldest)
	}
	return nil
}

func (h *MemoryHistory) Get(ctx context.Context, id string) (RunRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rec, ok := h.runs[id]
	if !ok {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return rec, nil
}

func (h *MemoryHistory) List(ctx context.Context, limit int) ([]RunRecord, error) {
	h.mu.RLock()
	out := make([]RunRecord, 0, len(h.runs))
	for _, r := range h.runs {
		out = append(out, r)
	}
	h.mu.RUnlock()

	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (h *MemoryHistory) DeleteBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var ids []string
	for id, r := range h.runs {
		if r.StartedAt.Before(cutoff) {
			ids = append(ids, id)
			delete(h.runs, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func sortNewestFirst(runs []RunRecord) {
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
}

// PostgresHistory stores runs in the analysis_runs table.
type PostgresHistory struct {
	q *db.Queries
}

// NewPostgresHistory wraps a pool (or any DBTX) and creates the table if
// it does not exist.
func NewPostgresHistory(ctx context.Context, conn db.DBTX) (*PostgresHistory, error) {
	q := db.New(conn)
	if err := q.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure history schema: %w", err)
	}
	return &PostgresHistory{q: q}, nil
}

func (h *PostgresHistory) Save(ctx context.Context, rec RunRecord) error {
	if err := h.q.InsertRun(ctx, toDBRun(rec)); err != nil {
		return fmt.Errorf("save run %s: %w", rec.ID, err)
	}
	return nil
}

func (h *PostgresHistory) Get(ctx context.Context, id string) (RunRecord, error) {
	pgID := ToPgUUID(id)
	if !pgID.Valid {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	row, err := h.q.GetRun(ctx, pgID)
	if errors.Is(err, pgx.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return fromDBRun(row), nil
}

func (h *PostgresHistory) List(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.q.ListRuns(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	out := make([]RunRecord, len(rows))
	for i, row := range rows {
		out[i] = fromDBRun(row)
	}
	return out, nil
}

func (h *PostgresHistory) DeleteBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	ids, err := h.q.DeleteRunsBefore(ctx, ToPgTimestamptz(cutoff))
	if err != nil {
		return nil, fmt.Errorf("delete runs: %w", err)
	}

	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = FromPgUUID(id)
	}
	return out, nil
}
