package core

import (
	"time"

	"github.com/JonMunkholm/datacrew/internal/crew"
	"github.com/JonMunkholm/datacrew/internal/llm"
)

// RunPhase indicates the current stage of an analysis run.
type RunPhase string

const (
	PhaseQueued    RunPhase = "queued"
	PhaseRunning   RunPhase = "running"
	PhaseComplete  RunPhase = "complete"
	PhaseFailed    RunPhase = "failed"
	PhaseCancelled RunPhase = "cancelled"
)

// Finished reports whether the phase is terminal.
func (p RunPhase) Finished() bool {
	return p == PhaseComplete || p == PhaseFailed || p == PhaseCancelled
}

// RunProgress is a snapshot of a run, sent to progress subscribers.
type RunProgress struct {
	RunID     string   `json:"run_id"`
	FileName  string   `json:"file_name"`
	Phase     RunPhase `json:"phase"`
	TaskIndex int      `json:"task_index"` // 0-based index of the current task
	TaskCount int      `json:"task_count"`
	TasksDone int      `json:"tasks_done"`
	Agent     string   `json:"agent,omitempty"`
	Tool      string   `json:"tool,omitempty"`
	Message   string   `json:"message,omitempty"`
	Error     string   `json:"error,omitempty"` // user-facing, set when Phase is PhaseFailed
	ErrorCode string   `json:"error_code,omitempty"`
}

// Percent returns the share of completed tasks (0-100).
func (p RunProgress) Percent() int {
	if p.Phase == PhaseComplete {
		return 100
	}
	if p.TaskCount == 0 {
		return 0
	}
	return (p.TasksDone * 100) / p.TaskCount
}

// RunRecord is a run as shown in history and returned as a result.
type RunRecord struct {
	ID         string            `json:"id"`
	FileName   string            `json:"file_name"`
	Format     string            `json:"format"`
	Rows       int               `json:"rows"`
	Columns    int               `json:"columns"`
	Status     RunPhase          `json:"status"`
	Model      string            `json:"model"`
	Result     string            `json:"result,omitempty"`
	ReportPath string            `json:"report_path,omitempty"`
	Error      string            `json:"error,omitempty"`
	ErrorCode  string            `json:"error_code,omitempty"`
	Usage      llm.Usage         `json:"usage"`
	ClientIP   string            `json:"client_ip,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at,omitempty"`
	Tasks      []crew.TaskOutput `json:"tasks,omitempty"` // only while the run is held in memory
}

// Duration is the wall time of a finished run, or the elapsed time so far.
func (r RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt).Round(time.Second)
	}
	return r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond)
}
