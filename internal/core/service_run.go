package core

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/JonMunkholm/datacrew/internal/crew"
	"github.com/JonMunkholm/datacrew/internal/dataset"
	"github.com/JonMunkholm/datacrew/internal/logging"
	"github.com/JonMunkholm/datacrew/internal/tools"
)

// persistTimeout bounds the history write at the end of a run.
const persistTimeout = 5 * time.Second

// processRun executes the crew for one run and records the outcome.
func (s *Service) processRun(ctx context.Context, run *activeRun) {
	log := logging.WithFields(ctx,
		"file", run.record.FileName,
		"rows", run.record.Rows,
		"columns", run.record.Columns,
	)

	var (
		out *crew.CrewOutput
		err error
	)
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in analysis run", "panic", r)
			out, err = nil, fmt.Errorf("internal error: %v", r)
		}
		s.finishRun(ctx, run, out, err)
	}()

	out, err = s.runCrew(ctx, run, log)
}

func (s *Service) runCrew(ctx context.Context, run *activeRun, log *slog.Logger) (*crew.CrewOutput, error) {
	if !s.limiter.TryAcquire() {
		run.mu.Lock()
		run.progress.Message = "Waiting for a free analysis slot"
		run.notifyLocked()
		run.mu.Unlock()

		log.Info("analysis queued", "active", s.limiter.ActiveCount())
		if err := s.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
	}
	defer s.limiter.Release()

	run.mu.Lock()
	run.record.Status = PhaseRunning
	run.progress.Phase = PhaseRunning
	run.progress.Message = "Crew started"
	run.notifyLocked()
	run.mu.Unlock()

	reportPath := filepath.Join(s.opts.ReportDir, run.ID, s.opts.ReportFileName)
	c, err := crew.DefaultAnalysisCrew(s.model, crew.AnalysisTools{
		Search:   tools.NewSearchTool(s.opts.Search),
		Profile:  tools.NewProfileTool(run.dataset),
		Cleaning: run.cleaner,
	}, reportPath, s.opts.MaxIter, s.opts.Verbose)
	if err != nil {
		return nil, err
	}
	c.Logger = log
	c.Listener = run.onEvent

	run.mu.Lock()
	run.progress.TaskCount = len(c.Tasks)
	run.mu.Unlock()

	return c.Kickoff(ctx, crew.Inputs{
		"data": dataset.Excerpt{Dataset: run.dataset, Rows: s.opts.PromptRows},
	})
}

// onEvent folds crew events into the run's progress.
func (run *activeRun) onEvent(e crew.Event) {
	run.mu.Lock()
	defer run.mu.Unlock()

	p := &run.progress
	p.TaskIndex = e.TaskIndex
	p.TaskCount = e.TaskCount
	p.Agent = e.Agent

	switch e.Type {
	case crew.EventTaskStarted:
		p.Tool = ""
		p.Message = fmt.Sprintf("%s is working on task %d of %d", e.Agent, e.TaskIndex+1, e.TaskCount)
	case crew.EventToolUsed:
		p.Tool = e.Tool
		p.Message = fmt.Sprintf("%s used %s", e.Agent, e.Tool)
	case crew.EventTaskCompleted:
		p.TasksDone++
		p.Tool = ""
		p.Message = fmt.Sprintf("%s finished task %d of %d", e.Agent, e.TaskIndex+1, e.TaskCount)
	case crew.EventTaskFailed:
		p.Message = fmt.Sprintf("%s failed task %d", e.Agent, e.TaskIndex+1)
	}

	run.notifyLocked()
}

// finishRun records the outcome, persists it and releases listeners.
func (s *Service) finishRun(ctx context.Context, run *activeRun, out *crew.CrewOutput, err error) {
	log := logging.FromContext(ctx)

	run.mu.Lock()
	rec := &run.record
	rec.FinishedAt = time.Now()

	switch {
	case err == nil:
		rec.Status = PhaseComplete
		rec.Result = out.Raw
		rec.Usage = out.Usage
		rec.Tasks = out.Tasks
		for _, t := range out.Tasks {
			if t.OutputFile != "" {
				rec.ReportPath = t.OutputFile
			}
		}
		run.progress.TasksDone = run.progress.TaskCount
		run.progress.Message = "Analysis complete"
	case run.cancelled:
		msg := MapError(ErrRunCancelled)
		rec.Status = PhaseCancelled
		rec.Error, rec.ErrorCode = msg.Message, msg.Code
		run.progress.Message = msg.Message
	default:
		msg := MapError(err)
		rec.Status = PhaseFailed
		rec.Error, rec.ErrorCode = msg.Message, msg.Code
		run.progress.Message = msg.Action
		run.progress.Error, run.progress.ErrorCode = msg.Message, msg.Code
	}

	run.progress.Phase = rec.Status
	run.progress.Tool = ""
	snapshot := *rec
	run.notifyLocked()
	run.closeListenersLocked()
	run.mu.Unlock()

	attrs := []any{
		"status", snapshot.Status,
		"duration_ms", snapshot.FinishedAt.Sub(snapshot.StartedAt).Milliseconds(),
		"prompt_tokens", snapshot.Usage.PromptTokens,
		"completion_tokens", snapshot.Usage.CompletionTokens,
	}
	if snapshot.Status == PhaseFailed {
		log.Error("analysis failed", append(attrs, "error", err, "code", snapshot.ErrorCode)...)
	} else {
		log.Info("analysis finished", attrs...)
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	if perr := s.history.Save(saveCtx, snapshot); perr != nil {
		log.Error("failed to persist run", "error", perr)
	}
	cancel()

	run.Cancel()
	close(run.Done)
	s.cleanup(run.ID, RunEvictionDelay)
}
