package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/JonMunkholm/datacrew/internal/config"
	"github.com/JonMunkholm/datacrew/internal/crew"
	"github.com/JonMunkholm/datacrew/internal/dataset"
	"github.com/JonMunkholm/datacrew/internal/llm"
	"github.com/JonMunkholm/datacrew/internal/logging"
	"github.com/JonMunkholm/datacrew/internal/tools"
)

var (
	// ErrFileTooLarge is returned when an upload exceeds Options.MaxFileSize.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNoFile is returned when no upload was provided.
	ErrNoFile = errors.New("no file provided")

	// ErrRunCancelled is the outcome of a run stopped with Cancel.
	ErrRunCancelled = errors.New("analysis cancelled")

	// ErrReportNotFound is returned when a run has no report file.
	ErrReportNotFound = errors.New("report not found")

	// ErrNoCleanedData is returned when the cleaning tool has not run.
	ErrNoCleanedData = errors.New("no cleaned data for this run")
)

// RunEvictionDelay is how long a finished run stays in memory, where its
// preview and cleaned data remain available.
var RunEvictionDelay = 10 * time.Minute

// Options configure a Service.
type Options struct {
	MaxFileSize    int64
	PreviewRows    int
	PromptRows     int
	Timeout        time.Duration
	MaxIter        int
	Verbose        bool
	ReportDir      string
	ReportFileName string
	Search         config.SearchConfig
}

// OptionsFromConfig collects the service settings from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxFileSize:    cfg.Analysis.MaxFileSize,
		PreviewRows:    cfg.Analysis.PreviewRows,
		PromptRows:     cfg.Analysis.PromptRows,
		Timeout:        cfg.Analysis.Timeout,
		MaxIter:        cfg.LLM.MaxIter,
		Verbose:        cfg.LLM.Verbose,
		ReportDir:      cfg.Report.Dir,
		ReportFileName: cfg.Report.FileName,
		Search:         cfg.Search,
	}
}

// Service runs analyses: it parses uploads, kicks off the crew in the
// background and tracks progress, results and history.
type Service struct {
	model   llm.Model
	history HistoryStore
	limiter *AnalysisLimiter
	opts    Options

	mu   sync.RWMutex
	runs map[string]*activeRun
	wg   sync.WaitGroup
}

type activeRun struct {
	ID      string
	dataset *dataset.Dataset
	cleaner *tools.CleaningTool
	Cancel  context.CancelFunc
	Done    chan struct{}

	mu        sync.Mutex // guards the fields below
	record    RunRecord
	progress  RunProgress
	listeners []chan RunProgress
	cancelled bool
}

// NewService creates a Service. history and limiter may be nil, in which
// case an in-memory history and a default limiter are used.
func NewService(model llm.Model, history HistoryStore, limiter *AnalysisLimiter, opts Options) *Service {
	if history == nil {
		history = NewMemoryHistory(0)
	}
	if limiter == nil {
		limiter = NewAnalysisLimiter(DefaultMaxConcurrentRuns, DefaultMaxWaitTime)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = 50
	}
	if opts.PromptRows <= 0 {
		opts.PromptRows = dataset.DefaultSampleRows
	}
	if opts.ReportDir == "" {
		opts.ReportDir = "reports"
	}
	if opts.ReportFileName == "" {
		opts.ReportFileName = crew.ReportFileName
	}

	return &Service{
		model:   model,
		history: history,
		limiter: limiter,
		opts:    opts,
		runs:    make(map[string]*activeRun),
	}
}

// ParseUpload reads and parses an uploaded file. size is the declared size
// (0 when unknown); the content is capped at MaxFileSize either way.
func (s *Service) ParseUpload(r io.Reader, fileName, contentType string, size int64) (*dataset.Dataset, error) {
	if r == nil {
		return nil, ErrNoFile
	}

	max := s.opts.MaxFileSize
	if max > 0 && size > max {
		return nil, fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrFileTooLarge, size, max)
	}

	if max > 0 {
		r = io.LimitReader(r, max+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if max > 0 && int64(len(data)) > max {
		return nil, fmt.Errorf("%w: exceeds the %d byte limit", ErrFileTooLarge, max)
	}

	return dataset.Load(bytes.NewReader(data), fileName, contentType)
}

// StartAnalysis parses the upload and starts a crew run in the background.
// Parse errors are returned directly; everything after that is reported
// through progress and the run result.
func (s *Service) StartAnalysis(ctx context.Context, fileName, contentType string, r io.Reader, size int64) (string, error) {
	ds, err := s.ParseUpload(r, fileName, contentType, size)
	if err != nil {
		return "", err
	}
	return s.StartDataset(ctx, ds)
}

// StartDataset starts a crew run for an already parsed dataset and returns
// the run id immediately. Use SubscribeProgress to follow it.
func (s *Service) StartDataset(ctx context.Context, ds *dataset.Dataset) (string, error) {
	runID := uuid.New().String()

	runCtx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
	runCtx = logging.WithRunID(runCtx, runID)
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		runCtx = context.WithValue(runCtx, middleware.RequestIDKey, reqID)
	}

	now := time.Now()
	run := &activeRun{
		ID:      runID,
		dataset: ds,
		cleaner: tools.NewCleaningTool(ds, s.opts.PromptRows),
		Cancel:  cancel,
		Done:    make(chan struct{}),
		record: RunRecord{
			ID:        runID,
			FileName:  ds.Name,
			Format:    string(ds.Format),
			Rows:      ds.NumRows(),
			Columns:   ds.NumColumns(),
			Status:    PhaseQueued,
			Model:     s.model.Name(),
			ClientIP:  ClientIPFromContext(ctx),
			StartedAt: now,
		},
		progress: RunProgress{
			RunID:    runID,
			FileName: ds.Name,
			Phase:    PhaseQueued,
			Message:  "Analysis queued",
		},
	}

	s.mu.Lock()
	s.runs[runID] = run
	s.mu.Unlock()

	logging.FromContext(ctx).Info("analysis started",
		"run_id", runID,
		"file", ds.Name,
		"format", ds.Format,
		"rows", ds.NumRows(),
		"columns", ds.NumColumns(),
		"user_agent", UserAgentFromContext(ctx),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.processRun(runCtx, run)
	}()

	return runID, nil
}

// Analyze runs an analysis to completion. Cancelling ctx cancels the run.
func (s *Service) Analyze(ctx context.Context, ds *dataset.Dataset) (RunRecord, error) {
	runID, err := s.StartDataset(ctx, ds)
	if err != nil {
		return RunRecord{}, err
	}

	rec, err := s.GetResult(ctx, runID)
	if err != nil && ctx.Err() != nil {
		s.Cancel(runID)
		if run, ok := s.getRun(runID); ok {
			<-run.Done
			return run.snapshot(), ctx.Err()
		}
	}
	return rec, err
}

func (s *Service) getRun(runID string) (*activeRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	return run, ok
}

// Preview returns the dataframe preview of an in-memory run.
func (s *Service) Preview(runID string) (dataset.Preview, error) {
	run, ok := s.getRun(runID)
	if !ok {
		return dataset.Preview{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run.dataset.Preview(s.opts.PreviewRows), nil
}

// PreviewRows is the configured number of preview rows.
func (s *Service) PreviewRows() int {
	return s.opts.PreviewRows
}

// SubscribeProgress returns a channel of progress snapshots. The current
// state is sent immediately; the channel is closed when the run finishes.
func (s *Service) SubscribeProgress(runID string) (<-chan RunProgress, error) {
	run, ok := s.getRun(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	ch := make(chan RunProgress, 10)

	run.mu.Lock()
	defer run.mu.Unlock()

	ch <- run.progress
	if run.progress.Phase.Finished() {
		close(ch)
		return ch, nil
	}
	run.listeners = append(run.listeners, ch)
	return ch, nil
}

// GetProgress returns the current progress without blocking.
func (s *Service) GetProgress(runID string) (RunProgress, error) {
	run, ok := s.getRun(runID)
	if !ok {
		return RunProgress{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.progress, nil
}

// Cancel stops a running analysis.
func (s *Service) Cancel(runID string) error {
	run, ok := s.getRun(runID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	run.mu.Lock()
	finished := run.progress.Phase.Finished()
	if !finished {
		run.cancelled = true
	}
	run.mu.Unlock()

	if !finished {
		run.Cancel()
	}
	return nil
}

// CancelAll cancels every unfinished run. Used when shutdown runs out of time.
func (s *Service) CancelAll() {
	s.mu.RLock()
	ids := make([]string, 0, len(s.runs))
	for id := range s.runs {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for _, id := range ids {
		s.Cancel(id)
	}
}

// GetResult blocks until the run finishes and returns its record. Runs no
// longer in memory are read from history.
func (s *Service) GetResult(ctx context.Context, runID string) (RunRecord, error) {
	run, ok := s.getRun(runID)
	if !ok {
		return s.history.Get(ctx, runID)
	}

	select {
	case <-run.Done:
	case <-ctx.Done():
		return RunRecord{}, ctx.Err()
	}
	return run.snapshot(), nil
}

// GetRun returns the current record of a run without blocking.
func (s *Service) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	if run, ok := s.getRun(runID); ok {
		return run.snapshot(), nil
	}
	return s.history.Get(ctx, runID)
}

// History returns recent runs, newest first: runs still in memory plus
// persisted history.
func (s *Service) History(ctx context.Context, limit int) ([]RunRecord, error) {
	stored, err := s.history.List(ctx, limit)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []RunRecord

	s.mu.RLock()
	for _, run := range s.runs {
		rec := run.snapshot()
		rec.Tasks = nil
		seen[rec.ID] = true
		out = append(out, rec)
	}
	s.mu.RUnlock()

	for _, rec := range stored {
		if !seen[rec.ID] {
			out = append(out, rec)
		}
	}

	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ReportPath returns the Markdown report written for a completed run.
func (s *Service) ReportPath(ctx context.Context, runID string) (string, error) {
	rec, err := s.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	if rec.ReportPath == "" {
		return "", fmt.Errorf("%w: run %s", ErrReportNotFound, runID)
	}
	if _, err := os.Stat(rec.ReportPath); err != nil {
		return "", fmt.Errorf("%w: %v", ErrReportNotFound, err)
	}
	return rec.ReportPath, nil
}

// CleanedData re-serializes the cleaning tool's output in the upload's
// format. Only available while the run is in memory.
func (s *Service) CleanedData(runID string) (*dataset.Buffer, error) {
	run, ok := s.getRun(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	cleaned, _ := run.cleaner.Result()
	if cleaned == nil {
		return nil, ErrNoCleanedData
	}
	return cleaned.Buffer()
}

// ActiveCount returns the number of unfinished runs.
func (s *Service) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, run := range s.runs {
		run.mu.Lock()
		if !run.progress.Phase.Finished() {
			n++
		}
		run.mu.Unlock()
	}
	return n
}

// LimiterStatus reports crew slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForRuns blocks until every started run has finished or ctx is done.
func (s *Service) WaitForRuns(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (run *activeRun) snapshot() RunRecord {
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.record
}

// notifyLocked sends the current progress to every listener. Slow
// listeners miss the update. run.mu must be held.
func (run *activeRun) notifyLocked() {
	for _, ch := range run.listeners {
		select {
		case ch <- run.progress:
		default:
		}
	}
}

// closeListenersLocked closes all listener channels. run.mu must be held.
func (run *activeRun) closeListenersLocked() {
	for _, ch := range run.listeners {
		close(ch)
	}
	run.listeners = nil
}

// cleanup removes the run from memory after a delay.
func (s *Service) cleanup(runID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	})
}
