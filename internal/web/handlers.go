package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/datacrew/internal/core"
	"github.com/JonMunkholm/datacrew/internal/web/templates"
)

// recentRuns is the number of runs listed on the upload page.
const recentRuns = 20

// handleIndex renders the upload page with recent runs.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderIndex(w, r, nil, http.StatusOK)
}

func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, uploadErr *core.UserMessage, status int) {
	ctx := r.Context()

	// A history outage should not hide the upload form
	runs, err := s.service.History(ctx, recentRuns)
	if err != nil {
		s.logger(r).Warn("failed to load run history", "error", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.IndexPage(templates.IndexParams{
		Runs:        runs,
		MaxFileSize: s.cfg.Analysis.MaxFileSize,
		Error:       uploadErr,
	}).Render(ctx, w)
}

// handleRunPage renders the preview, progress and output of one run.
func (s *Server) handleRunPage(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	rec, err := s.service.GetRun(r.Context(), runID)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	params := templates.RunParams{Run: rec}
	if preview, err := s.service.Preview(runID); err == nil {
		params.Preview = &preview
	}
	if progress, err := s.service.GetProgress(runID); err == nil {
		params.Progress = &progress
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.RunPage(params).Render(r.Context(), w)
}

// handleCancelPage cancels a run from the run page form.
func (s *Server) handleCancelPage(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := s.service.Cancel(runID); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	http.Redirect(w, r, "/runs/"+runID, http.StatusSeeOther)
}
