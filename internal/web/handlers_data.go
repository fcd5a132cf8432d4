package web

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/datacrew/internal/core"
)

// maxListLimit caps the limit query parameter of the run listing.
const maxListLimit = 200

// handleListRuns returns recent runs, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 50)
	if limit > maxListLimit {
		limit = maxListLimit
	}

	runs, err := s.service.History(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// RunResponse is a run record with its live progress while in memory.
type RunResponse struct {
	Run      core.RunRecord    `json:"run"`
	Progress *core.RunProgress `json:"progress,omitempty"`
}

// handleGetRun returns a run without waiting for it to finish.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	rec, err := s.service.GetRun(r.Context(), runID)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	resp := RunResponse{Run: rec}
	if progress, err := s.service.GetProgress(runID); err == nil {
		resp.Progress = &progress
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDownloadReport serves the Markdown report of a completed run.
func (s *Server) handleDownloadReport(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	path, err := s.service.ReportPath(r.Context(), runID)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filepath.Base(path)))
	http.ServeFile(w, r, path)
}

// handleDownloadCleaned serves the cleaned dataset in the upload's format.
func (s *Server) handleDownloadCleaned(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	buf, err := s.service.CleanedData(runID)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	name := buf.Dataset().Name
	base := strings.TrimSuffix(name, filepath.Ext(name))
	filename := fmt.Sprintf("%s_cleaned.%s", base, buf.Dataset().Format)

	w.Header().Set("Content-Type", buf.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
	w.Write(buf.Bytes())
}
