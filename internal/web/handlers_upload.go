package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/datacrew/internal/core"
	"github.com/JonMunkholm/datacrew/internal/dataset"
)

// multipartOverhead is headroom for form boundaries and headers on top of
// the file size limit.
const multipartOverhead = 1 << 20

// readUpload extracts the "file" field of a multipart request. The caller
// closes the returned file.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	maxSize := s.cfg.Analysis.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, fmt.Errorf("%w: limit is %d bytes", core.ErrFileTooLarge, maxSize)
		}
		return nil, nil, fmt.Errorf("%w: invalid form: %v", core.ErrNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, core.ErrNoFile
	}
	return file, header, nil
}

// AnalyzeResponse is returned to API clients that start a run.
type AnalyzeResponse struct {
	RunID   string           `json:"run_id"`
	Preview *dataset.Preview `json:"preview,omitempty"`
}

// handleAnalyze accepts an upload, starts the crew and redirects to the
// run page (or returns the run id to API clients).
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.readUpload(w, r)
	if err != nil {
		s.analyzeError(w, r, err)
		return
	}
	defer file.Close()

	ctx := WithRequestMetadata(r.Context(), r)
	runID, err := s.service.StartAnalysis(ctx, header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		s.analyzeError(w, r, err)
		return
	}

	if wantsJSON(r) {
		resp := AnalyzeResponse{RunID: runID}
		if preview, err := s.service.Preview(runID); err == nil {
			resp.Preview = &preview
		}
		writeJSON(w, http.StatusAccepted, resp)
		return
	}
	http.Redirect(w, r, "/runs/"+runID, http.StatusSeeOther)
}

// analyzeError re-renders the upload form for browsers and falls back to
// the regular error response for API and HTMX clients.
func (s *Server) analyzeError(w http.ResponseWriter, r *http.Request, err error) {
	if wantsJSON(r) || isHTMX(r) {
		s.respondError(w, r, err, 0)
		return
	}
	s.logger(r).Warn("upload rejected", "error", err)
	msg := core.MapError(err)
	s.renderIndex(w, r, &msg, statusFor(err))
}

// PreviewResponse is the parse-only view of an upload.
type PreviewResponse struct {
	dataset.Preview
	Columns []dataset.ColumnProfile `json:"columns"`
}

// handlePreview parses an upload and returns its preview and column profile
// without starting a run.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	defer file.Close()

	ds, err := s.service.ParseUpload(file, header.Filename, header.Header.Get("Content-Type"), header.Size)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	writeJSON(w, http.StatusOK, PreviewResponse{
		Preview: ds.Preview(s.service.PreviewRows()),
		Columns: ds.Profile(),
	})
}

// handleRunProgress streams run progress via Server-Sent Events.
// Supports resumption via the lastEventId query parameter (or the
// Last-Event-ID header), which carries the last completion percentage seen.
func (s *Server) handleRunProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	lastEventIDStr := r.URL.Query().Get("lastEventId")
	if lastEventIDStr == "" {
		lastEventIDStr = r.Header.Get("Last-Event-ID")
	}
	lastEventID := -1
	if lastEventIDStr != "" {
		if n, err := strconv.Atoi(lastEventIDStr); err == nil {
			lastEventID = n
		}
	}

	progressCh, err := s.service.SubscribeProgress(runID)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, errors.New("streaming not supported"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}

			// Skip what a reconnecting client already saw; the final
			// snapshot always goes out so the phase change is visible
			percent := progress.Percent()
			if percent <= lastEventID && !progress.Phase.Finished() {
				continue
			}

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", percent, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleRunResult waits for a run to finish and returns its record. If the
// request times out first, the current state is returned with 202.
func (s *Server) handleRunResult(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	rec, err := s.service.GetResult(r.Context(), runID)
	if err != nil && r.Context().Err() != nil {
		if rec, err := s.service.GetRun(context.WithoutCancel(r.Context()), runID); err == nil {
			writeJSON(w, http.StatusAccepted, rec)
			return
		}
	}
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleCancelRun cancels an in-progress run.
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := s.service.Cancel(runID); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
