package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/avatarstudio/avatargw/internal/domain"
	"github.com/avatarstudio/avatargw/internal/job"
)

// handlePollInline polls until the task is terminal and returns the
// resolved data, or an error once the task fails or runs out of budget.
func (s *Server) handlePollInline(w http.ResponseWriter, r *http.Request) {
	var req job.PollRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h, err := req.Handle()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.jobs.PollUntilDone(r.Context(), h, req.APIKey, job.PollPolicy{})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeRaw(w, http.StatusOK, res.Payload)
}

// handlePoll runs one poll attempt for UI-driven polling. Vendor-reported
// failures are part of the result, not an HTTP error.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	v, err := domain.ParseVendor(chi.URLParam(r, "vendor"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body struct {
		APIKey string `json:"apiKey"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	h := domain.TaskHandle{TaskID: chi.URLParam(r, "taskId"), Vendor: v}
	res, err := s.jobs.Poll(r.Context(), h, body.APIKey)
	if err != nil {
		if res.Status != domain.StatusFailed {
			s.fail(w, r, err)
			return
		}
		s.bridge.Notify(r.Context(), err)
	}
	writeJSON(w, http.StatusOK, res)
}

// handleListJobs returns recent job history.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	jobs, err := s.history.ListJobs(limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []domain.JobRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

// handleGetJob returns one job history row.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	v, err := domain.ParseVendor(chi.URLParam(r, "vendor"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rec, err := s.history.GetJob(v, chi.URLParam(r, "taskId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
