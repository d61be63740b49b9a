package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/avatarstudio/avatargw/internal/domain"
	"github.com/avatarstudio/avatargw/internal/job"
)

const (
	maxJSONBody   = 1 << 20
	maxUploadBody = 512 << 20
	uploadMemory  = 32 << 20
)

// taskResponse is returned for asynchronous submissions.
type taskResponse struct {
	TaskID string        `json:"taskId"`
	Vendor domain.Vendor `json:"vendor"`
}

// handleSubmit adapts one submission operation to a JSON route. With
// envelope set the vendor's own reply is returned instead of the task id.
func handleSubmit[T any](s *Server, op func(context.Context, T) (domain.Submission, error), envelope bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req T
		if !decodeJSON(w, r, &req) {
			return
		}
		sub, err := op(r.Context(), req)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		switch {
		case envelope && len(sub.Raw) > 0:
			writeRaw(w, http.StatusOK, sub.Raw)
		case sub.Resolved():
			writeRaw(w, http.StatusOK, sub.Result)
		default:
			writeJSON(w, http.StatusOK, taskResponse{TaskID: sub.Handle.TaskID, Vendor: sub.Handle.Vendor})
		}
	}
}

// handleUpload accepts multipart form data with an apiKey field and a file.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := job.UploadRequest{APIKey: r.FormValue("apiKey")}
	f, hdr, err := r.FormFile("file")
	switch {
	case err == nil:
		defer f.Close()
		req.Filename = hdr.Filename
		req.ContentType = hdr.Header.Get("Content-Type")
		req.Reader = f
	case !errors.Is(err, http.ErrMissingFile):
		writeError(w, http.StatusBadRequest, "invalid file part")
		return
	}

	url, err := s.jobs.UploadMedia(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// decodeJSON reads a bounded JSON body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		msg := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		writeError(w, http.StatusBadRequest, msg)
		return false
	}
	return true
}
