package api

import (
	"errors"
	"net/http"

	"github.com/avatarstudio/avatargw/internal/domain"
)

// errorBody is the error shape of every route.
type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// fail reports err through the notification bridge and writes the mapped
// HTTP response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	s.bridge.Notify(ctx, err)
	status, body := s.errorResponse(r, err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, body)
}

func (s *Server) errorResponse(r *http.Request, err error) (int, errorBody) {
	ev := s.bridge.Describe(r.Context(), err)

	var (
		httpErr *domain.HTTPError
		vErr    *domain.VendorError
	)
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrUnknownVendor):
		return http.StatusBadRequest, errorBody{Error: err.Error()}
	case errors.Is(err, domain.ErrDraftNotFound), errors.Is(err, domain.ErrJobNotFound):
		return http.StatusNotFound, errorBody{Error: err.Error()}
	case errors.Is(err, domain.ErrVendorTimeout):
		return http.StatusGatewayTimeout, errorBody{Error: ev.Message, Code: ev.Code}
	case errors.As(err, &vErr):
		return http.StatusInternalServerError, errorBody{Error: ev.Message, Code: ev.Code}
	case errors.As(err, &httpErr):
		status := httpErr.StatusCode
		if status < http.StatusBadRequest || status > 599 {
			status = http.StatusBadGateway
		}
		return status, errorBody{Error: ev.Message, Code: ev.Code}
	case errors.Is(err, domain.ErrMalformedReply):
		return http.StatusBadGateway, errorBody{Error: ev.Message, Code: ev.Code, Details: err.Error()}
	default:
		return http.StatusInternalServerError, errorBody{Error: ev.Message, Code: ev.Code, Details: err.Error()}
	}
}
