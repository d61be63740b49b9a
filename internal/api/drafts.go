package api

import (
	"encoding/json"
	"io"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
)

var draftKind = regexp.MustCompile(`^[a-z0-9_-]+$`)

// draftParams returns kind and key, writing a 400 when kind is malformed.
func draftParams(w http.ResponseWriter, r *http.Request) (kind, key string, ok bool) {
	kind = chi.URLParam(r, "kind")
	if !draftKind.MatchString(kind) {
		writeError(w, http.StatusBadRequest, "kind must match [a-z0-9_-]+")
		return "", "", false
	}
	return kind, chi.URLParam(r, "key"), true
}

func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	kind, _, ok := draftParams(w, r)
	if !ok {
		return
	}
	keys, err := s.drafts.ListDrafts(kind)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "keys": keys})
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	kind, key, ok := draftParams(w, r)
	if !ok {
		return
	}
	v, err := s.drafts.GetDraft(kind, key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeRaw(w, http.StatusOK, v)
}

func (s *Server) handlePutDraft(w http.ResponseWriter, r *http.Request) {
	kind, key, ok := draftParams(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil || !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "draft value must be a JSON document")
		return
	}
	if err := s.drafts.PutDraft(kind, key, body); err != nil {
		s.fail(w, r, err)
		return
	}
	writeRaw(w, http.StatusOK, body)
}

func (s *Server) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	kind, key, ok := draftParams(w, r)
	if !ok {
		return
	}
	if err := s.drafts.DeleteDraft(kind, key); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
