package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/p-n-ai/pai-lms/internal/auth"
	"github.com/p-n-ai/pai-lms/internal/changelog"
)

type logChangeRequest struct {
	ModelName string          `json:"model_name"`
	ObjectID  json.RawMessage `json:"object_id"`
	Change    json.RawMessage `json:"change"`
}

type ackRequest struct {
	IDs []int64 `json:"ids"`
}

type deviceRequest struct {
	Identifier string `json:"identifier"`
	Label      string `json:"label"`
}

func (s *Server) handleLogChange(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var req logChangeRequest
	if err := decodeBody(r, changeSchema, &req); err != nil {
		fail(w, r, err)
		return
	}

	c, err := s.changes.Log(r.Context(), changelog.Entry{
		ProfileID: id.ProfileID,
		ModelName: req.ModelName,
		ObjectID:  objectID(req.ObjectID),
		Change:    req.Change,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// objectID accepts a JSON string or number.
func objectID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func (s *Server) handleListChanges(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	q := r.URL.Query()

	var synced *bool
	if v := q.Get("synced"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			fail(w, r, fmt.Errorf("%w: synced must be true or false", errBadRequest))
			return
		}
		synced = &b
	}

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fail(w, r, fmt.Errorf("%w: limit must be a non-negative integer", errBadRequest))
			return
		}
		limit = n
	}

	changes, err := s.changes.List(r.Context(), id.ProfileID, synced, limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	if changes == nil {
		changes = []changelog.Change{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"changes": changes})
}

func (s *Server) handleAckChanges(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var req ackRequest
	if err := decodeBody(r, ackSchema, &req); err != nil {
		fail(w, r, err)
		return
	}

	n, err := s.changes.MarkSynced(r.Context(), id.ProfileID, req.IDs)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var req deviceRequest
	if err := decodeBody(r, deviceSchema, &req); err != nil {
		fail(w, r, err)
		return
	}

	d, err := s.changes.RegisterDevice(r.Context(), id.ProfileID, req.Identifier, req.Label)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	s.stream.Serve(w, r, id.ProfileID)
}
