package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/p-n-ai/pai-lms/internal/auth"
	"github.com/p-n-ai/pai-lms/internal/content"
	"github.com/p-n-ai/pai-lms/internal/grading"
)

func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	quizID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "Quiz not found")
		return
	}

	payload, err := content.LoadQuizPayload(r.Context(), s.content, quizID)
	if errors.Is(err, content.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Quiz not found")
		return
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	etag, err := payload.ETag()
	if err != nil {
		fail(w, r, err)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, no-cache")
	if noneMatch(r.Header.Values("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleSubmitQuiz(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	quizID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "Quiz not found")
		return
	}

	var sub grading.Submission
	if err := decodeBody(r, submitSchema, &sub); err != nil {
		if errors.Is(err, errBadRequest) {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		fail(w, r, err)
		return
	}

	result, err := s.grader.Grade(r.Context(), id, quizID, sub)
	if errors.Is(err, grading.ErrQuizNotFound) {
		writeError(w, http.StatusNotFound, "Quiz not found")
		return
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// noneMatch reports whether any If-None-Match value matches etag using weak
// comparison. Values may be "*" or a comma-separated list of entity tags.
func noneMatch(headers []string, etag string) bool {
	want := strings.TrimPrefix(etag, "W/")
	for _, h := range headers {
		for {
			h = strings.TrimLeft(h, " \t,")
			if h == "" {
				break
			}
			if h[0] == '*' {
				return true
			}
			tag, rest, ok := scanETag(h)
			if !ok {
				break
			}
			if strings.TrimPrefix(tag, "W/") == want {
				return true
			}
			h = rest
		}
	}
	return false
}

// scanETag splits one quoted entity tag, optionally weak, off the front of s.
func scanETag(s string) (tag, rest string, ok bool) {
	start := s
	s = strings.TrimPrefix(s, "W/")
	if len(s) < 2 || s[0] != '"' {
		return "", "", false
	}
	end := strings.IndexByte(s[1:], '"')
	if end < 0 {
		return "", "", false
	}
	n := len(start) - len(s) + end + 2
	return start[:n], start[n:], true
}
