package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/p-n-ai/pai-lms/internal/auth"
	"github.com/p-n-ai/pai-lms/internal/content"
	"github.com/p-n-ai/pai-lms/internal/progress"
	"github.com/p-n-ai/pai-lms/internal/report"
)

type progressResponse struct {
	SubjectID int64 `json:"subject_id"`
	Percent   int   `json:"percent"`
}

func (s *Server) handleSubjectProgress(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	subjectID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "Subject not found")
		return
	}

	pct, err := s.progress.Percent(r.Context(), id, subjectID)
	if errors.Is(err, progress.ErrSubjectNotFound) {
		writeError(w, http.StatusNotFound, "Subject not found")
		return
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{SubjectID: subjectID, Percent: pct})
}

func (s *Server) handleProgressReport(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	subjectID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "Subject not found")
		return
	}

	ctx := r.Context()
	subject, err := s.content.GetSubject(ctx, subjectID)
	if errors.Is(err, content.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Subject not found")
		return
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	lessons, err := s.content.SubjectLessons(ctx, subjectID)
	if err != nil {
		fail(w, r, err)
		return
	}
	records, err := s.progress.Records(ctx, id, subjectID)
	if err != nil {
		fail(w, r, err)
		return
	}
	pct, err := s.progress.SubjectPercent(ctx, id.UserID, subjectID)
	if err != nil {
		fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteProgressXLSX(&buf, subject, lessons, records, pct); err != nil {
		fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="subject-%d-progress.xlsx"`, subjectID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
