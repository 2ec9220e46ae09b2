package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/p-n-ai/pai-lms/internal/auth"
	"github.com/p-n-ai/pai-lms/internal/changelog"
	"github.com/p-n-ai/pai-lms/internal/content"
	"github.com/p-n-ai/pai-lms/internal/gamify"
)

// errBadRequest marks client input errors.
var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps err onto the HTTP error taxonomy.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
	case errors.Is(err, content.ErrNotFound), errors.Is(err, changelog.ErrDeviceNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, changelog.ErrDeviceClaimed):
		writeError(w, http.StatusConflict, "Device already registered")
	case errors.Is(err, errBadRequest), errors.Is(err, changelog.ErrInvalid), errors.Is(err, gamify.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Unauthorized")
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// pathID parses a positive integer path value.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
