package api

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/p-n-ai/pai-lms/internal/auth"
)

type identityHandler func(w http.ResponseWriter, r *http.Request, id auth.Identity)

// authed rejects requests without a valid bearer token.
func (s *Server) authed(h identityHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.verifier == nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		id, err := s.verifier.Verify(auth.BearerToken(r.Header.Get("Authorization")))
		if err != nil {
			slog.Debug("rejected token", "path", r.URL.Path, "error", err)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if rec, ok := w.(*statusRecorder); ok {
			rec.userID = id.UserID
		}
		h(w, r.WithContext(auth.WithIdentity(r.Context(), id)), id)
	}
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	userID int64
}

func (rec *statusRecorder) WriteHeader(code int) {
	if rec.status == 0 {
		rec.status = code
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	return rec.ResponseWriter.Write(b)
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	rec.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		fields := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if rec.userID != 0 {
			fields = append(fields, "user_id", rec.userID)
		}

		switch {
		case status >= 500:
			slog.Error("http request", fields...)
		case status >= 400:
			slog.Warn("http request", fields...)
		default:
			slog.Info("http request", fields...)
		}
	})
}
