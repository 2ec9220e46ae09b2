// Package api exposes quizzes, grading, progress, sync and gamification
// over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/p-n-ai/pai-lms/internal/auth"
	"github.com/p-n-ai/pai-lms/internal/changelog"
	"github.com/p-n-ai/pai-lms/internal/content"
	"github.com/p-n-ai/pai-lms/internal/gamify"
	"github.com/p-n-ai/pai-lms/internal/grading"
	"github.com/p-n-ai/pai-lms/internal/progress"
)

const maxBodyBytes = 1 << 20

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds the server's dependencies.
type Config struct {
	Verifier *auth.Verifier
	Content  content.Store
	Progress *progress.Service
	Grader   *grading.Engine
	Changes  changelog.Store
	Gamify   gamify.Store
	// Checks are run by /readyz, keyed by component name.
	Checks map[string]HealthCheck
}

// Server routes HTTP requests to the core services.
type Server struct {
	verifier *auth.Verifier
	content  content.Store
	progress *progress.Service
	grader   *grading.Engine
	changes  changelog.Store
	gamify   gamify.Store
	stream   *changelog.Stream
	checks   map[string]HealthCheck
}

// NewServer creates a server. Changes and Gamify fall back to in-memory stores.
func NewServer(cfg Config) *Server {
	changes := cfg.Changes
	if changes == nil {
		changes = changelog.NewMemoryStore()
	}
	gam := cfg.Gamify
	if gam == nil {
		gam = gamify.NewMemoryStore()
	}
	svc := cfg.Progress
	if svc == nil {
		svc = progress.NewService(progress.ServiceConfig{Content: cfg.Content})
	}
	grader := cfg.Grader
	if grader == nil {
		grader = grading.NewEngine(grading.EngineConfig{
			Content:  cfg.Content,
			Progress: svc,
			Changes:  changes,
			Gamify:   gam,
		})
	}
	return &Server{
		verifier: cfg.Verifier,
		content:  cfg.Content,
		progress: svc,
		grader:   grader,
		changes:  changes,
		gamify:   gam,
		stream:   changelog.NewStream(changes, 0),
		checks:   cfg.Checks,
	}
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return logRequests(limitBody(s.routes()))
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("GET /api/quizzes/{id}", s.authed(s.handleGetQuiz))
	mux.HandleFunc("POST /api/quizzes/{id}/submit", s.authed(s.handleSubmitQuiz))
	mux.HandleFunc("GET /api/subjects/{id}/progress", s.authed(s.handleSubjectProgress))
	mux.HandleFunc("GET /api/subjects/{id}/progress.xlsx", s.authed(s.handleProgressReport))

	mux.HandleFunc("POST /api/sync/changes", s.authed(s.handleLogChange))
	mux.HandleFunc("GET /api/sync/changes", s.authed(s.handleListChanges))
	mux.HandleFunc("POST /api/sync/changes/ack", s.authed(s.handleAckChanges))
	mux.HandleFunc("POST /api/sync/devices", s.authed(s.handleRegisterDevice))
	mux.HandleFunc("GET /api/sync/stream", s.authed(s.handleStream))

	mux.HandleFunc("GET /api/gamify/summary", s.authed(s.handleGamifySummary))
	return mux
}
