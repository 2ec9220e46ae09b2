package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/p-n-ai/pai-lms/internal/auth"
	"github.com/p-n-ai/pai-lms/internal/content"
)

// ErrSubjectNotFound is returned by Percent for an unknown subject.
var ErrSubjectNotFound = errors.New("subject not found")

// Percent is floor(100 * completed / total), clamped to [0, 100]; 0 when total is 0.
func Percent(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	return completed * 100 / total
}

// ServiceConfig holds dependencies for the progress service.
type ServiceConfig struct {
	Content content.Store
	Ledger  Ledger
	Cache   Cache
	Now     func() time.Time
}

// Service answers progress queries and records completions.
type Service struct {
	content content.Store
	ledger  Ledger
	cache   Cache
	now     func() time.Time
}

// NewService creates a progress service. A nil cache disables caching.
func NewService(cfg ServiceConfig) *Service {
	ledger := cfg.Ledger
	if ledger == nil {
		ledger = NewMemoryLedger()
	}
	c := cfg.Cache
	if c == nil {
		c = NopCache{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{content: cfg.Content, ledger: ledger, cache: c, now: now}
}

// Ledger returns the underlying ledger.
func (s *Service) Ledger() Ledger { return s.ledger }

// Percent returns the caller's percent-complete for subjectID.
func (s *Service) Percent(ctx context.Context, id auth.Identity, subjectID int64) (int, error) {
	if _, err := s.content.GetSubject(ctx, subjectID); err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return 0, fmt.Errorf("%w: %d", ErrSubjectNotFound, subjectID)
		}
		return 0, err
	}
	return s.SubjectPercent(ctx, id.UserID, subjectID)
}

// SubjectPercent computes percent-complete for a subject known to exist.
func (s *Service) SubjectPercent(ctx context.Context, userID, subjectID int64) (int, error) {
	if pct, ok := s.cache.Get(ctx, userID, subjectID); ok {
		return pct, nil
	}

	total, err := s.content.CountLessons(ctx, subjectID)
	if err != nil {
		return 0, fmt.Errorf("count subject lessons: %w", err)
	}
	completed := 0
	if total > 0 {
		completed, err = s.ledger.CompletedLessons(ctx, userID, subjectID)
		if err != nil {
			return 0, err
		}
	}

	pct := Percent(completed, total)
	s.cache.Set(ctx, userID, subjectID, pct)
	return pct, nil
}

// Complete marks key completed now and drops the cached percent.
func (s *Service) Complete(ctx context.Context, key Key) (Record, Outcome, error) {
	rec, outcome, err := s.ledger.MarkCompleted(ctx, key, s.now())
	if err != nil {
		return Record{}, Unchanged, err
	}
	if outcome.Changed() {
		s.cache.Invalidate(ctx, key.UserID, key.SubjectID)
	}
	return rec, outcome, nil
}

// Records lists the caller's rows for subjectID.
func (s *Service) Records(ctx context.Context, id auth.Identity, subjectID int64) ([]Record, error) {
	return s.ledger.List(ctx, id.UserID, subjectID)
}
