package grading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/p-n-ai/pai-lms/internal/auth"
	"github.com/p-n-ai/pai-lms/internal/changelog"
	"github.com/p-n-ai/pai-lms/internal/content"
	"github.com/p-n-ai/pai-lms/internal/gamify"
	"github.com/p-n-ai/pai-lms/internal/progress"
)

// ProgressModel is the change-log model name for progress rows.
const ProgressModel = "StudentProgress"

// ErrQuizNotFound is returned by Grade when the quiz does not exist.
var ErrQuizNotFound = errors.New("quiz not found")

// Submission is the body of a quiz submission. The hierarchy ids are
// optional; ids that do not resolve are ignored.
type Submission struct {
	Answers   []Answer `json:"answers"`
	SubjectID LooseID  `json:"subject_id"`
	LessonID  LooseID  `json:"lesson_id"`
	TopicID   LooseID  `json:"topic_id"`
}

// Result is returned to the student after grading.
type Result struct {
	Score           int      `json:"score"`
	Total           int      `json:"total"`
	Details         []Detail `json:"details"`
	ProgressPercent int      `json:"progress_percent"`
}

// EngineConfig holds dependencies for the grading engine.
type EngineConfig struct {
	Content  content.Store
	Progress *progress.Service
	Changes  changelog.Store // optional
	Gamify   gamify.Store    // optional
}

// Engine grades submissions and applies their side effects.
type Engine struct {
	content  content.Store
	progress *progress.Service
	changes  changelog.Store
	gamify   gamify.Store
}

// NewEngine creates a grading engine.
func NewEngine(cfg EngineConfig) *Engine {
	svc := cfg.Progress
	if svc == nil {
		svc = progress.NewService(progress.ServiceConfig{Content: cfg.Content})
	}
	return &Engine{
		content:  cfg.Content,
		progress: svc,
		changes:  cfg.Changes,
		gamify:   cfg.Gamify,
	}
}

type resolved struct {
	questions []content.Question
	subject   *content.Subject
	lessonID  *int64
	topicID   *int64
}

// Grade scores sub for quizID on behalf of id.
//
// When the submission names an existing subject, the (user, subject,
// lesson, topic) progress row is marked completed regardless of score.
func (e *Engine) Grade(ctx context.Context, id auth.Identity, quizID int64, sub Submission) (Result, error) {
	r, err := e.resolve(ctx, quizID, sub)
	if err != nil {
		return Result{}, err
	}

	scored := Score(r.questions, sub.Answers)
	result := Result{Score: scored.Score, Total: scored.Total, Details: scored.Details}

	if r.subject != nil {
		if err := e.recordProgress(ctx, id, r); err != nil {
			return Result{}, err
		}
		pct, err := e.progress.SubjectPercent(ctx, id.UserID, r.subject.ID)
		if err != nil {
			return Result{}, fmt.Errorf("compute progress: %w", err)
		}
		result.ProgressPercent = pct
	}

	e.awardPoints(ctx, id, quizID, scored.Score)

	slog.Info("quiz graded",
		"quiz_id", quizID,
		"user_id", id.UserID,
		"score", result.Score,
		"total", result.Total,
		"progress_percent", result.ProgressPercent,
	)
	return result, nil
}

func (e *Engine) resolve(ctx context.Context, quizID int64, sub Submission) (resolved, error) {
	var r resolved

	_, err := e.content.GetQuiz(ctx, quizID)
	if errors.Is(err, content.ErrNotFound) {
		return r, fmt.Errorf("%w: %d", ErrQuizNotFound, quizID)
	}
	if err != nil {
		return r, fmt.Errorf("load quiz: %w", err)
	}

	r.questions, err = e.content.QuizQuestions(ctx, quizID)
	if err != nil {
		return r, fmt.Errorf("load questions: %w", err)
	}

	if sub.SubjectID.Valid {
		s, err := e.content.GetSubject(ctx, sub.SubjectID.Value)
		switch {
		case err == nil:
			r.subject = &s
		case !errors.Is(err, content.ErrNotFound):
			return r, fmt.Errorf("load subject: %w", err)
		}
	}
	if sub.LessonID.Valid {
		l, err := e.content.GetLesson(ctx, sub.LessonID.Value)
		switch {
		case err == nil:
			r.lessonID = &l.ID
		case !errors.Is(err, content.ErrNotFound):
			return r, fmt.Errorf("load lesson: %w", err)
		}
	}
	if sub.TopicID.Valid {
		t, err := e.content.GetTopic(ctx, sub.TopicID.Value)
		switch {
		case err == nil:
			r.topicID = &t.ID
		case !errors.Is(err, content.ErrNotFound):
			return r, fmt.Errorf("load topic: %w", err)
		}
	}
	return r, nil
}

func (e *Engine) recordProgress(ctx context.Context, id auth.Identity, r resolved) error {
	key := progress.Key{
		UserID:    id.UserID,
		SubjectID: r.subject.ID,
		LessonID:  r.lessonID,
		TopicID:   r.topicID,
	}
	rec, outcome, err := e.progress.Complete(ctx, key)
	if err != nil {
		return fmt.Errorf("record progress: %w", err)
	}
	if !outcome.Changed() || e.changes == nil {
		return nil
	}

	change, err := json.Marshal(progressChange{
		UserID:      rec.Key.UserID,
		SubjectID:   rec.Key.SubjectID,
		LessonID:    rec.Key.LessonID,
		TopicID:     rec.Key.TopicID,
		Completed:   rec.Completed,
		CompletedAt: rec.CompletedAt,
		Outcome:     outcome.String(),
	})
	if err != nil {
		slog.Warn("encode progress change failed", "error", err)
		return nil
	}
	if _, err := e.changes.Log(ctx, changelog.Entry{
		ProfileID: id.ProfileID,
		ModelName: ProgressModel,
		ObjectID:  strconv.FormatInt(rec.ID, 10),
		Change:    change,
	}); err != nil {
		slog.Warn("change log append failed", "progress_id", rec.ID, "error", err)
	}
	return nil
}

type progressChange struct {
	UserID      int64      `json:"user_id"`
	SubjectID   int64      `json:"subject_id"`
	LessonID    *int64     `json:"lesson_id"`
	TopicID     *int64     `json:"topic_id"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
	Outcome     string     `json:"outcome"`
}

func (e *Engine) awardPoints(ctx context.Context, id auth.Identity, quizID int64, score int) {
	if e.gamify == nil || score <= 0 {
		return
	}
	// Only the first scoring submission of a quiz earns points.
	_, awarded, err := e.gamify.AwardOnce(ctx, id.ProfileID, score, fmt.Sprintf("quiz:%d", quizID))
	if err != nil {
		slog.Warn("points award failed", "profile_id", id.ProfileID, "quiz_id", quizID, "error", err)
		return
	}
	if !awarded {
		return
	}
	badges, err := e.gamify.Evaluate(ctx, id.ProfileID)
	if err != nil {
		slog.Warn("badge evaluation failed", "profile_id", id.ProfileID, "error", err)
		return
	}
	for _, b := range badges {
		slog.Info("badge awarded", "profile_id", id.ProfileID, "badge", b.Code)
	}
}
