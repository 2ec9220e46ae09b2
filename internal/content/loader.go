package content

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// subjectFile is the on-disk YAML layout: one subject per file.
type subjectFile struct {
	ID         int64        `yaml:"id"`
	Name       string       `yaml:"name"`
	Code       string       `yaml:"code"`
	Board      string       `yaml:"board"`
	ClassLevel string       `yaml:"class_level"`
	Lessons    []lessonFile `yaml:"lessons"`
}

type lessonFile struct {
	ID       int64       `yaml:"id"`
	Title    string      `yaml:"title"`
	Order    int         `yaml:"order"`
	Duration int         `yaml:"duration"`
	Topics   []topicFile `yaml:"topics"`
	Quizzes  []quizFile  `yaml:"quizzes"`
}

type topicFile struct {
	ID    int64  `yaml:"id"`
	Title string `yaml:"title"`
	Order int    `yaml:"order"`
}

type quizFile struct {
	ID         int64          `yaml:"id"`
	Title      string         `yaml:"title"`
	TimeLimit  *int           `yaml:"time_limit"`
	TotalMarks int            `yaml:"total_marks"`
	Questions  []questionFile `yaml:"questions"`
}

type questionFile struct {
	ID      int64        `yaml:"id"`
	Text    string       `yaml:"text"`
	QType   string       `yaml:"qtype"`
	Marks   int          `yaml:"marks"`
	Choices []choiceFile `yaml:"choices"`
}

type choiceFile struct {
	ID      int64  `yaml:"id"`
	Text    string `yaml:"text"`
	Correct bool   `yaml:"correct"`
}

// LoadStats counts what a load wrote.
type LoadStats struct {
	Subjects  int
	Lessons   int
	Quizzes   int
	Questions int
	Skipped   int
}

// Loader seeds a content store from a directory of YAML files.
type Loader struct {
	rootDir string
	seeder  Seeder
}

// NewLoader creates a loader reading rootDir and writing to seeder.
func NewLoader(rootDir string, seeder Seeder) *Loader {
	return &Loader{rootDir: rootDir, seeder: seeder}
}

// Load walks the directory and writes every subject file it finds. Files that
// fail to parse are skipped with a warning; store errors abort the load.
//
// Every entity must carry an explicit id so that reloading the same files
// upserts in place. An entity without one is skipped with its children.
func (l *Loader) Load(ctx context.Context) (LoadStats, error) {
	var stats LoadStats

	err := filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}
		if strings.HasPrefix(filepath.Base(path), "badges.") {
			return nil // Loaded by gamify
		}
		return l.loadSubject(ctx, path, &stats)
	})
	if err != nil {
		return stats, fmt.Errorf("loading content: %w", err)
	}

	if r, ok := l.seeder.(interface{ ResetSequences(context.Context) error }); ok {
		if err := r.ResetSequences(ctx); err != nil {
			return stats, err
		}
	}

	slog.Info("content loaded",
		"subjects", stats.Subjects,
		"lessons", stats.Lessons,
		"quizzes", stats.Quizzes,
		"questions", stats.Questions,
		"skipped", stats.Skipped,
	)
	return stats, nil
}

func (l *Loader) loadSubject(ctx context.Context, path string, stats *LoadStats) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var sf subjectFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		slog.Warn("skipping invalid content YAML", "path", path, "error", err)
		return nil
	}
	if sf.Name == "" {
		return nil // Not a subject file
	}
	if missingID(stats, sf.ID, "subject", sf.Name, "path", path) {
		return nil
	}

	subjectID, err := l.seeder.AddSubject(ctx, Subject{
		ID:         sf.ID,
		Name:       sf.Name,
		Code:       sf.Code,
		Board:      sf.Board,
		ClassLevel: sf.ClassLevel,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	stats.Subjects++

	for i, lf := range sf.Lessons {
		if missingID(stats, lf.ID, "lesson", lf.Title, "path", path) {
			continue
		}
		order := lf.Order
		if order == 0 {
			order = i + 1
		}
		duration := lf.Duration
		if duration == 0 {
			duration = 5
		}
		lessonID, err := l.seeder.AddLesson(ctx, Lesson{
			ID:        lf.ID,
			SubjectID: subjectID,
			Title:     lf.Title,
			Order:     order,
			Duration:  duration,
		})
		if err != nil {
			return fmt.Errorf("%s: lesson %q: %w", path, lf.Title, err)
		}
		stats.Lessons++

		for j, tf := range lf.Topics {
			if missingID(stats, tf.ID, "topic", tf.Title, "path", path, "lesson_id", lessonID) {
				continue
			}
			torder := tf.Order
			if torder == 0 {
				torder = j + 1
			}
			if _, err := l.seeder.AddTopic(ctx, Topic{ID: tf.ID, LessonID: lessonID, Title: tf.Title, Order: torder}); err != nil {
				return fmt.Errorf("%s: topic %q: %w", path, tf.Title, err)
			}
		}

		for _, qf := range lf.Quizzes {
			if missingID(stats, qf.ID, "quiz", qf.Title, "path", path, "lesson_id", lessonID) {
				continue
			}
			if err := l.loadQuiz(ctx, lessonID, qf, stats); err != nil {
				return fmt.Errorf("%s: quiz %q: %w", path, qf.Title, err)
			}
		}
	}
	return nil
}

func (l *Loader) loadQuiz(ctx context.Context, lessonID int64, qf quizFile, stats *LoadStats) error {
	quizID, err := l.seeder.AddQuiz(ctx, Quiz{
		ID:         qf.ID,
		LessonID:   lessonID,
		Title:      qf.Title,
		TimeLimit:  qf.TimeLimit,
		TotalMarks: qf.TotalMarks,
	})
	if err != nil {
		return err
	}
	stats.Quizzes++

	for _, qq := range qf.Questions {
		if missingID(stats, qq.ID, "question", qq.Text, "quiz_id", quizID) || choiceMissingID(stats, qq, quizID) {
			continue
		}
		qtype := QuestionType(qq.QType)
		if qtype == "" {
			qtype = QuestionMCQ
		}
		if !qtype.Valid() {
			slog.Warn("unknown question type, using mcq", "type", qq.QType, "quiz_id", quizID)
			qtype = QuestionMCQ
		}
		marks := qq.Marks
		if marks == 0 {
			marks = 1
		}
		q := Question{ID: qq.ID, QuizID: quizID, Text: qq.Text, Type: qtype, Marks: marks}
		for _, c := range qq.Choices {
			q.Choices = append(q.Choices, Choice{ID: c.ID, Text: c.Text, IsCorrect: c.Correct})
		}
		if len(q.CorrectChoices()) == 0 {
			slog.Warn("question has no correct choice", "quiz_id", quizID, "text", q.Text)
		}
		if _, err := l.seeder.AddQuestion(ctx, q); err != nil {
			return err
		}
		stats.Questions++
	}
	return nil
}

// missingID reports whether id is unset, logging and counting the skip.
func missingID(stats *LoadStats, id int64, kind, name string, attrs ...any) bool {
	if id > 0 {
		return false
	}
	stats.Skipped++
	slog.Warn("skipping content without id", append([]any{"kind", kind, "name", name}, attrs...)...)
	return true
}

// choiceMissingID drops the whole question when any choice lacks an id, since
// a partial choice set would change how the question grades.
func choiceMissingID(stats *LoadStats, qq questionFile, quizID int64) bool {
	for _, c := range qq.Choices {
		if c.ID <= 0 {
			stats.Skipped++
			slog.Warn("skipping question with a choice without id", "quiz_id", quizID, "question", qq.Text, "choice", c.Text)
			return true
		}
	}
	return false
}
