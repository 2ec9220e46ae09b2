package content_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-lms/internal/content"
)

func seedQuiz(t *testing.T, totalMarks int) (*content.MemoryStore, int64) {
	t.Helper()
	ctx := context.Background()
	store := content.NewMemoryStore()
	subjectID, _ := store.AddSubject(ctx, content.Subject{Name: "Science"})
	lessonID, _ := store.AddLesson(ctx, content.Lesson{SubjectID: subjectID, Title: "Cells"})
	limit := 300
	quizID, _ := store.AddQuiz(ctx, content.Quiz{LessonID: lessonID, Title: "Cells quiz", TimeLimit: &limit, TotalMarks: totalMarks})
	_, _ = store.AddQuestion(ctx, content.Question{QuizID: quizID, Text: "Powerhouse?", Marks: 1, Choices: []content.Choice{
		{Text: "Mitochondria", IsCorrect: true},
		{Text: "Nucleus"},
	}})
	_, _ = store.AddQuestion(ctx, content.Question{QuizID: quizID, Text: "Cells are alive", Type: content.QuestionTrueFalse, Marks: 2, Choices: []content.Choice{
		{Text: "True", IsCorrect: true},
		{Text: "False"},
	}})
	return store, quizID
}

func TestLoadQuizPayload(t *testing.T) {
	store, quizID := seedQuiz(t, 0)

	p, err := content.LoadQuizPayload(context.Background(), store, quizID)
	if err != nil {
		t.Fatalf("LoadQuizPayload() error = %v", err)
	}
	if p.TimeLimit != 300 {
		t.Errorf("TimeLimit = %d, want 300", p.TimeLimit)
	}
	if p.TotalMarks != 3 {
		t.Errorf("TotalMarks = %d, want sum of marks 3", p.TotalMarks)
	}
	if len(p.Questions) != 2 || len(p.Questions[0].Choices) != 2 {
		t.Fatalf("unexpected payload shape: %+v", p)
	}
	if p.Questions[1].QType != content.QuestionTrueFalse {
		t.Errorf("QType = %q, want tf", p.Questions[1].QType)
	}
}

func TestLoadQuizPayload_StoredTotalWins(t *testing.T) {
	store, quizID := seedQuiz(t, 10)

	p, _ := content.LoadQuizPayload(context.Background(), store, quizID)
	if p.TotalMarks != 10 {
		t.Errorf("TotalMarks = %d, want stored 10", p.TotalMarks)
	}
}

func TestLoadQuizPayload_NoTimeLimit(t *testing.T) {
	p := content.NewQuizPayload(content.Quiz{ID: 1, Title: "x"}, nil)
	if p.TimeLimit != 0 || p.TotalMarks != 0 {
		t.Errorf("payload = %+v, want zero time limit and marks", p)
	}
	data, _ := json.Marshal(p)
	if !strings.Contains(string(data), `"questions":[]`) {
		t.Errorf("questions should encode as empty array, got %s", data)
	}
}

func TestLoadQuizPayload_NotFound(t *testing.T) {
	store := content.NewMemoryStore()
	_, err := content.LoadQuizPayload(context.Background(), store, 7)
	if !errors.Is(err, content.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestQuizPayload_NeverLeaksCorrectness(t *testing.T) {
	store, quizID := seedQuiz(t, 0)
	p, _ := content.LoadQuizPayload(context.Background(), store, quizID)

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for _, forbidden := range []string{"is_correct", "IsCorrect", "correct"} {
		if strings.Contains(string(data), forbidden) {
			t.Errorf("payload JSON contains %q: %s", forbidden, data)
		}
	}
}

func TestQuizPayload_ETag(t *testing.T) {
	store, quizID := seedQuiz(t, 0)
	p, _ := content.LoadQuizPayload(context.Background(), store, quizID)

	a, err := p.ETag()
	if err != nil {
		t.Fatalf("ETag() error = %v", err)
	}
	b, _ := p.ETag()
	if a != b {
		t.Errorf("ETag not stable: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, `"`) || !strings.HasSuffix(a, `"`) {
		t.Errorf("ETag %s should be quoted", a)
	}

	p.Title = "changed"
	c, _ := p.ETag()
	if c == a {
		t.Error("ETag should change when payload changes")
	}
}
