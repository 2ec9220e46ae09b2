package content_test

import (
	"context"
	"errors"
	"testing"

	"github.com/p-n-ai/pai-lms/internal/content"
)

func TestMemoryStore_Hierarchy(t *testing.T) {
	ctx := context.Background()
	store := content.NewMemoryStore()

	subjectID, err := store.AddSubject(ctx, content.Subject{Name: "Physics", ClassLevel: "Class 10"})
	if err != nil {
		t.Fatalf("AddSubject() error = %v", err)
	}
	second, _ := store.AddLesson(ctx, content.Lesson{SubjectID: subjectID, Title: "Magnetism", Order: 2})
	first, _ := store.AddLesson(ctx, content.Lesson{SubjectID: subjectID, Title: "Electricity", Order: 1})

	lessons, err := store.SubjectLessons(ctx, subjectID)
	if err != nil {
		t.Fatalf("SubjectLessons() error = %v", err)
	}
	if len(lessons) != 2 || lessons[0].ID != first || lessons[1].ID != second {
		t.Errorf("SubjectLessons() = %+v, want ordered by Order", lessons)
	}

	n, _ := store.CountLessons(ctx, subjectID)
	if n != 2 {
		t.Errorf("CountLessons() = %d, want 2", n)
	}

	sub, _ := store.GetSubject(ctx, subjectID)
	if sub.Board != "CBSE" {
		t.Errorf("Board = %q, want default CBSE", sub.Board)
	}
}

func TestMemoryStore_QuizQuestionsOrdered(t *testing.T) {
	ctx := context.Background()
	store := content.NewMemoryStore()
	subjectID, _ := store.AddSubject(ctx, content.Subject{Name: "Math"})
	lessonID, _ := store.AddLesson(ctx, content.Lesson{SubjectID: subjectID, Title: "Algebra"})
	quizID, _ := store.AddQuiz(ctx, content.Quiz{LessonID: lessonID, Title: "Basics"})

	_, _ = store.AddQuestion(ctx, content.Question{ID: 50, QuizID: quizID, Text: "second"})
	_, _ = store.AddQuestion(ctx, content.Question{ID: 40, QuizID: quizID, Text: "first", Choices: []content.Choice{
		{ID: 42, Text: "b"},
		{ID: 41, Text: "a", IsCorrect: true},
	}})

	qs, err := store.QuizQuestions(ctx, quizID)
	if err != nil {
		t.Fatalf("QuizQuestions() error = %v", err)
	}
	if len(qs) != 2 || qs[0].ID != 40 || qs[1].ID != 50 {
		t.Fatalf("QuizQuestions() order = %+v", qs)
	}
	if qs[0].Choices[0].ID != 41 || qs[0].Choices[0].QuestionID != 40 {
		t.Errorf("choices not ordered/linked: %+v", qs[0].Choices)
	}
	if qs[1].Type != content.QuestionMCQ {
		t.Errorf("Type = %q, want default mcq", qs[1].Type)
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := content.NewMemoryStore()

	if _, err := store.GetQuiz(ctx, 99); !errors.Is(err, content.ErrNotFound) {
		t.Errorf("GetQuiz() error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetSubject(ctx, 99); !errors.Is(err, content.ErrNotFound) {
		t.Errorf("GetSubject() error = %v, want ErrNotFound", err)
	}
	if _, err := store.AddLesson(ctx, content.Lesson{SubjectID: 99}); !errors.Is(err, content.ErrNotFound) {
		t.Errorf("AddLesson() with unknown subject error = %v, want ErrNotFound", err)
	}
}

func TestQuestion_Helpers(t *testing.T) {
	q := content.Question{
		Choices: []content.Choice{
			{ID: 1, Text: "a", IsCorrect: true},
			{ID: 2, Text: "b"},
			{ID: 3, Text: "c", IsCorrect: true},
		},
	}
	if q.MarksOrDefault() != 1 {
		t.Errorf("MarksOrDefault() = %d, want 1", q.MarksOrDefault())
	}
	if got := q.CorrectChoices(); len(got) != 2 || got[0].ID != 1 {
		t.Errorf("CorrectChoices() = %+v", got)
	}
	if _, ok := q.FindChoice(2); !ok {
		t.Error("FindChoice(2) should be found")
	}
	if _, ok := q.FindChoice(9); ok {
		t.Error("FindChoice(9) should not be found")
	}
}
