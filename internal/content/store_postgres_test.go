package content_test

import (
	"context"
	"errors"
	"testing"

	"github.com/p-n-ai/pai-lms/internal/content"
	"github.com/p-n-ai/pai-lms/internal/platform/database/dbtest"
)

func TestNewPostgresStore_NilPool(t *testing.T) {
	if _, err := content.NewPostgresStore(nil); err == nil {
		t.Fatal("expected error for nil pool")
	}
}

func TestPostgresStore_LoadAndRead(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()

	store, err := content.NewPostgresStore(db.Pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}

	if _, err := content.NewLoader(setupTestContent(t), store).Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	// Loading twice upserts instead of duplicating, topics included.
	if _, err := content.NewLoader(setupTestContent(t), store).Load(ctx); err != nil {
		t.Fatalf("second Load() error = %v", err)
	}

	n, err := store.CountLessons(ctx, 1)
	if err != nil || n != 2 {
		t.Fatalf("CountLessons() = %d, %v; want 2", n, err)
	}

	if topic, err := store.GetTopic(ctx, 51); err != nil || topic.LessonID != 10 {
		t.Errorf("GetTopic(51) = %+v, %v; want lesson 10", topic, err)
	}

	qs, err := store.QuizQuestions(ctx, 100)
	if err != nil {
		t.Fatalf("QuizQuestions() error = %v", err)
	}
	if len(qs) != 2 || len(qs[0].Choices) != 2 || qs[0].Choices[0].ID != 1001 {
		t.Errorf("questions = %+v", qs)
	}

	// Sequences were advanced past seeded ids.
	id, err := store.AddSubject(ctx, content.Subject{Name: "Chemistry"})
	if err != nil {
		t.Fatalf("AddSubject() error = %v", err)
	}
	if id <= 1 {
		t.Errorf("new subject id = %d, want > 1", id)
	}

	if _, err := store.GetQuiz(ctx, 9999); !errors.Is(err, content.ErrNotFound) {
		t.Errorf("GetQuiz(9999) error = %v, want ErrNotFound", err)
	}
}
