package progress_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/p-n-ai/pai-lms/internal/platform/database/dbtest"
	"github.com/p-n-ai/pai-lms/internal/progress"
)

func TestNewPostgresLedger_NilPool(t *testing.T) {
	if _, err := progress.NewPostgresLedger(nil); err == nil {
		t.Fatal("expected error for nil pool")
	}
}

func TestPostgresLedger_GetOrCreate(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()

	var subjectID, lessonID int64
	if err := db.Pool.QueryRow(ctx, `INSERT INTO subjects (name) VALUES ('Math') RETURNING id`).Scan(&subjectID); err != nil {
		t.Fatal(err)
	}
	if err := db.Pool.QueryRow(ctx, `INSERT INTO lessons (subject_id, title) VALUES ($1, 'Algebra') RETURNING id`, subjectID).Scan(&lessonID); err != nil {
		t.Fatal(err)
	}

	l, err := progress.NewPostgresLedger(db.Pool)
	if err != nil {
		t.Fatalf("NewPostgresLedger() error = %v", err)
	}

	key := progress.Key{UserID: 1, SubjectID: subjectID, LessonID: &lessonID}

	var wg sync.WaitGroup
	outcomes := make([]progress.Outcome, 10)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, o, err := l.MarkCompleted(ctx, key, time.Now())
			if err != nil {
				t.Errorf("MarkCompleted() error = %v", err)
			}
			outcomes[i] = o
		}(i)
	}
	wg.Wait()

	created := 0
	for _, o := range outcomes {
		if o == progress.Created {
			created++
		}
	}
	if created != 1 {
		t.Errorf("created = %d, want 1", created)
	}

	// Null lesson/topic rows collapse onto one key too.
	_, first, _ := l.MarkCompleted(ctx, progress.Key{UserID: 1, SubjectID: subjectID}, time.Now())
	_, second, _ := l.MarkCompleted(ctx, progress.Key{UserID: 1, SubjectID: subjectID}, time.Now())
	if first != progress.Created || second != progress.Unchanged {
		t.Errorf("null-key outcomes = %v, %v", first, second)
	}

	// An incomplete row written elsewhere is flipped.
	if _, err := db.Pool.Exec(ctx, `UPDATE student_progress SET completed = FALSE, completed_at = NULL WHERE lesson_id = $1`, lessonID); err != nil {
		t.Fatal(err)
	}
	rec, o, err := l.MarkCompleted(ctx, key, time.Now())
	if err != nil || o != progress.Flipped || !rec.Completed || rec.CompletedAt == nil {
		t.Errorf("flip = %+v, %v, %v", rec, o, err)
	}

	n, err := l.CompletedLessons(ctx, 1, subjectID)
	if err != nil || n != 1 {
		t.Errorf("CompletedLessons() = %d, %v; want 1", n, err)
	}

	recs, err := l.List(ctx, 1, subjectID)
	if err != nil || len(recs) != 2 {
		t.Errorf("List() = %d rows, %v; want 2", len(recs), err)
	}
}
