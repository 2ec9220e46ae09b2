package gamify_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/p-n-ai/pai-lms/internal/gamify"
)

func intPtr(v int) *int { return &v }

func seedBadges(t *testing.T, s gamify.Store) {
	t.Helper()
	ctx := context.Background()
	for _, b := range []gamify.Badge{
		{Code: "starter", Title: "Starter", Criteria: gamify.Criteria{Points: intPtr(1)}},
		{Code: "scholar", Title: "Scholar", Criteria: gamify.Criteria{Points: intPtr(10)}},
		{Code: "manual", Title: "Hand-picked"},
	} {
		if _, err := s.UpsertBadge(ctx, b); err != nil {
			t.Fatalf("UpsertBadge(%s) error = %v", b.Code, err)
		}
	}
}

func TestMemoryStore_AwardAndTotal(t *testing.T) {
	ctx := context.Background()
	s := gamify.NewMemoryStore()

	if _, err := s.Award(ctx, 1, 0, "nothing"); !errors.Is(err, gamify.ErrInvalid) {
		t.Errorf("Award(0) error = %v, want ErrInvalid", err)
	}

	_, _ = s.Award(ctx, 1, 3, "quiz:1")
	_, _ = s.Award(ctx, 1, 4, "quiz:2")
	_, _ = s.Award(ctx, 1, -2, "penalty")
	_, _ = s.Award(ctx, 2, 100, "quiz:1")

	total, err := s.Total(ctx, 1)
	if err != nil {
		t.Fatalf("Total() error = %v", err)
	}
	if total != 5 {
		t.Errorf("Total() = %d, want 5", total)
	}
}

// checkAwardOnce runs the same once-per-reason assertions against any Store.
func checkAwardOnce(t *testing.T, s gamify.Store) {
	t.Helper()
	ctx := context.Background()

	if _, _, err := s.AwardOnce(ctx, 7, 0, "quiz:1"); !errors.Is(err, gamify.ErrInvalid) {
		t.Errorf("AwardOnce(0) error = %v, want ErrInvalid", err)
	}

	if _, ok, err := s.AwardOnce(ctx, 7, 3, "quiz:1"); err != nil || !ok {
		t.Fatalf("first AwardOnce() = %v, %v; want written", ok, err)
	}
	if _, ok, err := s.AwardOnce(ctx, 7, 5, "quiz:1"); err != nil || ok {
		t.Errorf("repeat AwardOnce() = %v, %v; want skipped", ok, err)
	}
	if _, ok, _ := s.AwardOnce(ctx, 7, 2, "quiz:2"); !ok {
		t.Error("AwardOnce() for another quiz should be written")
	}
	if _, ok, _ := s.AwardOnce(ctx, 8, 4, "quiz:1"); !ok {
		t.Error("AwardOnce() for another profile should be written")
	}
	// Plain awards with the same reason are independent of AwardOnce.
	_, _ = s.Award(ctx, 7, 1, "quiz:1")

	if total, _ := s.Total(ctx, 7); total != 6 {
		t.Errorf("Total() = %d, want 6", total)
	}
}

func TestMemoryStore_AwardOnce(t *testing.T) {
	checkAwardOnce(t, gamify.NewMemoryStore())
}

func TestMemoryStore_Evaluate(t *testing.T) {
	ctx := context.Background()
	s := gamify.NewMemoryStore()
	seedBadges(t, s)

	none, _ := s.Evaluate(ctx, 1)
	if len(none) != 0 {
		t.Errorf("Evaluate() with no points = %v, want none", none)
	}

	_, _ = s.Award(ctx, 1, 2, "quiz:1")
	got, _ := s.Evaluate(ctx, 1)
	if len(got) != 1 || got[0].Code != "starter" {
		t.Fatalf("Evaluate() = %+v, want starter", got)
	}

	again, _ := s.Evaluate(ctx, 1)
	if len(again) != 0 {
		t.Errorf("Evaluate() twice = %+v, want no duplicates", again)
	}

	_, _ = s.Award(ctx, 1, 20, "quiz:2")
	got, _ = s.Evaluate(ctx, 1)
	if len(got) != 1 || got[0].Code != "scholar" {
		t.Errorf("Evaluate() = %+v, want scholar", got)
	}

	held, _ := s.Badges(ctx, 1)
	if len(held) != 2 {
		t.Errorf("Badges() = %d, want 2 (manual badge never auto-awarded)", len(held))
	}
	other, _ := s.Badges(ctx, 2)
	if len(other) != 0 {
		t.Errorf("Badges(other) = %d, want 0", len(other))
	}
}

func TestMemoryStore_UpsertBadge(t *testing.T) {
	ctx := context.Background()
	s := gamify.NewMemoryStore()

	if _, err := s.UpsertBadge(ctx, gamify.Badge{Title: "no code"}); !errors.Is(err, gamify.ErrInvalid) {
		t.Errorf("UpsertBadge(no code) error = %v, want ErrInvalid", err)
	}

	a, _ := s.UpsertBadge(ctx, gamify.Badge{Code: "x"})
	b, _ := s.UpsertBadge(ctx, gamify.Badge{Code: "x", Title: "Renamed"})
	if a.ID != b.ID {
		t.Errorf("upsert changed id: %d -> %d", a.ID, b.ID)
	}
	if a.Title != "x" {
		t.Errorf("Title defaulted to %q, want code", a.Title)
	}
}

func TestLoadBadges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, gamify.BadgesFile)
	yml := `badges:
  - code: first-quiz
    title: First Quiz
    description: Scored your first point
    criteria:
      points: 1
  - title: Missing code
  - code: centurion
    title: Centurion
    criteria:
      points: 100
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	s := gamify.NewMemoryStore()
	n, err := gamify.LoadBadges(context.Background(), path, s)
	if err != nil {
		t.Fatalf("LoadBadges() error = %v", err)
	}
	if n != 2 {
		t.Errorf("LoadBadges() = %d, want 2", n)
	}

	_, _ = s.Award(context.Background(), 9, 1, "quiz:1")
	got, _ := s.Evaluate(context.Background(), 9)
	if len(got) != 1 || got[0].Code != "first-quiz" {
		t.Errorf("Evaluate() = %+v", got)
	}
}

func TestLoadBadges_MissingFile(t *testing.T) {
	n, err := gamify.LoadBadges(context.Background(), filepath.Join(t.TempDir(), "none.yaml"), gamify.NewMemoryStore())
	if err != nil || n != 0 {
		t.Errorf("LoadBadges(missing) = %d, %v; want 0, nil", n, err)
	}
}

func TestLoadBadges_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), gamify.BadgesFile)
	_ = os.WriteFile(path, []byte("badges: [unclosed"), 0o644)
	if _, err := gamify.LoadBadges(context.Background(), path, gamify.NewMemoryStore()); err == nil {
		t.Error("expected parse error")
	}
}
