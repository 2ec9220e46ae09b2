package gamify_test

import (
	"context"
	"testing"

	"github.com/p-n-ai/pai-lms/internal/gamify"
	"github.com/p-n-ai/pai-lms/internal/platform/database/dbtest"
)

func TestNewPostgresStore_NilPool(t *testing.T) {
	if _, err := gamify.NewPostgresStore(nil); err == nil {
		t.Fatal("expected error for nil pool")
	}
}

func TestPostgresStore(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()

	s, err := gamify.NewPostgresStore(db.Pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	seedBadges(t, s)

	total, err := s.Total(ctx, 1)
	if err != nil || total != 0 {
		t.Errorf("Total() = %d, %v; want 0", total, err)
	}

	_, _ = s.Award(ctx, 1, 12, "quiz:1")
	got, err := s.Evaluate(ctx, 1)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(got) != 2 || got[0].Code != "starter" || got[1].Code != "scholar" {
		t.Errorf("Evaluate() = %+v, want starter and scholar", got)
	}
	if got[0].Criteria.Points == nil || *got[0].Criteria.Points != 1 {
		t.Errorf("criteria not decoded: %+v", got[0].Criteria)
	}

	again, _ := s.Evaluate(ctx, 1)
	if len(again) != 0 {
		t.Errorf("second Evaluate() = %+v, want none", again)
	}

	held, _ := s.Badges(ctx, 1)
	if len(held) != 2 {
		t.Errorf("Badges() = %d, want 2", len(held))
	}
}

func TestPostgresStore_AwardOnce(t *testing.T) {
	db := dbtest.New(t)
	s, err := gamify.NewPostgresStore(db.Pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	checkAwardOnce(t, s)
}
