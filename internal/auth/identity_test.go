package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/p-n-ai/pai-lms/internal/auth"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := auth.NewVerifier("secret")

	token, err := v.Sign(auth.Identity{UserID: 42, ProfileID: 7, Role: "student"}, time.Minute)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	id, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if id.UserID != 42 || id.ProfileID != 7 || id.Role != "student" {
		t.Errorf("Verify() = %+v, want user 42 profile 7 student", id)
	}
}

func TestVerifier_ProfileDefaultsToUser(t *testing.T) {
	v := auth.NewVerifier("secret")

	token, _ := v.Sign(auth.Identity{UserID: 9}, time.Minute)
	id, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if id.ProfileID != 9 {
		t.Errorf("ProfileID = %d, want 9", id.ProfileID)
	}
}

func TestVerifier_Rejects(t *testing.T) {
	v := auth.NewVerifier("secret")
	other := auth.NewVerifier("other-secret")

	expired, _ := v.Sign(auth.Identity{UserID: 1}, -time.Minute)
	wrongKey, _ := other.Sign(auth.Identity{UserID: 1}, time.Minute)
	noSubject, _ := v.Sign(auth.Identity{UserID: 0}, time.Minute)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"expired", expired},
		{"wrong key", wrongKey},
		{"zero subject", noSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			if !errors.Is(err, auth.ErrUnauthorized) {
				t.Errorf("Verify() error = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"", ""},
		{"Bearer", ""},
	}

	for _, tt := range tests {
		if got := auth.BearerToken(tt.header); got != tt.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := auth.FromContext(ctx); ok {
		t.Fatal("FromContext() should be empty on a bare context")
	}

	ctx = auth.WithIdentity(ctx, auth.Identity{UserID: 3})
	id, ok := auth.FromContext(ctx)
	if !ok || id.UserID != 3 {
		t.Errorf("FromContext() = %+v, %v", id, ok)
	}
}
