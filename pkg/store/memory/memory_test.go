package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/einlass-dev/einlass/pkg/store"
)

func TestAddAndGetUser(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.AddUser(store.User{
		Username:     "alice",
		PasswordHash: "$2a$10$hash",
		Scopes:       []string{"read"},
		Metadata:     map[string]string{"tier": "premium"},
	})

	got, err := s.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.Username != "alice" {
		t.Errorf("Username = %q, want %q", got.Username, "alice")
	}
	if got.PasswordHash != "$2a$10$hash" {
		t.Errorf("PasswordHash = %q, want stored hash", got.PasswordHash)
	}
	if len(got.Scopes) != 1 || got.Scopes[0] != "read" {
		t.Errorf("Scopes = %v, want [read]", got.Scopes)
	}
	if got.Metadata["tier"] != "premium" {
		t.Errorf("Metadata[tier] = %q, want %q", got.Metadata["tier"], "premium")
	}
}

func TestGetUserNotFound(t *testing.T) {
	s := New()

	_, err := s.GetUser(context.Background(), "nobody")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetUser = %v, want ErrNotFound", err)
	}
}

func TestAddAndGetToken(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.AddToken(store.Token{Key: "abc", Subject: "alice"})

	got, err := s.GetToken(ctx, "abc")
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if got.Subject != "alice" {
		t.Errorf("Subject = %q, want %q", got.Subject, "alice")
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not defaulted")
	}
}

func TestGetTokenNotFound(t *testing.T) {
	s := New()

	_, err := s.GetToken(context.Background(), "nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetToken = %v, want ErrNotFound", err)
	}
}

func TestGetOrCreateTokenIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, err := s.GetOrCreateToken(ctx, "alice", "key-one")
	if err != nil {
		t.Fatalf("GetOrCreateToken failed: %v", err)
	}
	if first.Key != "key-one" {
		t.Errorf("Key = %q, want %q", first.Key, "key-one")
	}

	// A second call with a fresh key returns the existing token.
	second, err := s.GetOrCreateToken(ctx, "alice", "key-two")
	if err != nil {
		t.Fatalf("GetOrCreateToken failed: %v", err)
	}
	if second.Key != "key-one" {
		t.Errorf("Key = %q, want existing %q", second.Key, "key-one")
	}
}

func TestGetOrCreateTokenAfterRevoke(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, _ := s.GetOrCreateToken(ctx, "alice", "key-one")
	if err := s.RevokeToken(ctx, first.Key); err != nil {
		t.Fatalf("RevokeToken failed: %v", err)
	}

	second, err := s.GetOrCreateToken(ctx, "alice", "key-two")
	if err != nil {
		t.Fatalf("GetOrCreateToken failed: %v", err)
	}
	if second.Key != "key-two" {
		t.Errorf("Key = %q, want fresh token after revocation", second.Key)
	}
}

func TestRevokeToken(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.AddToken(store.Token{Key: "abc", Subject: "alice"})

	if err := s.RevokeToken(ctx, "abc"); err != nil {
		t.Fatalf("RevokeToken failed: %v", err)
	}

	got, err := s.GetToken(ctx, "abc")
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if !got.Revoked {
		t.Error("token not marked revoked")
	}

	if err := s.RevokeToken(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("RevokeToken unknown = %v, want ErrNotFound", err)
	}
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.AddUser(store.User{Username: "alice", PasswordHash: "h"})

	got, _ := s.GetUser(ctx, "alice")
	got.PasswordHash = "tampered"

	again, _ := s.GetUser(ctx, "alice")
	if again.PasswordHash != "h" {
		t.Error("mutating a returned record changed stored state")
	}
}
