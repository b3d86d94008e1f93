package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when a user or token does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable is returned when the backing store cannot be reached.
	// It is distinct from ErrNotFound so that strategies can tell a missing
	// credential apart from a transient infrastructure failure.
	ErrUnavailable = errors.New("store unavailable")
)

// User is a stored account record used by the basic strategy and the
// token-obtain endpoint.
type User struct {
	// Username is the unique login name.
	Username string

	// PasswordHash is the bcrypt hash of the user's password.
	// Plaintext passwords are never stored.
	PasswordHash string

	// Scopes lists the authorization scopes granted to the user.
	Scopes []string

	// Metadata carries deployment-specific data (e.g. a service tier).
	Metadata map[string]string
}

// Token is a persisted opaque API token owned by a user.
type Token struct {
	// Key is the opaque token string compared exactly against the
	// Authorization header value.
	Key string

	// Subject is the username of the token's owner.
	Subject string

	// CreatedAt is when the token was issued.
	CreatedAt time.Time

	// Revoked marks the token as no longer usable. Revoked tokens are
	// treated the same as unknown keys by the token strategy.
	Revoked bool
}

// UserStore looks up account records.
type UserStore interface {
	// GetUser returns the user with the given username, or ErrNotFound.
	GetUser(ctx context.Context, username string) (*User, error)
}

// TokenStore persists opaque API tokens.
type TokenStore interface {
	// GetToken returns the token with the given key, or ErrNotFound.
	GetToken(ctx context.Context, key string) (*Token, error)

	// GetOrCreateToken returns the existing token for subject, creating
	// one with the supplied key if none exists. The returned token is the
	// stored one, so callers observe the original key on repeat calls.
	GetOrCreateToken(ctx context.Context, subject, key string) (*Token, error)

	// RevokeToken marks the token with the given key as revoked.
	// Returns ErrNotFound if no such token exists.
	RevokeToken(ctx context.Context, key string) error
}
