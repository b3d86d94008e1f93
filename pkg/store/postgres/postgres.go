// Package postgres provides a PostgreSQL implementation of the user and
// token stores. It uses pgx/v5 for connection pooling.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/einlass-dev/einlass/pkg/store"
)

// Store is a PostgreSQL-backed UserStore and TokenStore.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements both interfaces at compile time.
var (
	_ store.UserStore  = (*Store)(nil)
	_ store.TokenStore = (*Store)(nil)
)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// GetUser retrieves a user record by username.
func (s *Store) GetUser(ctx context.Context, username string) (*store.User, error) {
	var u store.User
	err := s.pool.QueryRow(ctx, `
		SELECT username, password_hash, scopes, metadata
		FROM users
		WHERE username = $1
	`, username).Scan(&u.Username, &u.PasswordHash, &u.Scopes, &u.Metadata)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: querying user: %w", store.ErrUnavailable, err)
	}

	return &u, nil
}

// CreateUser inserts a user record. Used by provisioning tooling and tests.
func (s *Store) CreateUser(ctx context.Context, u store.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (username, password_hash, scopes, metadata)
		VALUES ($1, $2, $3, $4)
	`, u.Username, u.PasswordHash, u.Scopes, u.Metadata)

	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("user %q already exists", u.Username)
		}
		return fmt.Errorf("%w: inserting user: %w", store.ErrUnavailable, err)
	}
	return nil
}

// GetToken retrieves a token record by key.
func (s *Store) GetToken(ctx context.Context, key string) (*store.Token, error) {
	var t store.Token
	err := s.pool.QueryRow(ctx, `
		SELECT key, subject, created_at, revoked
		FROM tokens
		WHERE key = $1
	`, key).Scan(&t.Key, &t.Subject, &t.CreatedAt, &t.Revoked)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: querying token: %w", store.ErrUnavailable, err)
	}

	return &t, nil
}

// GetOrCreateToken returns the subject's live token, inserting one with
// the supplied key if none exists. A concurrent insert for the same
// subject loses the unique-index race and re-reads the winner's row.
func (s *Store) GetOrCreateToken(ctx context.Context, subject, key string) (*store.Token, error) {
	if t, err := s.tokenBySubject(ctx, subject); err == nil {
		return t, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO tokens (key, subject, created_at, revoked)
		VALUES ($1, $2, now(), false)
	`, key, subject)

	if err != nil {
		if isDuplicateKey(err) {
			return s.tokenBySubject(ctx, subject)
		}
		return nil, fmt.Errorf("%w: inserting token: %w", store.ErrUnavailable, err)
	}

	return s.GetToken(ctx, key)
}

// tokenBySubject retrieves the subject's non-revoked token.
func (s *Store) tokenBySubject(ctx context.Context, subject string) (*store.Token, error) {
	var t store.Token
	err := s.pool.QueryRow(ctx, `
		SELECT key, subject, created_at, revoked
		FROM tokens
		WHERE subject = $1 AND NOT revoked
	`, subject).Scan(&t.Key, &t.Subject, &t.CreatedAt, &t.Revoked)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: querying token by subject: %w", store.ErrUnavailable, err)
	}

	return &t, nil
}

// RevokeToken marks the token with the given key as revoked.
func (s *Store) RevokeToken(ctx context.Context, key string) error {
	result, err := s.pool.Exec(ctx,
		"UPDATE tokens SET revoked = true WHERE key = $1 AND NOT revoked", key)
	if err != nil {
		return fmt.Errorf("%w: revoking token: %w", store.ErrUnavailable, err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	return nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
