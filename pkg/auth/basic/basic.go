// Package basic provides an HTTP Basic authentication strategy that
// matches decoded credentials against a user store with bcrypt hashes.
package basic

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/einlass-dev/einlass/pkg/auth"
	"github.com/einlass-dev/einlass/pkg/store"
)

// DefaultRealm is the realm advertised in the challenge when none is
// configured.
const DefaultRealm = "api"

// Strategy validates "Authorization: Basic <base64(user:pass)>" headers
// against a user store.
type Strategy struct {
	users store.UserStore
	realm string
}

// Ensure Strategy implements the capability set at compile time.
var _ auth.Strategy = (*Strategy)(nil)

// New creates a Basic strategy backed by the given user store.
// If realm is empty, DefaultRealm is used.
func New(users store.UserStore, realm string) *Strategy {
	if realm == "" {
		realm = DefaultRealm
	}
	return &Strategy{users: users, realm: realm}
}

// Name identifies the strategy in logs and metrics.
func (*Strategy) Name() string { return "basic" }

// Challenge returns the realm-qualified scheme token.
func (s *Strategy) Challenge() string {
	return fmt.Sprintf("Basic realm=%q", s.realm)
}

// Resolve decodes the Basic header and matches it against the user store.
//
// Decision outcomes:
//   - Unresolved: no Authorization header or a different scheme
//   - Failed: malformed payload, unknown user, or wrong password
//   - Bound: matching user; the credential carries no auth-context
func (s *Strategy) Resolve(ctx context.Context, r *http.Request) auth.Result {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.Result{Decision: auth.Unresolved}
	}

	payload, ok := strings.CutPrefix(header, "Basic ")
	if !ok {
		return auth.Result{Decision: auth.Unresolved}
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return auth.Result{Decision: auth.Failed, Err: fmt.Errorf("malformed basic credentials: %w", err)}
	}

	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok || username == "" {
		return auth.Result{Decision: auth.Failed, Err: errors.New("malformed basic credentials")}
	}

	user, err := s.users.GetUser(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return auth.Result{Decision: auth.Failed, Err: errors.New("invalid credentials")}
	}
	if err != nil {
		// Transient store failure is surfaced, never treated as absent
		// credentials or downgraded to Unresolved.
		return auth.Result{Decision: auth.Failed, Err: fmt.Errorf("user lookup: %w", err)}
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return auth.Result{Decision: auth.Failed, Err: errors.New("invalid credentials")}
	}

	return auth.Result{
		Decision: auth.Bound,
		Credential: &auth.Credential{
			Principal: &auth.Principal{
				Subject:  user.Username,
				Scopes:   user.Scopes,
				Metadata: user.Metadata,
			},
		},
	}
}
