// Package token provides an opaque-token authentication strategy backed
// by a persisted token store, plus the HTTP endpoint that exchanges a
// username and password for a token.
package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/einlass-dev/einlass/pkg/auth"
	"github.com/einlass-dev/einlass/pkg/store"
)

// DefaultKeyword is the scheme token expected in the Authorization header.
const DefaultKeyword = "Token"

// ErrStoreUnavailable is returned when the token store cannot be reached.
// It is deliberately distinct from an invalid-credentials failure so that
// operators can tell the two apart in logs; the request still fails.
var ErrStoreUnavailable = errors.New("token store unavailable")

// Strategy validates "Authorization: <keyword> <key>" headers by exact
// match against a persisted token store.
type Strategy struct {
	tokens  store.TokenStore
	users   store.UserStore
	keyword string
}

var _ auth.Strategy = (*Strategy)(nil)

// New creates a token strategy. users may be nil; it is only consulted to
// enrich the bound principal with scopes and metadata. If keyword is
// empty, DefaultKeyword is used.
func New(tokens store.TokenStore, users store.UserStore, keyword string) *Strategy {
	if keyword == "" {
		keyword = DefaultKeyword
	}
	return &Strategy{tokens: tokens, users: users, keyword: keyword}
}

// Name identifies the strategy in logs and metrics.
func (*Strategy) Name() string { return "token" }

// Challenge returns the bare scheme token, no realm.
func (s *Strategy) Challenge() string { return s.keyword }

// Resolve looks up the presented key in the token store.
//
// Decision outcomes:
//   - Unresolved: no Authorization header or a different scheme
//   - Failed: unknown, revoked, or empty key; store unreachable
//   - Bound: matched token; the credential's auth-context is the
//     *store.Token record
func (s *Strategy) Resolve(ctx context.Context, r *http.Request) auth.Result {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.Result{Decision: auth.Unresolved}
	}

	key, ok := strings.CutPrefix(header, s.keyword+" ")
	if !ok {
		return auth.Result{Decision: auth.Unresolved}
	}
	if key == "" {
		return auth.Result{Decision: auth.Failed, Err: errors.New("empty token")}
	}

	record, err := s.tokens.GetToken(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return auth.Result{Decision: auth.Failed, Err: errors.New("invalid token")}
	}
	if err != nil {
		// Fail closed on transient store errors: the request is rejected
		// with a distinct error rather than silently continuing the chain.
		return auth.Result{Decision: auth.Failed, Err: fmt.Errorf("%w: %w", ErrStoreUnavailable, err)}
	}

	if record.Revoked {
		return auth.Result{Decision: auth.Failed, Err: errors.New("token revoked")}
	}

	principal := &auth.Principal{Subject: record.Subject}
	if s.users != nil {
		if user, err := s.users.GetUser(ctx, record.Subject); err == nil {
			principal.Scopes = user.Scopes
			principal.Metadata = user.Metadata
		}
	}

	return auth.Result{
		Decision: auth.Bound,
		Credential: &auth.Credential{
			Principal: principal,
			Context:   record,
		},
	}
}
