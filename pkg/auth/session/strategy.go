package session

import (
	"context"
	"net/http"

	"github.com/einlass-dev/einlass/pkg/auth"
	"github.com/einlass-dev/einlass/pkg/store"
)

// Strategy reuses an existing server-side session's bound principal.
//
// It defines no challenge, so an endpoint whose chain starts with this
// strategy reports denials as 403. The anti-forgery check for
// state-mutating methods is a precondition performed by the CSRF
// middleware, outside this strategy.
type Strategy struct {
	manager *Manager
	users   store.UserStore
}

var _ auth.Strategy = (*Strategy)(nil)

// New creates a session strategy. users may be nil; it is only consulted
// to enrich the bound principal with scopes and metadata.
func New(manager *Manager, users store.UserStore) *Strategy {
	return &Strategy{manager: manager, users: users}
}

// Name identifies the strategy in logs and metrics.
func (*Strategy) Name() string { return "session" }

// Challenge returns empty: the session strategy defines no challenge.
func (*Strategy) Challenge() string { return "" }

// Resolve binds the session's principal when a valid session cookie is
// present. An absent, unknown, or expired cookie is Unresolved rather
// than Failed: a stale cookie is indistinguishable from no credentials
// and must not short-circuit the rest of the chain.
func (s *Strategy) Resolve(ctx context.Context, r *http.Request) auth.Result {
	sess := s.manager.FromRequest(r)
	if sess == nil {
		return auth.Result{Decision: auth.Unresolved}
	}

	principal := &auth.Principal{Subject: sess.Subject}
	if s.users != nil {
		if user, err := s.users.GetUser(ctx, sess.Subject); err == nil {
			principal.Scopes = user.Scopes
			principal.Metadata = user.Metadata
		}
	}

	return auth.Result{
		Decision:   auth.Bound,
		Credential: &auth.Credential{Principal: principal},
	}
}
