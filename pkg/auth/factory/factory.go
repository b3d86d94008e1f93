// Package factory builds authentication chains from configuration
// identifiers and shared collaborators (stores, session manager).
package factory

import (
	"fmt"

	"github.com/einlass-dev/einlass/pkg/auth"
	"github.com/einlass-dev/einlass/pkg/auth/basic"
	"github.com/einlass-dev/einlass/pkg/auth/jwt"
	"github.com/einlass-dev/einlass/pkg/auth/remote"
	"github.com/einlass-dev/einlass/pkg/auth/session"
	"github.com/einlass-dev/einlass/pkg/auth/token"
	"github.com/einlass-dev/einlass/pkg/config"
	"github.com/einlass-dev/einlass/pkg/store"
)

// Deps are the shared collaborators strategies are built around.
type Deps struct {
	Users    store.UserStore
	Tokens   store.TokenStore
	Sessions *session.Manager
}

// NewChain builds a chain from an ordered list of strategy identifiers.
// Order is preserved: the first identifier becomes the designated
// strategy whose challenge decides 401 vs 403 on denial.
func NewChain(cfg *config.AuthConfig, ids []string, deps Deps) (*auth.Chain, error) {
	strategies := make([]auth.Strategy, 0, len(ids))
	for _, id := range ids {
		s, err := newStrategy(cfg, id, deps)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, s)
	}

	anon := auth.Credential{
		Principal: &auth.Principal{Subject: cfg.Anonymous.Principal},
	}
	if len(cfg.Anonymous.Context) > 0 {
		anon.Context = cfg.Anonymous.Context
	}

	return &auth.Chain{Strategies: strategies, Anonymous: anon}, nil
}

// Chains builds the process-wide default chain and the per-endpoint
// overrides, keyed by path.
func Chains(cfg *config.AuthConfig, deps Deps) (*auth.Chain, map[string]*auth.Chain, error) {
	def, err := NewChain(cfg, cfg.Chain, deps)
	if err != nil {
		return nil, nil, fmt.Errorf("building default chain: %w", err)
	}

	overrides := make(map[string]*auth.Chain, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		c, err := NewChain(cfg, ep.Chain, deps)
		if err != nil {
			return nil, nil, fmt.Errorf("building chain for %s: %w", ep.Path, err)
		}
		overrides[ep.Path] = c
	}

	return def, overrides, nil
}

// newStrategy constructs one strategy by identifier.
func newStrategy(cfg *config.AuthConfig, id string, deps Deps) (auth.Strategy, error) {
	switch id {
	case "basic":
		return basic.New(deps.Users, cfg.Realm), nil
	case "token":
		return token.New(deps.Tokens, deps.Users, cfg.TokenKeyword), nil
	case "session":
		if deps.Sessions == nil {
			return nil, fmt.Errorf("strategy %q requires a session manager", id)
		}
		return session.New(deps.Sessions, deps.Users), nil
	case "remote":
		return remote.New(cfg.RemoteHeader), nil
	case "jwt":
		return jwt.New(jwt.Config{
			Issuer:      cfg.JWT.Issuer,
			Audience:    cfg.JWT.Audience,
			JWKSURL:     cfg.JWT.JWKSURL,
			Realm:       cfg.Realm,
			UserClaim:   cfg.JWT.UserClaim,
			ScopesClaim: cfg.JWT.ScopesClaim,
			CacheTTL:    cfg.JWT.CacheTTL,
		}), nil
	default:
		return nil, fmt.Errorf("unknown strategy identifier %q", id)
	}
}
