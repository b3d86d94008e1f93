package auth

import (
	"context"
	"errors"
	"net/http"
)

// Decision represents the three possible outcomes of a single strategy.
type Decision int

const (
	// Unresolved means this strategy cannot handle the request's
	// credentials. The chain continues to the next strategy.
	Unresolved Decision = iota

	// Bound means credentials are valid. The chain stops and the
	// credential is used.
	Bound

	// Failed means credentials are present but invalid. The chain stops
	// and the request is rejected. It is never downgraded to anonymous.
	Failed
)

// Principal is the resolved identity of the request's caller.
type Principal struct {
	// Subject is the unique identifier (required, non-empty).
	Subject string

	// Scopes lists the authorization scopes granted.
	Scopes []string

	// Metadata carries strategy-specific data. The key "tier" selects
	// the throttle tier.
	Metadata map[string]string
}

// Tier returns the throttle tier from metadata, or empty string.
func (p *Principal) Tier() string {
	if p == nil || p.Metadata == nil {
		return ""
	}
	return p.Metadata["tier"]
}

// HasScope reports whether the principal was granted the given scope.
func (p *Principal) HasScope(scope string) bool {
	if p == nil {
		return false
	}
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Credential pairs a principal with scheme-specific auxiliary data.
// Context is nil when the strategy has nothing to attach (e.g. sessions);
// the token strategy attaches the matched *store.Token record.
type Credential struct {
	Principal *Principal
	Context   any
}

// Result carries the outcome of one strategy's resolution attempt.
type Result struct {
	Decision   Decision
	Credential *Credential // populated only when Decision == Bound
	Err        error       // populated only when Decision == Failed
}

// Strategy examines request credentials and returns a tri-state result.
//
// Resolve must return Unresolved when the request carries no credentials
// this strategy understands; returning Failed in that case would wrongly
// short-circuit the rest of the chain.
//
// Challenge returns the value for the WWW-Authenticate header, or empty
// string if the strategy defines no challenge.
type Strategy interface {
	Resolve(ctx context.Context, r *http.Request) Result
	Challenge() string
}

// Named is an optional interface strategies may implement to identify
// themselves in logs and metrics.
type Named interface {
	Name() string
}

// Sentinel errors.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("access denied")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// AnonymousPrincipal is the default principal bound when no strategy
// resolves and none fails. Overridable via Chain.Anonymous.
var AnonymousPrincipal = Principal{Subject: "anonymous"}

// Chain evaluates strategies in order and short-circuits on the first
// Bound or Failed result.
type Chain struct {
	// Strategies are evaluated left to right. Order is significant and
	// fixed at configuration time.
	Strategies []Strategy

	// Anonymous is the credential used when every strategy returns
	// Unresolved. If its Principal is nil, AnonymousPrincipal is used.
	Anonymous Credential
}

// Outcome is the terminal result of running a chain.
type Outcome struct {
	// Credential is the bound or anonymous credential. Nil when Failed.
	Credential *Credential

	// Anonymous is true when no strategy resolved and none failed.
	Anonymous bool

	// Failed is true when a strategy rejected presented credentials.
	Failed bool

	// Challenge is the failing strategy's challenge, if any. The HTTP
	// response class for a denial does not depend on it; see WriteDenied.
	Challenge string

	// Strategy names the strategy that decided the outcome, or empty
	// when the outcome is anonymous.
	Strategy string

	// Err is the failing strategy's error.
	Err error
}

// Resolve runs the chain. The first Bound or Failed result stops
// iteration; later strategies are never consulted. If every strategy
// abstains, the anonymous credential is returned.
func (c *Chain) Resolve(ctx context.Context, r *http.Request) Outcome {
	for _, s := range c.Strategies {
		result := s.Resolve(ctx, r)
		switch result.Decision {
		case Bound:
			return Outcome{
				Credential: result.Credential,
				Strategy:   strategyName(s),
			}
		case Failed:
			return Outcome{
				Failed:    true,
				Challenge: s.Challenge(),
				Strategy:  strategyName(s),
				Err:       result.Err,
			}
		}
	}

	anon := c.Anonymous
	if anon.Principal == nil {
		p := AnonymousPrincipal
		anon.Principal = &p
	}
	return Outcome{Credential: &anon, Anonymous: true}
}

// Challenge returns the first configured strategy's challenge, or empty
// string for an empty chain. This is the designated challenge used to
// pick between 401 and 403 when a request is later denied, regardless of
// which strategy actually produced the failure.
func (c *Chain) Challenge() string {
	if len(c.Strategies) == 0 {
		return ""
	}
	return c.Strategies[0].Challenge()
}

func strategyName(s Strategy) string {
	if n, ok := s.(Named); ok {
		return n.Name()
	}
	return "custom"
}
