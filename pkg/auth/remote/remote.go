// Package remote provides an authentication strategy that trusts an
// identity header injected by an upstream SSO-terminating gateway.
//
// Only deploy it behind infrastructure that strips the header from
// client-supplied requests; the strategy itself performs no validation.
package remote

import (
	"context"
	"net/http"

	"github.com/einlass-dev/einlass/pkg/auth"
)

// DefaultHeader is the identity header consulted when none is configured.
const DefaultHeader = "X-Remote-User"

// Strategy binds the principal named by a trusted gateway header.
type Strategy struct {
	header string
}

var _ auth.Strategy = (*Strategy)(nil)

// New creates a remote-user strategy reading the given header.
// If header is empty, DefaultHeader is used.
func New(header string) *Strategy {
	if header == "" {
		header = DefaultHeader
	}
	return &Strategy{header: header}
}

// Name identifies the strategy in logs and metrics.
func (*Strategy) Name() string { return "remote" }

// Challenge returns empty: there is nothing a client can do to satisfy a
// gateway-injected header.
func (*Strategy) Challenge() string { return "" }

// Resolve binds the header value as the subject. An absent or empty
// header is Unresolved; this strategy never fails.
func (s *Strategy) Resolve(_ context.Context, r *http.Request) auth.Result {
	subject := r.Header.Get(s.header)
	if subject == "" {
		return auth.Result{Decision: auth.Unresolved}
	}

	return auth.Result{
		Decision: auth.Bound,
		Credential: &auth.Credential{
			Principal: &auth.Principal{Subject: subject},
		},
	}
}
