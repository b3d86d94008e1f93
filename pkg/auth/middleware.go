package auth

import (
	"log/slog"
	"net/http"

	"github.com/einlass-dev/einlass/pkg/observability"
)

// Middleware creates HTTP middleware from a Chain and optional RateLimiter.
// It checks the bypass list, runs the chain, rejects failed resolutions,
// injects the resolved credential into the request context, and optionally
// enforces rate limits.
//
// A failed strategy is terminal: the response is written immediately and
// never downgraded to anonymous. Anonymous resolutions pass through; the
// permission wrappers (RequireAuthenticated, RequireScopes) decide whether
// anonymous access is acceptable per endpoint.
func Middleware(chain *Chain, limiter RateLimiter, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			outcome := chain.Resolve(r.Context(), r)
			observability.ResolutionsTotal.WithLabelValues(outcomeLabel(outcome), outcome.Strategy).Inc()

			if outcome.Failed {
				slog.Warn("authentication failed",
					"strategy", outcome.Strategy,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", outcome.Err,
				)
				observability.DenialsTotal.WithLabelValues(denialClass(chain, false)).Inc()
				WriteDenied(w, chain, false)
				return
			}

			if outcome.Credential == nil || outcome.Credential.Principal == nil || outcome.Credential.Principal.Subject == "" {
				slog.Error("chain resolved credential with empty subject")
				writeJSONError(w, http.StatusInternalServerError, "server_error", "internal authentication error")
				return
			}

			if !outcome.Anonymous {
				slog.Debug("authentication succeeded",
					"subject", outcome.Credential.Principal.Subject,
					"strategy", outcome.Strategy,
					"path", r.URL.Path,
				)
			}

			if limiter != nil {
				if err := limiter.Allow(r.Context(), outcome.Credential.Principal); err != nil {
					slog.Warn("rate limit exceeded",
						"subject", outcome.Credential.Principal.Subject,
						"tier", outcome.Credential.Principal.Tier(),
					)
					observability.ThrottledTotal.WithLabelValues(outcome.Credential.Principal.Tier()).Inc()
					writeJSONError(w, http.StatusTooManyRequests, "too_many_requests", "rate limit exceeded")
					return
				}
			}

			ctx := WithCredential(r.Context(), outcome.Credential, outcome.Anonymous)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuthenticated wraps a handler and denies anonymous requests using
// the chain's designated-first-strategy rule.
func RequireAuthenticated(chain *Chain, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IsAnonymous(r.Context()) {
			observability.DenialsTotal.WithLabelValues(denialClass(chain, false)).Inc()
			WriteDenied(w, chain, false)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireScopes wraps a handler and denies requests whose principal lacks
// any of the given scopes. Anonymous requests are denied per the
// designated-first-strategy rule; authenticated requests missing a scope
// are always 403.
func RequireScopes(chain *Chain, next http.Handler, scopes ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IsAnonymous(r.Context()) {
			observability.DenialsTotal.WithLabelValues(denialClass(chain, false)).Inc()
			WriteDenied(w, chain, false)
			return
		}

		p := PrincipalFromContext(r.Context())
		for _, scope := range scopes {
			if !p.HasScope(scope) {
				observability.DenialsTotal.WithLabelValues("403").Inc()
				WriteDenied(w, chain, true)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/readyz", "/metrics"}

func outcomeLabel(o Outcome) string {
	switch {
	case o.Failed:
		return "failed"
	case o.Anonymous:
		return "anonymous"
	default:
		return "bound"
	}
}

func denialClass(chain *Chain, authenticated bool) string {
	if !authenticated && chain.Challenge() != "" {
		return "401"
	}
	return "403"
}
