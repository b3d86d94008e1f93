// Package auth provides the pluggable request-authentication layer for
// einlass.
//
// Authentication uses an ordered chain of strategies with a tri-state
// result: each strategy returns Bound (credential resolved), Failed
// (credentials present but invalid), or Unresolved (can't handle the
// request). The first Bound or Failed stops the chain; if every strategy
// is Unresolved the configured anonymous credential is used.
//
// The chain is evaluated by HTTP middleware which places the resolved
// principal and auth-context in the request context. Whether a later
// denial is reported as 401 or 403 depends only on the first configured
// strategy's challenge, implemented by WriteDenied.
package auth
