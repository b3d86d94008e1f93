package auth

import "context"

// credentialKey is a private type for the credential context key.
type credentialKey struct{}

// anonymousKey marks the credential as the configured anonymous default.
type anonymousKey struct{}

// WithCredential stores the resolved credential in the context. The
// anonymous flag records whether the credential is the configured default
// rather than one bound by a strategy.
func WithCredential(ctx context.Context, cred *Credential, anonymous bool) context.Context {
	ctx = context.WithValue(ctx, credentialKey{}, cred)
	return context.WithValue(ctx, anonymousKey{}, anonymous)
}

// CredentialFromContext retrieves the resolved credential.
// Returns nil if the request never passed through the auth middleware.
func CredentialFromContext(ctx context.Context) *Credential {
	if v, ok := ctx.Value(credentialKey{}).(*Credential); ok {
		return v
	}
	return nil
}

// PrincipalFromContext retrieves the resolved principal, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	if cred := CredentialFromContext(ctx); cred != nil {
		return cred.Principal
	}
	return nil
}

// AuthContextFromContext retrieves the scheme-specific auth-context
// attached by the binding strategy (e.g. the token record), or nil.
func AuthContextFromContext(ctx context.Context) any {
	if cred := CredentialFromContext(ctx); cred != nil {
		return cred.Context
	}
	return nil
}

// IsAnonymous reports whether the request resolved to the anonymous
// credential. It is also true when no credential is set at all.
func IsAnonymous(ctx context.Context) bool {
	if v, ok := ctx.Value(anonymousKey{}).(bool); ok {
		return v
	}
	return true
}
