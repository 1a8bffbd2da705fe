// Package auth models authenticated callers and their server-side sessions.
package auth

import "context"

// Principal is the authenticated caller of a domain operation. Services take
// it as an explicit argument and never accept a user id from request input.
type Principal struct {
	UserID   string
	Username string
	IsAdmin  bool
}

// Authenticated reports whether the principal represents a logged-in user.
func (p Principal) Authenticated() bool {
	return p.UserID != ""
}

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom extracts the principal stored by WithPrincipal. The zero
// Principal is returned for anonymous requests.
func PrincipalFrom(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}
