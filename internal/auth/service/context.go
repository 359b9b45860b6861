package service

import "context"

// Identity is the verified access-token subject attached to a request context
// by the auth guard.
type Identity struct {
	AccountID string
	Username  string
	Email     string
}

type identityContextKey struct{}

// WithIdentity returns a context carrying the verified identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the identity set by the auth guard, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}
