package auth

import "context"

type ownerCtxKey struct{}

// ContextWithOwner attaches the logged in owner id to the request context.
func ContextWithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerCtxKey{}, owner)
}

// OwnerFromContext returns the owner id set by the auth middleware, or
// an empty string when the request was not authenticated.
func OwnerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerCtxKey{}).(string)
	return owner
}
