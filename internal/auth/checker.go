package auth

import "context"

var _ Checker = (*LoginChecker)(nil)
var _ Checker = (*LoginTestChecker)(nil)

type Checker interface {
	IsLogged(ctx context.Context, token string) (bool, error)
	// LoggedOwner resolves the owner id bound to a live session token.
	// Returns ErrNotLoggedIn for unknown or expired tokens.
	LoggedOwner(ctx context.Context, token string) (string, error)
}
