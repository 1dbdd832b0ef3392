package auth

import (
	"context"
	"sync"
)

// LoginTestChecker is an in-memory Checker used in unit tests.
type LoginTestChecker struct {
	mu     sync.RWMutex
	Tokens map[string]string // token -> owner id
}

func NewLoginTestChecker() *LoginTestChecker {
	return &LoginTestChecker{
		Tokens: make(map[string]string),
	}
}

func (tc *LoginTestChecker) AddToken(token, owner string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.Tokens[token] = owner
}

func (tc *LoginTestChecker) IsLogged(_ context.Context, token string) (bool, error) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	_, ok := tc.Tokens[token]
	return ok, nil
}

func (tc *LoginTestChecker) LoggedOwner(_ context.Context, token string) (string, error) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	owner, ok := tc.Tokens[token]
	if !ok {
		return "", ErrNotLoggedIn
	}
	return owner, nil
}
