// Package auth resolves connection credentials to a platform identity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"pitchmatch/backend/internal/apperr"
	"pitchmatch/backend/internal/models"
)

// Identity is an authenticated user.
type Identity struct {
	UserID string
	Role   models.Role
}

// Resolver turns a raw token into an Identity. Unknown or invalid tokens
// yield apperr.ErrUnauthorized.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

// Chain tries each resolver in order and returns the first identity found.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, fmt.Errorf("%w: missing token", apperr.ErrUnauthorized)
	}
	for _, r := range c {
		id, err := r.Resolve(ctx, token)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, apperr.ErrUnauthorized) {
			return Identity{}, err
		}
	}
	return Identity{}, fmt.Errorf("%w: token not recognised", apperr.ErrUnauthorized)
}

// TokenFromRequest reads a bearer token from the Authorization header, falling
// back to the token query parameter that browser WebSocket clients must use.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimSpace(h[len("Bearer "):])
		}
		if strings.HasPrefix(h, "Token ") {
			return strings.TrimSpace(h[len("Token "):])
		}
	}
	return r.URL.Query().Get("token")
}
