// Package middleware implements the request gate: bearer-token authentication,
// per-route authorization, request logging, and client IP resolution.
package middleware

import (
	"context"

	"crimewatch/backend/internal/security"
)

type contextKey int

const claimsKey contextKey = iota

// WithClaims returns a context carrying the verified access-token claims.
func WithClaims(ctx context.Context, claims *security.AccessClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaims returns the claims stored by WithClaims, or nil when the request
// was not authenticated.
func GetClaims(ctx context.Context) *security.AccessClaims {
	claims, _ := ctx.Value(claimsKey).(*security.AccessClaims)
	return claims
}
