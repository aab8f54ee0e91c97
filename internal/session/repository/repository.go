package repository

import (
	"context"
	"time"

	"crimewatch/backend/internal/session/domain"
)

// Repository defines persistence for refresh sessions. The store must provide
// atomic conditional update (ReplaceToken) and point lookup; the ledger builds
// everything else on top.
type Repository interface {
	// GetByTokenHash returns the session whose current token hashes to hash,
	// revoked or not, or nil if no such row exists.
	GetByTokenHash(ctx context.Context, hash string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	// ReplaceToken atomically swaps the current token value: it updates the row
	// keyed by oldHash (and not revoked) to newHash, increments the rotation
	// count, and sets issuedAt. Returns the updated session, or nil if no row
	// matched — the token was already rotated, revoked, or never existed.
	ReplaceToken(ctx context.Context, oldHash, newHash string, issuedAt time.Time) (*domain.Session, error)
	// RevokeByTokenHash marks the session holding hash as revoked. Revoking an
	// unknown or already-revoked token is not an error.
	RevokeByTokenHash(ctx context.Context, hash string) error
	// RevokeByID marks the session with the given id as revoked.
	RevokeByID(ctx context.Context, id string) error
}
