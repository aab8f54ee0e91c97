// Package session implements the refresh-token ledger: database-backed
// sessions whose opaque token values rotate on every use, bounded by a
// rotation cap and an absolute session age.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"crimewatch/backend/internal/security"
	"crimewatch/backend/internal/session/domain"
	"crimewatch/backend/internal/session/repository"
)

// Sentinel errors for ledger operations; all three force re-login and must
// never be retried by callers.
var (
	// ErrTokenNotFound is returned when a refresh token is unknown, already
	// rotated, or revoked. On a previously valid value this signals possible
	// replay of a stolen token.
	ErrTokenNotFound = errors.New("refresh token not found")
	// ErrRotationLimitExceeded is returned when a rotation would exceed the
	// cap; the lineage is revoked.
	ErrRotationLimitExceeded = errors.New("refresh rotation limit exceeded")
	// ErrSessionExpired is returned when the lineage is older than the
	// absolute session age; the lineage is revoked.
	ErrSessionExpired = errors.New("session expired")
)

// Ledger enforces the temporal invariants over a session repository. Expiry is
// checked lazily on use; there is no background sweeper.
type Ledger struct {
	repo          repository.Repository
	maxRotations  int
	maxSessionAge time.Duration
}

// NewLedger returns a Ledger with the given rotation cap and absolute session age.
func NewLedger(repo repository.Repository, maxRotations int, maxSessionAge time.Duration) *Ledger {
	return &Ledger{repo: repo, maxRotations: maxRotations, maxSessionAge: maxSessionAge}
}

// Create opens a new lineage for the user at rotation count zero and returns
// the session plus the raw refresh token. The raw value exists only in the
// return value; storage holds its hash.
func (l *Ledger) Create(ctx context.Context, userID string) (*domain.Session, string, error) {
	token, err := security.NewRefreshToken()
	if err != nil {
		return nil, "", err
	}
	now := time.Now().UTC()
	s := &domain.Session{
		ID:            uuid.New().String(),
		UserID:        userID,
		TokenHash:     security.HashRefreshToken(token),
		RotationCount: 0,
		SessionStart:  now,
		IssuedAt:      now,
		CreatedAt:     now,
	}
	if err := l.repo.Create(ctx, s); err != nil {
		return nil, "", err
	}
	return s, token, nil
}

// Rotate swaps the lineage's token value for a fresh one and returns the
// updated session plus the new raw token. The old value never validates again:
// the swap is a single conditional write keyed by the old token hash, so of two
// concurrent rotations exactly one succeeds and the other sees ErrTokenNotFound.
func (l *Ledger) Rotate(ctx context.Context, oldToken string) (*domain.Session, string, error) {
	oldHash := security.HashRefreshToken(oldToken)
	s, err := l.repo.GetByTokenHash(ctx, oldHash)
	if err != nil {
		return nil, "", err
	}
	if s == nil || s.Revoked() {
		return nil, "", ErrTokenNotFound
	}
	if s.RotationCount+1 > l.maxRotations {
		_ = l.repo.RevokeByID(ctx, s.ID)
		return nil, "", ErrRotationLimitExceeded
	}
	if time.Now().UTC().Sub(s.SessionStart) > l.maxSessionAge {
		_ = l.repo.RevokeByID(ctx, s.ID)
		return nil, "", ErrSessionExpired
	}
	newToken, err := security.NewRefreshToken()
	if err != nil {
		return nil, "", err
	}
	updated, err := l.repo.ReplaceToken(ctx, oldHash, security.HashRefreshToken(newToken), time.Now().UTC())
	if err != nil {
		return nil, "", err
	}
	if updated == nil {
		// Lost a concurrent rotation race, or revoked between read and write.
		return nil, "", ErrTokenNotFound
	}
	return updated, newToken, nil
}

// Revoke terminates the lineage holding token. Idempotent: revoking an unknown
// or already-revoked token succeeds.
func (l *Ledger) Revoke(ctx context.Context, token string) error {
	return l.repo.RevokeByTokenHash(ctx, security.HashRefreshToken(token))
}

// FindActive returns the non-revoked session holding token, or nil if the
// token is unknown or the session was revoked.
func (l *Ledger) FindActive(ctx context.Context, token string) (*domain.Session, error) {
	s, err := l.repo.GetByTokenHash(ctx, security.HashRefreshToken(token))
	if err != nil {
		return nil, err
	}
	if s == nil || s.Revoked() {
		return nil, nil
	}
	return s, nil
}
