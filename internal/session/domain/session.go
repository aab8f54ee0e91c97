package domain

import "time"

// Session is one refresh-token lineage: the chain of rotated token values
// tracing back to a single login. The row is mutated in place on rotation —
// TokenHash is swapped and RotationCount incremented atomically — so at most
// one token value is ever valid per lineage.
type Session struct {
	ID            string
	UserID        string
	TokenHash     string // SHA-256 of the current refresh token; the raw value is never stored
	RotationCount int
	SessionStart  time.Time // login time; the absolute session-age clock
	IssuedAt      time.Time // when the current token value was issued
	RevokedAt     *time.Time
	CreatedAt     time.Time
}

// Revoked reports whether the session has been terminated.
func (s *Session) Revoked() bool {
	return s.RevokedAt != nil
}
