package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crimewatch/backend/internal/db"
	"crimewatch/backend/internal/session/domain"
)

// PostgresRepository persists refresh sessions in Postgres. Rotation relies on
// a single conditional UPDATE keyed by the old token hash, so two racing
// rotations on one token produce exactly one winner without any in-process lock.
type PostgresRepository struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// NewPostgresRepository returns a session repository backed by the given pool.
func NewPostgresRepository(pool *pgxpool.Pool, queryTimeout time.Duration) *PostgresRepository {
	if queryTimeout <= 0 {
		queryTimeout = 3 * time.Second
	}
	return &PostgresRepository{pool: pool, queryTimeout: queryTimeout}
}

// GetByTokenHash returns the session whose current token hashes to hash, or
// nil if not found. Revoked rows are returned; the ledger decides what they mean.
func (r *PostgresRepository) GetByTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, token_hash, rotation_count, session_start, issued_at, revoked_at, created_at
		FROM refresh_sessions
		WHERE token_hash = $1
	`, hash)
	return scanSession(row)
}

// Create persists the session. The session must have ID and TokenHash set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO refresh_sessions (id, user_id, token_hash, rotation_count, session_start, issued_at, revoked_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.ID, s.UserID, s.TokenHash, s.RotationCount, s.SessionStart, s.IssuedAt, s.RevokedAt, s.CreatedAt)
	return db.Classify(err)
}

// ReplaceToken performs the compare-and-swap rotation write. The WHERE clause
// keys on the old token hash, so a concurrent rotation that already swapped the
// value makes this update match zero rows and the caller sees nil.
func (r *PostgresRepository) ReplaceToken(ctx context.Context, oldHash, newHash string, issuedAt time.Time) (*domain.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	row := r.pool.QueryRow(ctx, `
		UPDATE refresh_sessions
		SET token_hash = $2, rotation_count = rotation_count + 1, issued_at = $3
		WHERE token_hash = $1 AND revoked_at IS NULL
		RETURNING id, user_id, token_hash, rotation_count, session_start, issued_at, revoked_at, created_at
	`, oldHash, newHash, issuedAt)
	return scanSession(row)
}

// RevokeByTokenHash marks the session holding hash as revoked. Idempotent:
// unknown or already-revoked tokens are not an error.
func (r *PostgresRepository) RevokeByTokenHash(ctx context.Context, hash string) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	_, err := r.pool.Exec(ctx, `
		UPDATE refresh_sessions
		SET revoked_at = $2
		WHERE token_hash = $1 AND revoked_at IS NULL
	`, hash, time.Now().UTC())
	return db.Classify(err)
}

// RevokeByID marks the session with the given id as revoked.
func (r *PostgresRepository) RevokeByID(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	_, err := r.pool.Exec(ctx, `
		UPDATE refresh_sessions
		SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL
	`, id, time.Now().UTC())
	return db.Classify(err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.ID, &s.UserID, &s.TokenHash, &s.RotationCount, &s.SessionStart, &s.IssuedAt, &s.RevokedAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, db.Classify(err)
	}
	return &s, nil
}
