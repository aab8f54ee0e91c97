package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"crimewatch/backend/internal/audit/domain"
	"crimewatch/backend/internal/db"
)

// PostgresRepository persists audit entries in Postgres.
type PostgresRepository struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// NewPostgresRepository returns an audit repository backed by the given pool.
func NewPostgresRepository(pool *pgxpool.Pool, queryTimeout time.Duration) *PostgresRepository {
	if queryTimeout <= 0 {
		queryTimeout = 3 * time.Second
	}
	return &PostgresRepository{pool: pool, queryTimeout: queryTimeout}
}

// Create persists the entry.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Entry) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	var userID any
	if e.UserID != "" {
		userID = e.UserID
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_logs (id, user_id, event, detail, ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, userID, e.Event, e.Detail, e.IP, e.CreatedAt)
	return db.Classify(err)
}

// ListByUser returns the most recent entries for the user, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	rows, err := r.pool.Query(ctx, `
		SELECT id, COALESCE(user_id, ''), event, detail, ip, created_at
		FROM audit_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()

	var out []*domain.Entry
	for rows.Next() {
		var e domain.Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Event, &e.Detail, &e.IP, &e.CreatedAt); err != nil {
			return nil, db.Classify(err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err)
	}
	return out, nil
}
