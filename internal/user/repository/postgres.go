package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crimewatch/backend/internal/db"
	"crimewatch/backend/internal/user/domain"
)

// PostgresRepository persists users in Postgres. Every query is bounded by
// queryTimeout; timeouts surface as db.ErrTransient.
type PostgresRepository struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// NewPostgresRepository returns a user repository backed by the given pool.
func NewPostgresRepository(pool *pgxpool.Pool, queryTimeout time.Duration) *PostgresRepository {
	if queryTimeout <= 0 {
		queryTimeout = 3 * time.Second
	}
	return &PostgresRepository{pool: pool, queryTimeout: queryTimeout}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, COALESCE(name, ''), password_hash, active, superadmin, COALESCE(parent_id, ''), created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

// GetByEmail returns the user with the given email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, COALESCE(name, ''), password_hash, active, superadmin, COALESCE(parent_id, ''), created_at, updated_at
		FROM users
		WHERE lower(email) = lower($1)
	`, email)
	return scanUser(row)
}

// Create persists the user. The user must have ID set; it is not assigned here.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	var parent any
	if u.ParentID != "" {
		parent = u.ParentID
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, email, name, password_hash, active, superadmin, parent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, u.ID, u.Email, u.Name, u.PasswordHash, u.Active, u.Superadmin, parent, u.CreatedAt, u.UpdatedAt)
	return db.Classify(err)
}

// GetParentID returns the parent account id for a delegated sub-user, or ""
// when the user has no parent or does not exist.
func (r *PostgresRepository) GetParentID(ctx context.Context, id string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	var parent string
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(parent_id, '') FROM users WHERE id = $1
	`, id).Scan(&parent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", db.Classify(err)
	}
	return parent, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Active, &u.Superadmin, &u.ParentID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, db.Classify(err)
	}
	return &u, nil
}
