package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"crimewatch/backend/internal/db"
	"crimewatch/backend/internal/rbac/domain"
)

// PostgresRepository persists roles and grants in Postgres.
type PostgresRepository struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// NewPostgresRepository returns an RBAC repository backed by the given pool.
func NewPostgresRepository(pool *pgxpool.Pool, queryTimeout time.Duration) *PostgresRepository {
	if queryTimeout <= 0 {
		queryTimeout = 3 * time.Second
	}
	return &PostgresRepository{pool: pool, queryTimeout: queryTimeout}
}

// RoleNamesByUser returns the names of all roles assigned to the user.
func (r *PostgresRepository) RoleNamesByUser(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	rows, err := r.pool.Query(ctx, `
		SELECT r.name
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name
	`, userID)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, db.Classify(err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err)
	}
	return names, nil
}

// HasGrant reports whether any of the named roles holds a grant for
// (module, permission). A plain membership test over the join relation.
func (r *PostgresRepository) HasGrant(ctx context.Context, roleNames []string, module, permission string) (bool, error) {
	if len(roleNames) == 0 {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM role_grants g
			JOIN roles r ON r.id = g.role_id
			WHERE r.name = ANY($1) AND g.module = $2 AND g.permission = $3
		)
	`, roleNames, module, permission).Scan(&exists)
	if err != nil {
		return false, db.Classify(err)
	}
	return exists, nil
}

// CreateRole persists the role. The role must have ID set.
func (r *PostgresRepository) CreateRole(ctx context.Context, role *domain.Role) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO roles (id, name, created_at) VALUES ($1, $2, $3)
	`, role.ID, role.Name, role.CreatedAt)
	return db.Classify(err)
}

// AssignRole links the user to the role. Assigning twice is a no-op.
func (r *PostgresRepository) AssignRole(ctx context.Context, userID, roleID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, userID, roleID)
	return db.Classify(err)
}

// AddGrant inserts a (role, module, permission) grant. Adding an existing
// grant is a no-op, preserving triple uniqueness.
func (r *PostgresRepository) AddGrant(ctx context.Context, g *domain.Grant) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO role_grants (role_id, module, permission) VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, g.RoleID, g.Module, g.Permission)
	return db.Classify(err)
}

// RemoveGrant deletes a grant. Removing a missing grant is a no-op.
func (r *PostgresRepository) RemoveGrant(ctx context.Context, g *domain.Grant) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	_, err := r.pool.Exec(ctx, `
		DELETE FROM role_grants WHERE role_id = $1 AND module = $2 AND permission = $3
	`, g.RoleID, g.Module, g.Permission)
	return db.Classify(err)
}
