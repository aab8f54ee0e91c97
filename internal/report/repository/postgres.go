package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crimewatch/backend/internal/db"
	"crimewatch/backend/internal/report/domain"
)

const defaultListLimit = 50

// PostgresRepository persists reports in Postgres. Every query is bounded by
// queryTimeout; timeouts surface as db.ErrTransient.
type PostgresRepository struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// NewPostgresRepository returns a report repository backed by the given pool.
func NewPostgresRepository(pool *pgxpool.Pool, queryTimeout time.Duration) *PostgresRepository {
	if queryTimeout <= 0 {
		queryTimeout = 3 * time.Second
	}
	return &PostgresRepository{pool: pool, queryTimeout: queryTimeout}
}

const reportColumns = `id, created_by, crime_type, description, latitude, longitude, occurred_at, created_at, updated_at`

// GetByID returns the report for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	row := r.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id)
	return scanReport(row)
}

// List returns reports newest first.
func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]*domain.Report, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	rows, err := r.pool.Query(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	return collectReports(rows)
}

// ListByCreator returns the reports created by userID, newest first.
func (r *PostgresRepository) ListByCreator(ctx context.Context, userID string, limit, offset int) ([]*domain.Report, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	rows, err := r.pool.Query(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE created_by = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	return collectReports(rows)
}

// Create persists the report. The report must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, rep *domain.Report) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reports (id, created_by, crime_type, description, latitude, longitude, occurred_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rep.ID, rep.CreatedBy, rep.CrimeType, rep.Description, rep.Latitude, rep.Longitude, rep.OccurredAt, rep.CreatedAt, rep.UpdatedAt)
	return db.Classify(err)
}

// Update rewrites the mutable fields of the report.
func (r *PostgresRepository) Update(ctx context.Context, rep *domain.Report) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	_, err := r.pool.Exec(ctx, `
		UPDATE reports
		SET crime_type = $2, description = $3, latitude = $4, longitude = $5, occurred_at = $6, updated_at = $7
		WHERE id = $1
	`, rep.ID, rep.CrimeType, rep.Description, rep.Latitude, rep.Longitude, rep.OccurredAt, rep.UpdatedAt)
	return db.Classify(err)
}

// Delete removes the report. Deleting a missing report is not an error.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	_, err := r.pool.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id)
	return db.Classify(err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*domain.Report, error) {
	var rep domain.Report
	err := row.Scan(&rep.ID, &rep.CreatedBy, &rep.CrimeType, &rep.Description, &rep.Latitude, &rep.Longitude, &rep.OccurredAt, &rep.CreatedAt, &rep.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, db.Classify(err)
	}
	return &rep, nil
}

func collectReports(rows pgx.Rows) ([]*domain.Report, error) {
	reports := make([]*domain.Report, 0)
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err)
	}
	return reports, nil
}
