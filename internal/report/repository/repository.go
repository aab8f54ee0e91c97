// Package repository persists crime reports.
package repository

import (
	"context"

	"crimewatch/backend/internal/report/domain"
)

// Repository is the storage interface for crime reports.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Report, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Report, error)
	ListByCreator(ctx context.Context, userID string, limit, offset int) ([]*domain.Report, error)
	Create(ctx context.Context, r *domain.Report) error
	Update(ctx context.Context, r *domain.Report) error
	Delete(ctx context.Context, id string) error
}
