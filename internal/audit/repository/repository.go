package repository

import (
	"context"

	"crimewatch/backend/internal/audit/domain"
)

// Repository defines persistence for audit entries.
type Repository interface {
	Create(ctx context.Context, e *domain.Entry) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Entry, error)
}
