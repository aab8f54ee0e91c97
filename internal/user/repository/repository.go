package repository

import (
	"context"

	"crimewatch/backend/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	// GetParentID returns the parent account id for a delegated sub-user, or ""
	// if the user has no parent or does not exist.
	GetParentID(ctx context.Context, id string) (string, error)
}
