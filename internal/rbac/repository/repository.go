package repository

import (
	"context"

	"crimewatch/backend/internal/rbac/domain"
)

// Repository defines persistence for the role/module/permission relation.
// The relation is a layered many-to-many graph queried as set membership,
// never as a hierarchy.
type Repository interface {
	// RoleNamesByUser returns the names of all roles assigned to the user.
	RoleNamesByUser(ctx context.Context, userID string) ([]string, error)
	// HasGrant reports whether any of the named roles holds a grant for
	// (module, permission).
	HasGrant(ctx context.Context, roleNames []string, module, permission string) (bool, error)
	CreateRole(ctx context.Context, role *domain.Role) error
	AssignRole(ctx context.Context, userID, roleID string) error
	AddGrant(ctx context.Context, g *domain.Grant) error
	RemoveGrant(ctx context.Context, g *domain.Grant) error
}
