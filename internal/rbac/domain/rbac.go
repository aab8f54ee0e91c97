package domain

import "time"

// Role is a named bundle of permission grants, assigned many-to-many to users.
type Role struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Grant allows a role to perform a permission on a module. The
// (role, module, permission) triple is unique.
type Grant struct {
	RoleID     string
	Module     string
	Permission string
}
