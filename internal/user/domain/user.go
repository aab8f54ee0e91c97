package domain

import (
	"errors"
	"time"
)

// User is the core user entity. PasswordHash is a bcrypt hash; the plaintext
// password is never stored. ParentID links a delegated sub-user to its parent
// account (one level only; sub-users of sub-users are not delegated upward).
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Active       bool
	Superadmin   bool
	ParentID     string // empty for top-level accounts
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.ParentID == u.ID && u.ID != "" {
		return errors.New("user cannot be its own parent")
	}
	return nil
}
