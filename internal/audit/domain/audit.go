package domain

import "time"

// Entry is a recorded security event.
type Entry struct {
	ID        string
	UserID    string // empty when the subject could not be resolved
	Event     string
	Detail    string
	IP        string
	CreatedAt time.Time
}

// Event names recorded by the auth and authorization layers.
const (
	EventLoginFailed    = "login_failed"
	EventRefreshReplay  = "refresh_replay"
	EventRotationLimit  = "rotation_limit_exceeded"
	EventSessionExpired = "session_expired"
	EventForbidden      = "authorization_denied"
)
