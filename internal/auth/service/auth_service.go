// Package service implements the session manager: login, refresh, logout, and
// stateless access-token authentication over the token provider and the
// refresh ledger.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"crimewatch/backend/internal/audit"
	auditdomain "crimewatch/backend/internal/audit/domain"
	"crimewatch/backend/internal/db"
	"crimewatch/backend/internal/metrics"
	"crimewatch/backend/internal/security"
	"crimewatch/backend/internal/session"
	userdomain "crimewatch/backend/internal/user/domain"
)

// ErrInvalidCredentials is returned for any login failure — unknown email,
// inactive account, or wrong password. Deliberately one error so callers
// cannot tell whether the account exists.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthResult holds the outcome of Login or Refresh.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UserID       string
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
}

// RoleReader is the minimal RBAC lookup needed by the auth service. Roles are
// re-read on every refresh so role changes take effect without re-login.
type RoleReader interface {
	RoleNamesByUser(ctx context.Context, userID string) ([]string, error)
}

// AuthService orchestrates login, refresh, and logout over the refresh ledger,
// and verifies access tokens without touching storage.
type AuthService struct {
	users    UserRepo
	roles    RoleReader
	ledger   *session.Ledger
	tokens   *security.TokenProvider
	hasher   *security.Hasher
	recorder *audit.Recorder // nil disables audit
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(users UserRepo, roles RoleReader, ledger *session.Ledger, tokens *security.TokenProvider, hasher *security.Hasher, recorder *audit.Recorder) *AuthService {
	return &AuthService{
		users:    users,
		roles:    roles,
		ledger:   ledger,
		tokens:   tokens,
		hasher:   hasher,
		recorder: recorder,
	}
}

// Login verifies the credentials, opens a new session lineage, and returns an
// access/refresh token pair. Any credential failure is ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		metrics.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}

	var user *userdomain.User
	err := db.RetryTransient(ctx, func() error {
		var err error
		user, err = s.users.GetByEmail(ctx, email)
		return err
	})
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return nil, err
	}
	if user == nil || !user.Active {
		s.record(ctx, "", auditdomain.EventLoginFailed, "unknown or inactive account")
		metrics.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
		s.record(ctx, user.ID, auditdomain.EventLoginFailed, "password mismatch")
		metrics.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}

	roleNames, err := s.readRoles(ctx, user.ID)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return nil, err
	}

	var refreshToken string
	err = db.RetryTransient(ctx, func() error {
		var err error
		_, refreshToken, err = s.ledger.Create(ctx, user.ID)
		return err
	})
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return nil, err
	}

	accessToken, expiresAt, err := s.tokens.IssueAccess(user.ID, roleNames, user.Superadmin)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.LoginAttempts.WithLabelValues("ok").Inc()
	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		UserID:       user.ID,
	}, nil
}

// Refresh rotates the refresh token and mints a fresh access token bound to
// the user's current roles. On any ledger error the lineage is terminated and
// the specific error kind is surfaced; ledger errors are never retried.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if refreshToken == "" {
		metrics.RefreshAttempts.WithLabelValues("not_found").Inc()
		return nil, session.ErrTokenNotFound
	}

	sess, newToken, err := s.ledger.Rotate(ctx, refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrTokenNotFound):
			s.record(ctx, "", auditdomain.EventRefreshReplay, "rotate on unknown or already-rotated token")
			metrics.RefreshAttempts.WithLabelValues("not_found").Inc()
		case errors.Is(err, session.ErrRotationLimitExceeded):
			s.record(ctx, "", auditdomain.EventRotationLimit, "rotation cap reached, lineage revoked")
			metrics.RefreshAttempts.WithLabelValues("rotation_limit").Inc()
		case errors.Is(err, session.ErrSessionExpired):
			s.record(ctx, "", auditdomain.EventSessionExpired, "session older than max age, lineage revoked")
			metrics.RefreshAttempts.WithLabelValues("session_expired").Inc()
		default:
			metrics.RefreshAttempts.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	var user *userdomain.User
	err = db.RetryTransient(ctx, func() error {
		var err error
		user, err = s.users.GetByID(ctx, sess.UserID)
		return err
	})
	if err != nil {
		metrics.RefreshAttempts.WithLabelValues("error").Inc()
		return nil, err
	}
	if user == nil || !user.Active {
		// Account removed or deactivated mid-session: terminate the lineage and
		// answer as if the token were unknown.
		_ = s.ledger.Revoke(ctx, newToken)
		metrics.RefreshAttempts.WithLabelValues("not_found").Inc()
		return nil, session.ErrTokenNotFound
	}

	roleNames, err := s.readRoles(ctx, user.ID)
	if err != nil {
		metrics.RefreshAttempts.WithLabelValues("error").Inc()
		return nil, err
	}

	accessToken, expiresAt, err := s.tokens.IssueAccess(user.ID, roleNames, user.Superadmin)
	if err != nil {
		metrics.RefreshAttempts.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.RefreshAttempts.WithLabelValues("ok").Inc()
	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: newToken,
		ExpiresAt:    expiresAt,
		UserID:       user.ID,
	}, nil
}

// Logout revokes the session holding refreshToken. Idempotent: revoking an
// unknown or already-revoked token succeeds. Paired access tokens stay valid
// until their own expiry; they are never proactively revoked.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return db.RetryTransient(ctx, func() error {
		return s.ledger.Revoke(ctx, refreshToken)
	})
}

// Authenticate verifies an access token's signature and expiry only; it never
// touches storage. Returns the embedded claims, or security.ErrMalformedToken,
// security.ErrSignatureInvalid, or security.ErrTokenExpired.
func (s *AuthService) Authenticate(accessToken string) (*security.AccessClaims, error) {
	return s.tokens.VerifyAccess(accessToken)
}

// readRoles reads the user's current role names with the transient retry.
func (s *AuthService) readRoles(ctx context.Context, userID string) ([]string, error) {
	var roleNames []string
	err := db.RetryTransient(ctx, func() error {
		var err error
		roleNames, err = s.roles.RoleNamesByUser(ctx, userID)
		return err
	})
	return roleNames, err
}

func (s *AuthService) record(ctx context.Context, userID, event, detail string) {
	if s.recorder != nil {
		s.recorder.Record(ctx, userID, event, detail, "")
	}
}
