package middleware

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"crimewatch/backend/internal/authz"
	"crimewatch/backend/internal/db"
	"crimewatch/backend/internal/security"
)

// Authenticator verifies an access token and returns its claims.
type Authenticator interface {
	Authenticate(accessToken string) (*security.AccessClaims, error)
}

// RequireAuth extracts the bearer token, verifies it, and stores the claims in
// the request context. Missing, malformed, tampered, and expired tokens all
// get 401; the error code distinguishes expiry so clients know to refresh.
func RequireAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				writeGateError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			claims, err := auth.Authenticate(token)
			if err != nil {
				code := "invalid_token"
				if errors.Is(err, security.ErrTokenExpired) {
					code = "token_expired"
				}
				writeGateError(w, http.StatusUnauthorized, code, "invalid or expired access token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// Authorize runs the authorization engine for an action with no bound
// resource. Handlers that load a resource first call the engine directly.
func Authorize(engine *authz.Engine, action authz.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if err := engine.Authorize(r.Context(), claims, action, nil); err != nil {
				WriteAuthzError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteAuthzError maps an authorization-engine error to a response. Denials
// are 403; storage failures are never reported as a denial, transient ones
// get 503 so clients know to retry.
func WriteAuthzError(w http.ResponseWriter, err error) {
	if errors.Is(err, authz.ErrForbidden) {
		writeGateError(w, http.StatusForbidden, "forbidden", "permission denied")
		return
	}
	if errors.Is(err, db.ErrTransient) {
		writeGateError(w, http.StatusServiceUnavailable, "unavailable", "temporarily unavailable, retry")
		return
	}
	writeGateError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

// BearerToken extracts the token from an Authorization header, or returns "".
func BearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// ClientIP returns the originating client IP, preferring proxy headers over
// the socket peer.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		s := fwd
		if i := strings.Index(s, ","); i > 0 {
			s = s[:i]
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return real
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeGateError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
}
