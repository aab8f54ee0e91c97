// Package metrics exposes Prometheus counters for the auth and authorization paths.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LoginAttempts counts login calls by result (ok, invalid_credentials, error).
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crimewatch_login_attempts_total",
		Help: "Login attempts by result.",
	}, []string{"result"})

	// RefreshAttempts counts refresh calls by result (ok, not_found,
	// rotation_limit, session_expired, error).
	RefreshAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crimewatch_refresh_attempts_total",
		Help: "Refresh-token rotations by result.",
	}, []string{"result"})

	// AuthzDecisions counts authorization decisions by outcome
	// (superadmin, owner, delegate, grant, deny).
	AuthzDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crimewatch_authz_decisions_total",
		Help: "Authorization decisions by outcome.",
	}, []string{"decision"})
)

// Handler returns the Prometheus scrape handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
