// Package server wires the HTTP API: handlers behind the request gate,
// metrics and health endpoints outside it.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	audithandler "crimewatch/backend/internal/audit/handler"
	auditrepo "crimewatch/backend/internal/audit/repository"
	authhandler "crimewatch/backend/internal/auth/handler"
	"crimewatch/backend/internal/auth/service"
	"crimewatch/backend/internal/authz"
	"crimewatch/backend/internal/metrics"
	"crimewatch/backend/internal/prediction"
	rbachandler "crimewatch/backend/internal/rbac/handler"
	rbacrepo "crimewatch/backend/internal/rbac/repository"
	reporthandler "crimewatch/backend/internal/report/handler"
	reportrepo "crimewatch/backend/internal/report/repository"
	"crimewatch/backend/internal/server/middleware"
)

// Deps are the constructed components the server routes requests to.
type Deps struct {
	Auth       *service.AuthService
	Engine     *authz.Engine
	Reports    reportrepo.Repository
	Roles      rbacrepo.Repository  // nil disables /api/admin
	Audits     auditrepo.Repository // nil disables /api/audit
	Prediction *prediction.Client   // nil disables /api/predict
	Pool       *pgxpool.Pool        // nil degrades /healthz to liveness only
	Logger     *zap.Logger
}

// New builds the root handler. Auth endpoints, /metrics, and /healthz are
// public; everything else sits behind the bearer-token gate.
func New(d Deps) http.Handler {
	root := http.NewServeMux()

	authH := authhandler.NewHandler(d.Auth, d.Logger)
	authH.Register(root)

	root.Handle("/metrics", metrics.Handler())
	root.HandleFunc("/healthz", healthz(d.Pool))

	protected := http.NewServeMux()
	reporthandler.NewHandler(d.Reports, d.Engine, d.Logger).Register(protected)
	if d.Prediction != nil {
		protected.HandleFunc("/api/predict", prediction.HandlerFunc(d.Prediction, d.Logger))
	}
	if d.Roles != nil {
		admin := http.NewServeMux()
		rbachandler.NewHandler(d.Roles, d.Logger).Register(admin)
		protected.Handle("/api/admin/", middleware.Authorize(d.Engine, authz.Action{Module: "admin", Permission: "manage"})(admin))
	}
	if d.Audits != nil {
		auditMux := http.NewServeMux()
		audithandler.NewHandler(d.Audits, d.Logger).Register(auditMux)
		protected.Handle("/api/audit", middleware.Authorize(d.Engine, authz.Action{Module: "audit", Permission: "read"})(auditMux))
	}
	// The auth routes above are more specific than this catch-all, so they
	// stay public while everything else under /api/ goes through the gate.
	root.Handle("/api/", middleware.RequireAuth(d.Auth)(protected))

	return otelhttp.NewHandler(
		middleware.Chain(root, middleware.Logging(d.Logger)),
		"crimewatch-api",
	)
}

func healthz(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pool.Ping(ctx); err != nil {
				http.Error(w, "db unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
