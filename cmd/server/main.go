package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"crimewatch/backend/internal/audit"
	auditrepo "crimewatch/backend/internal/audit/repository"
	"crimewatch/backend/internal/auth/service"
	"crimewatch/backend/internal/authz"
	"crimewatch/backend/internal/config"
	"crimewatch/backend/internal/db"
	"crimewatch/backend/internal/prediction"
	rbacrepo "crimewatch/backend/internal/rbac/repository"
	reportrepo "crimewatch/backend/internal/report/repository"
	"crimewatch/backend/internal/security"
	"crimewatch/backend/internal/server"
	"crimewatch/backend/internal/session"
	sessionrepo "crimewatch/backend/internal/session/repository"
	"crimewatch/backend/internal/telemetry/otel"
	userrepo "crimewatch/backend/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "crimewatch-api")
	if err != nil {
		logger.Fatal("telemetry", zap.Error(err))
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		logger.Fatal("jwt private key", zap.Error(err))
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		logger.Fatal("jwt public key", zap.Error(err))
	}

	queryTimeout := cfg.QueryTimeout()
	users := userrepo.NewPostgresRepository(pool, queryTimeout)
	roles := rbacrepo.NewPostgresRepository(pool, queryTimeout)
	sessions := sessionrepo.NewPostgresRepository(pool, queryTimeout)
	reports := reportrepo.NewPostgresRepository(pool, queryTimeout)
	audits := auditrepo.NewPostgresRepository(pool, queryTimeout)

	recorder := audit.NewRecorder(audits, logger)
	tokens := security.NewTokenProvider(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	ledger := session.NewLedger(sessions, cfg.MaxRefreshCount, cfg.SessionMaxAge())
	hasher := security.NewHasher(cfg.BcryptCost)
	auth := service.NewAuthService(users, roles, ledger, tokens, hasher, recorder)
	engine := authz.NewEngine(roles, users, recorder)

	var predictor *prediction.Client
	if cfg.PredictionURL != "" {
		predictor = prediction.NewClient(cfg.PredictionURL, 5*time.Second)
	}

	handler := server.New(server.Deps{
		Auth:       auth,
		Engine:     engine,
		Reports:    reports,
		Roles:      roles,
		Audits:     audits,
		Prediction: predictor,
		Pool:       pool,
		Logger:     logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("http server stopped")
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
