package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/simpify/spark-backend/api/routes"
	"github.com/simpify/spark-backend/internal/auth"
	"github.com/simpify/spark-backend/internal/billing"
	"github.com/simpify/spark-backend/internal/premium"
	"github.com/simpify/spark-backend/internal/users"
	"github.com/simpify/spark-backend/pkg/auth/session"
	"github.com/simpify/spark-backend/pkg/config"
	"github.com/simpify/spark-backend/pkg/logger"
	"github.com/simpify/spark-backend/pkg/metrics"
	"github.com/simpify/spark-backend/pkg/oauth"
	"github.com/simpify/spark-backend/pkg/redis"
)

const (
	billingIdempotencyScope = "billing-webhook"
	shutdownTimeout         = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	store, closeStore, err := users.Open(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap user store", err)
		os.Exit(1)
	}
	defer closeStore()

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.Session)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	provider, err := oauth.New(cfg.OAuth)
	if err != nil {
		logg.Error(context.Background(), "failed to create identity provider", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		Users:          store,
		Provider:       provider,
		SessionManager: sessionManager,
		SessionConfig:  cfg.Session,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	registerService, err := auth.NewRegisterService(store)
	if err != nil {
		logg.Error(context.Background(), "failed to create register service", err)
		os.Exit(1)
	}

	billingService, err := billing.NewService(billing.ServiceParams{
		Users:  store,
		Plans:  billing.PlanTableFromConfig(cfg.Billing),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create billing service", err)
		os.Exit(1)
	}

	billingGuard, err := billing.NewIdempotencyGuard(redisClient, cfg.Billing.IdempotencyTTL, billingIdempotencyScope)
	if err != nil {
		logg.Error(context.Background(), "failed to create billing idempotency guard", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	router := routes.NewRouter(routes.RouterParams{
		Config:          cfg,
		Logger:          logg,
		Users:           store,
		Redis:           redisClient,
		Sessions:        sessionManager,
		AuthService:     authService,
		RegisterService: registerService,
		BillingService:  billingService,
		BillingGuard:    billingGuard,
		Gate:            premium.NewGate(cfg.Billing.EnforceExpiry, nil),
		WebhookMetrics:  metrics.NewWebhookMetrics(registry),
		Gatherer:        registry,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"addr":   addr,
		"driver": cfg.Store.NormalizedDriver(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}
