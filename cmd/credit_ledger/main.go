package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/SscSPs/credit_ledger_app/cmd/docs"
	"github.com/SscSPs/credit_ledger_app/internal/core/services"
	"github.com/SscSPs/credit_ledger_app/internal/handlers"
	"github.com/SscSPs/credit_ledger_app/internal/middleware"
	"github.com/SscSPs/credit_ledger_app/internal/platform/bootstrap"
	"github.com/SscSPs/credit_ledger_app/internal/platform/config"
	"github.com/SscSPs/credit_ledger_app/internal/platform/metrics"
	"github.com/gin-gonic/gin"
)

// @title Credit Ledger API
// @version 1.0
// @description Credit balances and usage accounting for billable content generation.

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @security BearerAuth
func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := context.Background()

	repos, closeRepos, err := bootstrap.OpenRepositories(ctx, cfg, logger, true)
	if err != nil {
		logger.Error("Failed to open storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeRepos()

	sideChannels, closeSideChannels, err := bootstrap.LedgerSideChannels(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to set up ledger side channels", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeSideChannels()

	appMetrics := metrics.New()
	ledgerOptions := append(sideChannels, services.WithLedgerMetrics(appMetrics))

	serviceContainer, err := services.NewServiceContainer(cfg, repos, ledgerOptions...)
	if err != nil {
		logger.Error("Failed to build services", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rateLimiter, err := middleware.NewRateLimiter(cfg.RateLimit)
	if err != nil {
		logger.Error("Invalid rate limit", slog.String("rate", cfg.RateLimit), slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware (logging, recovery)
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())

	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	err = handlers.RegisterRoutes(r, cfg, serviceContainer, handlers.RouteDeps{
		MetricsHandler: appMetrics.Handler(),
		HTTPObserver:   appMetrics,
		RateLimiter:    rateLimiter,
	})
	if err != nil {
		logger.Error("Failed to register routes", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Server starting", slog.String("port", cfg.Port), slog.String("storage", cfg.StorageDriver))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Error("Server failed to run", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
