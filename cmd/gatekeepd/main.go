// gatekeepd runs the operational side of the authentication backend:
// retention cleanup, health and metrics endpoints, and the manual ban and
// unban calls. The login and session operations are a library surface
// consumed by the web layer, which lives elsewhere.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gatekeephq/gatekeep/internal/background"
	"github.com/gatekeephq/gatekeep/internal/config"
	"github.com/gatekeephq/gatekeep/internal/database"
	"github.com/gatekeephq/gatekeep/internal/metrics"
	custommw "github.com/gatekeephq/gatekeep/internal/middleware"
	"github.com/gatekeephq/gatekeep/internal/repositories"
	"github.com/gatekeephq/gatekeep/internal/services"
	pkghttp "github.com/gatekeephq/gatekeep/pkg/http"
	pkglogger "github.com/gatekeephq/gatekeep/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Repositories
	accountRepo := repositories.NewAccountRepository(db)
	ipRepo := repositories.NewIPRepository(db)
	attemptRepo := repositories.NewLoginAttemptRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)

	// Observability
	m := metrics.New()
	auditLogger := pkglogger.NewAuditLogger(logger)

	// Services
	throttleConfig := services.ThrottleConfig{
		BanTimeIP:          cfg.Throttle.BanTimeIP,
		BanTimeAccount:     cfg.Throttle.BanTimeAccount,
		MaxAttemptsIP:      cfg.Throttle.MaxAttemptsIP,
		MaxAttemptsAccount: cfg.Throttle.MaxAttemptsAccount,
		WarningThreshold:   cfg.Throttle.WarningThreshold,
	}
	throttleService := services.NewThrottleService(attemptRepo, ipRepo, accountRepo, throttleConfig, logger, auditLogger, m)
	adminService := services.NewAdminService(accountRepo, ipRepo, throttleService, logger, auditLogger)

	cleanupManager := background.NewCleanupManager(
		attemptRepo, sessionRepo, logger,
		cfg.Cleanup.Interval, cfg.Cleanup.AttemptRetention, cfg.Cleanup.SessionRetention,
	)

	// The limiter resolves the client IP itself, honoring forwarding
	// headers only from the configured trusted proxies.
	rateLimit := custommw.DefaultOpsRateLimit()
	rateLimit.TrustedProxies = cfg.Server.TrustedProxies

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(custommw.SecureLogger(logger))
	router.Use(custommw.RateLimitByIP(rateLimit))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable,
				map[string]string{"status": "unhealthy", "database": "down"})
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK,
			map[string]string{"status": "healthy", "database": "up"})
	})

	router.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	// Manual ban/unban calls for operators.
	router.Route("/admin", func(r chi.Router) {
		r.Post("/accounts/{id}/ban", banHandler(logger, func(ctx context.Context, id int64) error {
			_, err := adminService.BanAccount(ctx, id, 0)
			return err
		}))
		r.Delete("/accounts/{id}/ban", banHandler(logger, adminService.UnbanAccount))
		r.Post("/ips/{id}/ban", banHandler(logger, func(ctx context.Context, id int64) error {
			_, err := adminService.BanIP(ctx, id, 0)
			return err
		}))
		r.Delete("/ips/{id}/ban", banHandler(logger, adminService.UnbanIP))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// banHandler adapts an id-keyed admin operation into an HTTP handler.
func banHandler(logger *slog.Logger, fn func(ctx context.Context, id int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			pkghttp.WriteBadRequest(w, "invalid id")
			return
		}

		if err := fn(r.Context(), id); err != nil {
			logger.Error("admin operation failed", slog.Int64("id", id), slog.Any("error", err))
			pkghttp.WriteInternalError(w, "operation failed")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
