package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/kamino-gate/internal/auth"
	"github.com/BradenHooton/kamino-gate/internal/background"
	"github.com/BradenHooton/kamino-gate/internal/config"
	"github.com/BradenHooton/kamino-gate/internal/handlers"
	middlewareCustom "github.com/BradenHooton/kamino-gate/internal/middleware"
	"github.com/BradenHooton/kamino-gate/internal/routes"
	"github.com/BradenHooton/kamino-gate/internal/services"
	pkgauth "github.com/BradenHooton/kamino-gate/pkg/auth"
	pkghttp "github.com/BradenHooton/kamino-gate/pkg/http"
	pkglogger "github.com/BradenHooton/kamino-gate/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Server.SlogLevel()}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("store_driver", cfg.Server.StoreDriver),
	)

	// Open the account store
	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := openStore(startCtx, cfg, logger)
	startCancel()
	if err != nil {
		logger.Error("failed to open account store", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	// Password hashing
	hasher := pkgauth.NewPasswordHasher(cfg.Auth.BcryptCost)
	if _, err := hasher.DummyHash(); err != nil {
		logger.Error("failed to prepare dummy password hash", slog.Any("error", err))
		os.Exit(1)
	}

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTokenExpiry)
	auditLogger := pkglogger.NewAuditLogger(logger)

	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:    cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs:  cfg.Auth.TimingDelayRandomMs,
		DelayOnSuccess: cfg.Auth.TimingDelayOnSuccess,
	})

	// Login core
	guard := services.NewThrottleGuard(store.accounts, services.ThrottleConfig{
		MaxFailedAttempts: cfg.Auth.MaxFailedLoginAttempts,
		BanCooldown:       cfg.Auth.BanCooldown,
	}, logger)
	verifier := services.NewCredentialVerifier(store.accounts, hasher, tokenManager)

	var recorder services.AttemptRecorder
	if store.attempts != nil {
		recorder = services.NewLoginAttemptService(store.attempts, cfg.Auth.AttemptRetention)
	}

	authService := services.NewAuthService(guard, verifier, recorder, timingDelay, logger, auditLogger)
	userService := services.NewUserService(store.accounts, hasher, logger)

	// Bootstrap first admin user if configured
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := ensureAdminUser(ctx, userService, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	// Initialize handlers
	ipConfig := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	authHandler := handlers.NewAuthHandler(authService, store.accounts, ipConfig, logger)
	healthHandler := handlers.NewHealthHandler(store.health, logger)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, healthHandler, tokenManager, middlewareCustom.RateLimitConfig{
		RequestsPerMinute: cfg.Server.LoginRequestsPerMinute,
		IPConfig:          ipConfig,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	var cleanupManager *background.CleanupManager
	if store.attempts != nil {
		cleanupManager = background.NewCleanupManager(store.attempts, logger, cfg.Auth.CleanupInterval)
		go cleanupManager.Start(cleanupCtx)
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	if cleanupManager != nil {
		cleanupManager.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		return
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first account if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userService *services.UserService, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	adminName := os.Getenv("ADMIN_NAME")
	if adminName == "" {
		adminName = "Admin"
	}

	created, err := userService.EnsureUser(ctx, adminEmail, adminPassword, adminName)
	if err != nil {
		return err
	}

	if created {
		logger.Info("admin user created successfully")
	} else {
		logger.Info("admin user already exists")
	}
	return nil
}
