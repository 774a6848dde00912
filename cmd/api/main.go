package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memberauth/internal/auth"
	"memberauth/internal/background"
	"memberauth/internal/challenge"
	"memberauth/internal/config"
	"memberauth/internal/database"
	"memberauth/internal/handlers"
	middlewareCustom "memberauth/internal/middleware"
	"memberauth/internal/repositories"
	"memberauth/internal/routes"
	"memberauth/internal/services"
	pkghttp "memberauth/pkg/http"
	pkglogger "memberauth/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
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

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Run migrations before opening the pool
	if err := database.Migrate(cfg.Database.DSN()); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize redis for second-factor challenges
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// Initialize repositories
	memberRepo := repositories.NewMemberRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	historyRepo := repositories.NewPasswordHistoryRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	// Challenge store and pending-token manager
	challengeStore := challenge.NewStore(redisClient, cfg.Redis.KeyPrefix)
	pendingTokens := auth.NewPendingTokenManager(cfg.Auth.PendingTokenSecret, cfg.Auth.PendingTokenExpiry)

	// Outbound collaborators
	auditLogger := pkglogger.NewAuditLogger(logger)
	emailSender, err := services.NewEmailSender(cfg.Email, logger)
	if err != nil {
		logger.Error("failed to initialize email sender", slog.Any("error", err))
		os.Exit(1)
	}
	captcha := services.NewRecaptchaService(cfg.Captcha, logger)

	// Initialize services
	auditService := services.NewAuditService(auditRepo, auditLogger, logger)
	sessionService := services.NewSessionService(sessionRepo, memberRepo, auditService, cfg.Auth, logger)
	credentialService := services.NewCredentialService(memberRepo, challengeStore, pendingTokens, emailSender, auditService, cfg.Auth, logger)
	twoFactorService := services.NewTwoFactorService(memberRepo, challengeStore, pendingTokens, sessionService, sessionService, auditService, cfg.Auth, logger)
	passwordService := services.NewPasswordService(memberRepo, historyRepo, auditService, cfg.Auth, logger)
	resetService := services.NewResetService(memberRepo, passwordService, sessionService, emailSender, auditService, cfg.Auth, cfg.Email, logger)
	accountService := services.NewAccountService(memberRepo, historyRepo, auditService, logger)

	// Initialize background sweeper
	sweepManager := background.NewSweepManager(sessionService, logger, cfg.Auth.SweepInterval)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(credentialService, twoFactorService, accountService, sessionService, auditService, passwordService, captcha, ipConfig)
	passwordHandler := handlers.NewPasswordHandler(passwordService, resetService, ipConfig)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(cfg.Server.AllowedOrigins))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, passwordHandler, sessionService)

	// Health check with database and redis
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","redis":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start sweep task
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	go sweepManager.Start(sweepCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	sweepCancel()
	sweepManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
