// File: app/app.go
package app

import (
	"context"
	"database/sql"
	"fmt"
	"go-trip-api/config"
	"go-trip-api/db"
	"go-trip-api/handler"
	"go-trip-api/logger"
	"go-trip-api/repository"
	"go-trip-api/router"
	"go-trip-api/service"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
)

// Components is the wired application graph.
type Components struct {
	Router    http.Handler
	Auth      *service.AuthService
	Gate      *service.AuthGate
	Tokens    *service.TokenService
	Refresh   *service.RefreshTokenStore
	Passwords *service.PasswordService
	Users     repository.IUserRepository
}

// Build wires repositories, services, handlers and the router. rdb may be nil, in which
// case login throttling is disabled.
func Build(cfg *config.Config, database *sql.DB, rdb *redis.Client) (*Components, error) {
	passwords, err := service.NewPasswordService(service.HashingParams{
		MemoryKB:    cfg.Hashing.MemoryKB,
		Iterations:  cfg.Hashing.Iterations,
		Parallelism: cfg.Hashing.Parallelism,
		KeyLength:   cfg.Hashing.KeyLength,
	}, cfg.Hashing.Workers)
	if err != nil {
		return nil, fmt.Errorf("password service: %w", err)
	}

	clock := service.SystemClock

	// Layers for users
	userRepo := repository.NewUserRepository(database)
	userService := service.NewUserService(userRepo)

	// Layers for sessions
	tokenRepo := repository.NewTokenRepository()
	tokens := service.NewTokenService(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret, cfg.Leeway(), clock)
	refreshStore := service.NewRefreshTokenStore(database, tokenRepo, tokens, clock)

	var limiter *service.LoginLimiter
	if rdb != nil {
		limiter = service.NewLoginLimiter(rdb, cfg.Auth.MaxLoginAttempts, cfg.LoginWindow())
	}

	authService := service.NewAuthService(userRepo, passwords, tokens, refreshStore, limiter, service.SessionConfig{
		AccessTTL:  cfg.AccessTTL(),
		RefreshTTL: cfg.RefreshTTL(),
	})
	gate := service.NewAuthGate(tokens, userRepo, clock, service.GateOptions{
		RequireVerifiedEmail: cfg.Auth.RequireVerifiedEmail,
		VerifyURL:            cfg.Auth.VerifyURL,
	})

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService, authService)

	return &Components{
		Router:    router.NewRouter(authHandler, userHandler, gate),
		Auth:      authService,
		Gate:      gate,
		Tokens:    tokens,
		Refresh:   refreshStore,
		Passwords: passwords,
		Users:     userRepo,
	}, nil
}

func Run() {
	logger.Init()
	logger.Log.Info("Logger initialized")

	cfg, err := config.Load(".")
	if err != nil {
		logger.Log.Fatalf("Error loading configuration: %v", err)
	}
	logger.Log.Info("Configuration loaded successfully")

	database, err := db.Connect(cfg)
	if err != nil {
		logger.Log.Fatalf("Error connecting to the database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(cfg); err != nil {
		logger.Log.Fatalf("Error running migrations: %v", err)
	}

	rdb, err := db.ConnectRedis(context.Background(), cfg)
	if err != nil {
		logger.Log.Fatalf("Error connecting to redis: %v", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	components, err := Build(cfg, database, rdb)
	if err != nil {
		logger.Log.Fatalf("Error wiring application: %v", err)
	}

	// --- Start the Server with Graceful Shutdown ---
	port := cfg.Server.Port
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           components.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Infof("Server starting on port :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Warn("Shutdown signal received. Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Log.Info("Server exited properly")
}
