package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"rollcall-server/auth"
	"rollcall-server/config"
	"rollcall-server/db"
	"rollcall-server/handlers"
	"rollcall-server/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.LogError("failed to load configuration", err)
		os.Exit(1)
	}
	log := logger.Init(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	if cfg.UsesDefaultSecret() {
		log.Warn("JWT_SECRET is not set, using the built-in development secret")
	}

	store, err := db.Open(db.Options{DBFile: cfg.DBFile, DatabaseURL: cfg.DatabaseURL, Logger: log})
	if err != nil {
		logger.LogError("failed to open database", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.Migrate(ctx); err != nil {
		logger.LogError("failed to migrate database", err)
		os.Exit(1)
	}

	passwords := auth.NewBcryptHasher(cfg.BcryptCost)
	if _, err := store.SeedAdmin(ctx, cfg.AdminUser, func() (string, error) {
		return passwords.Hash(cfg.AdminPassword)
	}); err != nil {
		logger.LogError("failed to seed admin user", err)
		os.Exit(1)
	}
	if n, err := store.CountUsers(ctx); err == nil {
		log.Info("database ready", "users", n)
	}

	throttle := loginThrottle(ctx, cfg)
	apiHandler := handlers.NewAPIHandler(
		store,
		auth.NewTokenService(cfg.JWTSecret, cfg.TokenExpiry),
		passwords,
		throttle,
		log,
	)

	router := handlers.NewRouter(apiHandler, cfg.StaticDir)
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "Content-Disposition"},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           corsHandler.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.LogError("server failed", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.LogError("graceful shutdown failed", err)
	}
}

// loginThrottle uses Redis when REDIS_ADDR is set so lockouts survive
// restarts and are shared between instances; otherwise it counts in memory.
func loginThrottle(ctx context.Context, cfg config.Config) auth.Throttle {
	if cfg.RedisAddr == "" {
		logger.LogDebug("using in-memory login throttle", "max_attempts", cfg.LoginMaxAttempts)
		return auth.NewMemoryThrottle(cfg.LoginMaxAttempts, cfg.LoginLockout)
	}
	client, err := db.InitializeRedisClient(ctx, db.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.LogWarn("redis unavailable, using in-memory login throttle", "addr", cfg.RedisAddr, "error", err)
		return auth.NewMemoryThrottle(cfg.LoginMaxAttempts, cfg.LoginLockout)
	}
	logger.LogInfo("using redis login throttle", "addr", cfg.RedisAddr)
	return db.NewRedisThrottle(client, cfg.LoginMaxAttempts, cfg.LoginLockout, logger.Logger)
}
