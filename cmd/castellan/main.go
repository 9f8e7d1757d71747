package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/castellan/castellan/internal/app"
	"github.com/castellan/castellan/internal/auth"
	"github.com/castellan/castellan/internal/mail"
	"github.com/castellan/castellan/internal/observability"
	"github.com/castellan/castellan/internal/platform/cache"
	"github.com/castellan/castellan/internal/platform/db"
	"github.com/castellan/castellan/internal/rbac"
	"github.com/castellan/castellan/internal/users"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()

	userRepo := users.NewRepository(dbpool)
	hasher := auth.NewHasher(cfg.BcryptCost)
	tokenFactory := auth.NewTokenFactory(cfg.FlowTokenTTL)
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	notifier := mail.NewAsynqNotifier(asynqClient)

	authService := auth.NewService(userRepo, tokenFactory, hasher, issuer, notifier, logger)
	authHandler := auth.NewHandler(logger, authService)
	authMiddleware := auth.Middleware{Issuer: issuer, Logger: logger}

	rbacService := rbac.NewService(dbpool)
	permissionsHandler := rbac.NewHandler(logger, rbacService)

	usersService := users.NewService(userRepo, hasher)
	usersHandler := users.NewHandler(logger, usersService, rbacService)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthHandler:        authHandler,
		AuthMiddleware:     authMiddleware,
		UsersHandler:       usersHandler,
		PermissionsHandler: permissionsHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
