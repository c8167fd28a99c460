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

	"github.com/nimbus-hr/nimbus/internal/app"
	"github.com/nimbus-hr/nimbus/internal/audit"
	"github.com/nimbus-hr/nimbus/internal/authz"
	"github.com/nimbus-hr/nimbus/internal/directory"
	"github.com/nimbus-hr/nimbus/internal/gate"
	"github.com/nimbus-hr/nimbus/internal/impersonate"
	"github.com/nimbus-hr/nimbus/internal/nav"
	"github.com/nimbus-hr/nimbus/internal/observability"
	"github.com/nimbus-hr/nimbus/internal/platform/cache"
	"github.com/nimbus-hr/nimbus/internal/platform/db"
	"github.com/nimbus-hr/nimbus/internal/session"
	"github.com/nimbus-hr/nimbus/jobs"
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
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	codec, err := session.NewTokenCodec(cfg.TokenSecret, cfg.TokenIssuer, cfg.SessionTTL)
	if err != nil {
		logger.Error("init token codec", slog.Any("error", err))
		os.Exit(1)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()
	auditWriter := audit.NewPGWriter(dbpool)
	recorder := audit.NewDispatcher(asynqClient, auditWriter, logger)

	authzRepo := authz.NewPGRepository(dbpool)
	composer := authz.NewComposer(authzRepo)
	store := session.NewStore(redisClient, cfg.SessionTTL)
	manager := session.NewManager(composer, codec)
	resolver := nav.NewResolver(nil)
	coordinator := impersonate.NewCoordinator(authzRepo, composer, cfg.AdminProfileID, recorder, logger)

	accounts := gate.NewPGAccountRepository(dbpool)
	gateService := gate.NewService(accounts, manager, store, resolver, coordinator, logger)
	metrics := observability.NewMetrics()
	gateMiddleware := gate.Middleware{Service: gateService, Logger: logger, Metrics: metrics}
	gateHandler := gate.NewHandler(logger, gateService, gateMiddleware, metrics)

	directoryRepo := directory.NewPGRepository(dbpool)
	directoryService := directory.NewService(directoryRepo, recorder, logger)
	directoryHandler := directory.NewHandler(logger, directoryService, gateMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		GateHandler:      gateHandler,
		DirectoryHandler: directoryHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
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
