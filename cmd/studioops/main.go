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
	"github.com/joho/godotenv"

	"github.com/studioops/studioops/internal/app"
	"github.com/studioops/studioops/internal/auth"
	"github.com/studioops/studioops/internal/comments"
	"github.com/studioops/studioops/internal/dashboard"
	"github.com/studioops/studioops/internal/directory"
	"github.com/studioops/studioops/internal/documents"
	"github.com/studioops/studioops/internal/ledger"
	"github.com/studioops/studioops/internal/observability"
	"github.com/studioops/studioops/internal/platform/cache"
	"github.com/studioops/studioops/internal/platform/db"
	"github.com/studioops/studioops/internal/platform/objstore"
	"github.com/studioops/studioops/internal/projects"
	"github.com/studioops/studioops/internal/shared"
	"github.com/studioops/studioops/internal/tasks"
	"github.com/studioops/studioops/jobs"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	store, err := objstore.New(ctx, objstore.Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		Bucket:    cfg.S3Bucket,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		PathStyle: cfg.S3PathStyle,
	})
	if err != nil {
		logger.Error("init object store", slog.Any("error", err))
		os.Exit(1)
	}

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, []byte(cfg.JWTSecret))
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	dashCache := dashboard.NewCache(redisClient, cfg.DashboardCacheTTL)
	dashboardRepo := dashboard.NewRepository(pool)
	dashboardService := dashboard.NewService(dashboardRepo, dashCache)
	dashboardHandler := dashboard.NewHandler(logger, dashboardService)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo)
	ledgerHandler := ledger.NewHandler(logger, ledgerService, func(r *http.Request) {
		if err := dashCache.Bump(r.Context()); err != nil {
			logger.Warn("dashboard cache bump", slog.Any("error", err))
		}
	})

	directoryRepo := directory.NewRepository(pool)
	directoryService := directory.NewService(directoryRepo)
	directoryHandler := directory.NewHandler(logger, directoryService)

	projectsRepo := projects.NewRepository(pool)
	projectsService := projects.NewService(projectsRepo)
	projectsHandler := projects.NewHandler(logger, projectsService)

	tasksRepo := tasks.NewRepository(pool)
	tasksService := tasks.NewService(logger, tasksRepo, projectsService, jobsClient)
	tasksHandler := tasks.NewHandler(logger, tasksService)

	commentsRepo := comments.NewRepository(pool)
	commentsService := comments.NewService(commentsRepo)
	commentsHandler := comments.NewHandler(logger, commentsService)

	documentsRepo := documents.NewRepository(pool)
	documentsService := documents.NewService(documentsRepo, store)
	documentsHandler := documents.NewHandler(logger, documentsService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		AuthHandler:      authHandler,
		LedgerHandler:    ledgerHandler,
		DashboardHandler: dashboardHandler,
		DirectoryHandler: directoryHandler,
		ProjectsHandler:  projectsHandler,
		TasksHandler:     tasksHandler,
		CommentsHandler:  commentsHandler,
		DocumentsHandler: documentsHandler,
		JobsHandler:      jobsHandler,
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
