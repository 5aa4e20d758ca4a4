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

	"recruit-platform/internal/auth"
	"recruit-platform/internal/calls"
	"recruit-platform/internal/config"
	"recruit-platform/internal/events"
	"recruit-platform/internal/httpapi"
	"recruit-platform/internal/pipeline"
	"recruit-platform/internal/placement"
	"recruit-platform/pkg/logger"
	"recruit-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Local convenience only; deployed processes get real env.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	history := events.NewPostgresRepo(db)
	entrySvc := pipeline.NewService(pipeline.NewPostgresStore(db))
	callSvc := calls.NewService(calls.NewPostgresStore(db), calls.Config{
		DefaultMaxAttempts: cfg.Pipeline.MaxCallAttempts,
		RetrySpacing:       cfg.Pipeline.CallRetrySpacing,
		StaleClaimTimeout:  cfg.Pipeline.StaleClaimTimeout,
		Window: calls.Window{
			OpenHour:  cfg.Pipeline.CallWindowOpenHour,
			CloseHour: cfg.Pipeline.CallWindowCloseHour,
			Loc:       cfg.Location(),
		},
	})
	engine := placement.New(entrySvc, callSvc, history, log)

	h := httpapi.Handlers{
		Auth:     authManager,
		Pipeline: engine,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, h, authManager)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
