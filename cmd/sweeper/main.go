package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recruit-platform/internal/calls"
	"recruit-platform/internal/config"
	"recruit-platform/internal/dialer"
	"recruit-platform/pkg/logger"
	"recruit-platform/pkg/utils"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// The sweeper is the engine's clock: every tick it reclaims stale claims and
// dispatches due calls to the dialer gateway. A redis lease keeps a single
// replica active at a time; the TTL frees the lease if a holder crashes.

const leaseKey = "recruit:sweep:lease"

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if err := cfg.ValidateSweeper(); err != nil {
		slog.Error("sweeper config invalid", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

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

	s := sweeper{
		calls:   callSvc,
		gateway: dialer.NewHTTPGateway(cfg.Sweep.DialerURL),
		rdb:     rdb,
		limiter: rate.NewLimiter(rate.Limit(cfg.Sweep.DispatchRPS), 1),
		batch:   cfg.Sweep.BatchSize,
		// The lease must outlive one sweep but not much more, so a crashed
		// holder is replaced within a couple of ticks.
		leaseTTL: 2 * cfg.Sweep.Interval,
		token:    uuid.NewString(),
		log:      log,
	}

	log.Info("sweeper started",
		"interval", cfg.Sweep.Interval, "batch", s.batch,
		"dispatch_rps", cfg.Sweep.DispatchRPS)

	ticker := time.NewTicker(cfg.Sweep.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info("sweeper stopping")
			return
		case <-ticker.C:
			s.tick(rootCtx)
		}
	}
}

type sweeper struct {
	calls    *calls.Service
	gateway  dialer.Gateway
	rdb      *redis.Client
	limiter  *rate.Limiter
	batch    int
	leaseTTL time.Duration
	token    string
	log      *slog.Logger
}

func (s *sweeper) tick(ctx context.Context) {
	ok, err := utils.AcquireLease(ctx, s.rdb, leaseKey, s.token, s.leaseTTL)
	if err != nil {
		s.log.Error("lease acquire failed", "err", err)
		return
	}
	if !ok {
		// Another replica holds the sweep.
		return
	}
	defer func() {
		if err := utils.ReleaseLease(ctx, s.rdb, leaseKey, s.token); err != nil {
			s.log.Warn("lease release failed", "err", err)
		}
	}()

	reclaimed, err := s.calls.ReclaimStale(ctx, s.batch)
	if err != nil {
		s.log.Error("stale reclaim failed", "err", err)
	} else if reclaimed > 0 {
		s.log.Info("stale claims reclaimed", "count", reclaimed)
	}

	due, err := s.calls.ListDue(ctx, time.Now().UTC(), s.batch)
	if err != nil {
		s.log.Error("due list failed", "err", err)
		return
	}

	dispatched := 0
	for _, c := range due {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		claimed, err := s.calls.Claim(ctx, c)
		if err != nil {
			// Lost the race for this call or it moved on; skip.
			continue
		}
		if err := s.gateway.Dial(ctx, claimed); err != nil {
			// The claim stays in_progress; the stale reclaim returns it to
			// the retry path as a no_answer attempt.
			s.log.Error("dial dispatch failed", "call_id", claimed.ID, "err", err)
			continue
		}
		dispatched++
	}
	if dispatched > 0 {
		s.log.Info("calls dispatched", "count", dispatched, "due", len(due))
	}
}
