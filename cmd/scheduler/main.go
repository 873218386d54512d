package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outreach_backend/internal/channel"
	"outreach_backend/internal/channel/email"
	"outreach_backend/internal/channel/linkedin"
	"outreach_backend/internal/events"
	"outreach_backend/internal/executor"
	"outreach_backend/internal/followup"
	followuprepo "outreach_backend/internal/followup/repository"
	"outreach_backend/internal/followup/writer"
	"outreach_backend/internal/ingress"
	prospectrepo "outreach_backend/internal/prospects/repository"
	"outreach_backend/internal/reconcile"
	"outreach_backend/internal/scheduler"
	"outreach_backend/platform/config"
	"outreach_backend/platform/db"
	"outreach_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	prospects := prospectrepo.NewRepository(pool)
	drafts := followuprepo.NewRepository(pool)

	// The engine is the single writer for prospect state; the poller and
	// executor both report through it.
	cadence := followup.NewCadence(cfg)
	engine := reconcile.NewEngine(prospects, cadence, eventBus, log)

	// Channel clients come up nil when unconfigured; keep the interface
	// vars nil in that case so downstream nil checks see a true nil.
	linkedinClient := linkedin.NewClient(cfg, log)
	var linkedinMessenger channel.Messenger
	var inviter channel.Inviter
	var relations channel.RelationLister
	if linkedinClient != nil {
		linkedinMessenger = linkedinClient
		inviter = linkedinClient
		relations = linkedinClient
	}
	var emailMessenger channel.Messenger
	if emailSender := email.NewSender(cfg, log); emailSender != nil {
		emailMessenger = emailSender
	}

	redisClient, err := executor.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		panic("failed to initialize redis client: " + err.Error())
	}
	defer func() { _ = redisClient.Close() }()
	quota := executor.NewQuota(redisClient, cfg, log)

	sender := executor.NewSender(drafts, prospects, engine, linkedinMessenger, emailMessenger, inviter, quota, cfg, eventBus, log)

	w, err := writer.New(cfg, log)
	if err != nil {
		log.Error("failed to initialize draft writer", "error", err)
		panic("failed to initialize draft writer: " + err.Error())
	}
	generator := followup.NewGenerator(drafts, w, followup.NewEscalation(cfg), cfg, eventBus, log)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "scheduler"
	}
	cycle := scheduler.NewCycle(prospects, generator, sender, cfg, log, hostname)

	poller := ingress.NewPoller(prospects, relations, engine, cfg, log)

	worker, err := scheduler.NewWorker(cfg, cycle, poller, sender, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}
	go periodic.Run(ctx)

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
