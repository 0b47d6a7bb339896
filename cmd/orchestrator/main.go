package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"leadcall_backend/internal/bulk"
	"leadcall_backend/internal/callprovider"
	"leadcall_backend/internal/email"
	"leadcall_backend/internal/engine"
	"leadcall_backend/internal/events"
	"leadcall_backend/internal/fallback"
	"leadcall_backend/internal/jobs"
	"leadcall_backend/internal/leads"
	"leadcall_backend/internal/leadstore"
	"leadcall_backend/internal/reconciler"
	"leadcall_backend/internal/scheduler"
	"leadcall_backend/internal/whatsapp"
	"leadcall_backend/platform/config"
	"leadcall_backend/platform/db"
	"leadcall_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting orchestrator", "env", cfg.Env)

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

	leadStore := leadstore.NewRepository(pool)
	jobStore := jobs.NewRepository(pool)

	providerClient := callprovider.NewClient(cfg, log)
	whatsappClient := whatsapp.NewClient(cfg, log)
	emailSender := email.NewSender(cfg)
	fallbackChain := fallback.NewChain(whatsappClient, emailSender, cfg.GetWhatsAppTemplate(), log)

	policy := engine.RetryPolicy{
		Intervals:     cfg.GetRetryIntervals(),
		MaxRetryCount: cfg.GetMaxRetryCount(),
	}
	eng := engine.New(leadStore, jobStore, providerClient, fallbackChain, policy, eventBus, log)

	leadsService := leads.NewService(leadStore, jobStore, eng, policy, eventBus, log)
	leadsService.RegisterHandlers(eventBus)

	bulkService := bulk.NewService(bulk.NewRepository(pool), jobStore, eventBus, log)

	// The webhook path archives reports; the sweeper only synthesizes
	// outcomes, so this process runs without an archiver.
	reconcilerService := reconciler.NewService(
		eng,
		leadStore,
		reconciler.NewRepository(pool),
		providerClient,
		nil,
		eventBus,
		cfg.GetCallMaxDuration(),
		log,
	)

	healer := scheduler.NewHealer(leadStore, jobStore, cfg.GetReconciliationInterval(), log)
	go healer.Run(ctx)

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize conveyor client", "error", err)
		panic("failed to initialize conveyor client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	dispatcher := scheduler.NewDispatcher(cfg, client, jobStore, log)
	go dispatcher.Run(ctx)

	sweeper := scheduler.NewSweeper(reconcilerService, cfg.GetReconciliationInterval(), log)
	go sweeper.Run(ctx)

	if poller := email.NewPoller(cfg, email.NewRepliesRepository(pool), eventBus, log); poller != nil {
		go poller.Run(ctx)
	}

	worker, err := scheduler.NewWorker(cfg, eng, bulkService, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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

	return fmt.Errorf("%s: %w", name, lastErr)
}
