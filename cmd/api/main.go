package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"leadcall_backend/internal/archive"
	"leadcall_backend/internal/bulk"
	"leadcall_backend/internal/callprovider"
	"leadcall_backend/internal/email"
	"leadcall_backend/internal/engine"
	"leadcall_backend/internal/events"
	"leadcall_backend/internal/fallback"
	apphttp "leadcall_backend/internal/http"
	"leadcall_backend/internal/http/router"
	"leadcall_backend/internal/jobs"
	"leadcall_backend/internal/leads"
	"leadcall_backend/internal/leadstore"
	"leadcall_backend/internal/reconciler"
	"leadcall_backend/internal/whatsapp"
	"leadcall_backend/platform/config"
	"leadcall_backend/platform/db"
	"leadcall_backend/platform/logger"
	"leadcall_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	leadStore := leadstore.NewCachedStore(leadstore.NewRepository(pool), 5*time.Second)
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

	var archiver reconciler.Archiver
	archiveStore, err := archive.NewStore(cfg)
	if err != nil {
		log.Error("failed to initialize report archive", "error", err)
		panic("failed to initialize report archive: " + err.Error())
	}
	if archiveStore != nil {
		if err := withRetry(ctx, log, "ensure archive bucket", 5, 2*time.Second, func() error {
			return archiveStore.EnsureBucket(ctx)
		}); err != nil {
			log.Error("failed to ensure archive bucket exists", "error", err)
			panic("failed to ensure archive bucket exists: " + err.Error())
		}
		archiver = archiveStore
		log.Info("report archive initialized", "bucket", cfg.GetMinioBucketCallReports())
	}

	reconcilerService := reconciler.NewService(
		eng,
		leadStore,
		reconciler.NewRepository(pool),
		providerClient,
		archiver,
		eventBus,
		cfg.GetCallMaxDuration(),
		log,
	)

	leadsModule := leads.NewModule(leadStore, jobStore, eng, policy, eventBus, val, log)
	leadsModule.Service.RegisterHandlers(eventBus)
	bulkModule := bulk.NewModule(pool, jobStore, eventBus, val, log)
	reconcilerModule := reconciler.NewModule(reconcilerService, cfg, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
			bulkModule,
			reconcilerModule,
		},
	}

	ginEngine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- ginEngine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
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
