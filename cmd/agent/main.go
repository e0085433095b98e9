// Command agent links a WhatsApp device, triages monitored chats for loan
// leads and serves the admin API.
package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/leadtriage/internal/api/router"
	"github.com/wolfman30/leadtriage/internal/app/bootstrap"
	"github.com/wolfman30/leadtriage/internal/audit"
	"github.com/wolfman30/leadtriage/internal/awsconfig"
	"github.com/wolfman30/leadtriage/internal/backup"
	appconfig "github.com/wolfman30/leadtriage/internal/config"
	"github.com/wolfman30/leadtriage/internal/leads"
	"github.com/wolfman30/leadtriage/internal/messaging"
	"github.com/wolfman30/leadtriage/internal/messaging/whatsapp"
	"github.com/wolfman30/leadtriage/internal/notify"
	"github.com/wolfman30/leadtriage/internal/observability/metrics"
	"github.com/wolfman30/leadtriage/internal/throttle"
	"github.com/wolfman30/leadtriage/internal/tracker"
	"github.com/wolfman30/leadtriage/internal/triage"
	"github.com/wolfman30/leadtriage/internal/worker/maintenance"
	"github.com/wolfman30/leadtriage/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.NewWithWriter(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	logger.Info("starting leadtriage agent",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
		"kv_backend", cfg.KVBackend,
		"classifier", cfg.ClassifierProvider,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("agent stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("agent exited gracefully")
}

func run(cfg *appconfig.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	triageMetrics := metrics.NewTriageMetrics(registry)

	var awsCfg *aws.Config
	if loaded, err := awsconfig.Load(ctx, cfg); err != nil {
		logger.Warn("aws config unavailable; AWS backends disabled", "error", err)
	} else {
		awsCfg = &loaded
	}

	// Initialize storage backends
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		closers = append(closers, redisClient)
	}
	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}
	backends := bootstrap.Backends{Redis: redisClient, Postgres: pool, AWS: awsCfg}

	kv, kvCloser, err := bootstrap.BuildKVStore(cfg, backends, logger)
	if err != nil {
		return err
	}
	if kvCloser != nil {
		closers = append(closers, kvCloser)
	}

	store := leads.NewStore(kv, logger).WithMetrics(triageMetrics)
	auditDB, err := bootstrap.BuildAuditDB(ctx, cfg)
	if err != nil {
		return err
	}
	if auditDB != nil {
		closers = append(closers, auditDB)
		store.WithHistoryObserver(audit.NewRecorder(auditDB, logger))
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("unknown TIMEZONE; using UTC", "timezone", cfg.Timezone, "error", err)
		location = time.UTC
	}
	limiter := throttle.New(kv, throttle.Config{
		AckCooldown:      cfg.AckCooldown,
		GreetingDailyCap: cfg.GreetingDailyCap,
		Location:         location,
	}, logger)
	leadTracker := tracker.New(store, tracker.NewClaims(cfg.HandlerClaimTTL), logger)

	// Initialize classifier
	cache, sweeper := bootstrap.BuildClassificationCache(cfg, backends)
	adapter, err := bootstrap.BuildClassifier(ctx, cfg, awsCfg, cache, triageMetrics, logger)
	if err != nil {
		return err
	}
	var classifier triage.Classifier
	if adapter != nil {
		classifier = adapter
	}

	// Initialize the chat transport; inbound messages queue until the engine is loaded
	var batcher *messaging.Batcher
	inbound := make(chan messaging.Inbound, messaging.DefaultMaxBatch*4)
	wa, err := whatsapp.New(ctx, whatsapp.Config{
		StoreDSN:        cfg.WhatsAppStoreDSN,
		MonitoredGroups: cfg.MonitoredGroups,
		IncludeDirect:   cfg.IncludeDirectChats,
	}, func(msg messaging.Inbound) {
		select {
		case inbound <- msg:
		default:
			logger.Warn("inbound queue full; message dropped", "message_id", msg.ID)
		}
	}, logger)
	if err != nil {
		return err
	}
	defer wa.Close()

	sender := messaging.NewRetrySender(wa, messaging.RetryConfig{
		MaxRetries: cfg.SendMaxRetries,
		Delay:      cfg.SendRetryDelay,
	}, logger).WithMetrics(triageMetrics)

	notifier := notify.NewService(bootstrap.BuildEmailSender(cfg, awsCfg, logger), sender, notify.Config{
		OperatorConversationID: cfg.OperatorConversationID,
		OperatorEmails:         bootstrap.OperatorEmails(cfg),
	}, logger)

	processed := bootstrap.BuildProcessedStore(backends)
	engine := triage.New(triage.Deps{
		Store:      store,
		Tracker:    leadTracker,
		Throttle:   limiter,
		Classifier: classifier,
		Sender:     sender,
		Notifier:   notifier,
		Publisher:  bootstrap.BuildPublisher(cfg, awsCfg),
		Processed:  processed,
	}, logger).WithMetrics(triageMetrics).WithConcurrency(cfg.ClassifierConcurrency)

	if err := engine.Load(ctx); err != nil {
		return err
	}

	var snapshots *backup.S3Backup
	if awsCfg != nil && cfg.BackupBucket != "" {
		snapshots = backup.NewS3Backup(s3.NewFromConfig(*awsCfg), cfg.BackupBucket, logger)
		restoreFromBackup(ctx, engine, store, snapshots, logger)
	}

	// Start background loops
	batcher = messaging.NewBatcher(func(ctx context.Context, batch []messaging.Inbound) error {
		err := engine.HandleBatch(ctx, batch)
		if errors.Is(err, triage.ErrBatchDropped) {
			logger.Warn("batch dropped while another batch was processing", "size", len(batch))
			return nil
		}
		return err
	}, cfg.BatchFlushInterval, messaging.DefaultMaxBatch, logger)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-inbound:
				if err := batcher.Add(msg); err != nil {
					logger.Warn("batcher rejected message", "message_id", msg.ID, "error", err)
				}
			}
		}
	}()
	batchDone := make(chan error, 1)
	go func() { batchDone <- batcher.Run(ctx) }()

	runner := maintenance.NewRunner(engine, logger).
		WithMarkers(processed).
		WithInterval(cfg.MaintenanceInterval)
	if sweeper != nil {
		runner.WithCache(sweeper)
	}
	if snapshots != nil {
		runner.WithBackup(snapshots, cfg.BackupInterval)
	}
	go runner.Run(ctx)

	// Setup router
	r := router.New(&router.Config{
		Logger:          logger,
		LeadsHandler:    leads.NewHandler(engine, logger),
		Health:          engine,
		MetricsHandler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		AdminAuthSecret: cfg.AdminJWTSecret,
	})
	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; admin API rejects every request")
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Go online last so nothing is received before the engine is ready
	if err := wa.Connect(ctx, os.Stdout); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-wa.Fatal():
		runErr = err
	case err := <-serverErr:
		runErr = err
	}
	stop()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := <-batchDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("batcher stopped with error", "error", err)
	}
	if err := engine.Flush(shutdownCtx); err != nil {
		logger.Error("final lead flush failed", "error", err)
	}
	return runErr
}

// restoreFromBackup seeds an empty store from the newest S3 snapshot.
func restoreFromBackup(ctx context.Context, engine *triage.Engine, store *leads.Store, snapshots *backup.S3Backup, logger *logging.Logger) {
	if store.Len() > 0 {
		return
	}
	snap, err := snapshots.Latest(ctx)
	if errors.Is(err, backup.ErrNoSnapshot) {
		return
	}
	if err != nil {
		logger.Warn("could not read lead backup", "error", err)
		return
	}
	if err := engine.Restore(ctx, snap.Leads); err != nil {
		logger.Warn("restore from backup failed", "error", err)
		return
	}
	logger.Info("restored leads from backup", "count", snap.Count, "taken_at", snap.TakenAt)
}
