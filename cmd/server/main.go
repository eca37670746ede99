package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	audithandler "custodia/internal/audit/handler"
	auditlogger "custodia/internal/audit/logger"
	auditmetrics "custodia/internal/audit/metrics"
	"custodia/internal/audit/notifier"
	auditstore "custodia/internal/audit/store"
	"custodia/internal/audit/workers/retention"
	"custodia/internal/classification"
	"custodia/internal/compliance"
	compliancehandler "custodia/internal/compliance/handler"
	consenthandler "custodia/internal/consent/handler"
	consentmetrics "custodia/internal/consent/metrics"
	consentservice "custodia/internal/consent/service"
	consentstore "custodia/internal/consent/store"
	"custodia/internal/keys"
	"custodia/internal/platform/config"
	"custodia/internal/platform/database"
	"custodia/internal/platform/health"
	"custodia/internal/platform/logger"
	"custodia/internal/platform/metrics"
	"custodia/internal/platform/middleware"
	"custodia/internal/secrets"
	secretshandler "custodia/internal/secrets/handler"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing custodia",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"gdpr_compliance_level", cfg.GDPRComplianceLevel,
		"medical_data_protection", cfg.MedicalDataProtection,
	)

	pool, err := database.New(database.Config{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    database.DefaultConfig().MaxOpenConns,
		MaxIdleConns:    database.DefaultConfig().MaxIdleConns,
		ConnMaxLifetime: database.DefaultConfig().ConnMaxLifetime,
	})
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
	}

	keyManager, err := keys.NewManager(cfg.AuditEncryptionKey)
	if err != nil {
		log.Error("failed to derive encryption keys", "error", err)
		os.Exit(1)
	}
	defer keyManager.Close()

	// Audit trail: durable store, alert forwarding, retention tiers.
	var auditStorage auditstore.Store
	if pool != nil {
		auditStorage = auditstore.NewPostgres(pool.DB())
	} else {
		log.Warn("no database configured, audit trail is in-memory only")
		auditStorage = auditstore.NewInMemory()
	}

	var sink notifier.Sink = notifier.LogSink{Logger: log}
	if cfg.KafkaBrokers != "" {
		kafkaSink, err := notifier.NewKafkaSink(notifier.KafkaSinkConfig{Brokers: cfg.KafkaBrokers}, log)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sink = kafkaSink
	}
	forwarder := notifier.NewForwarder(sink, notifier.WithLogger(log))
	defer forwarder.Close()

	auditLog := auditlogger.New(auditStorage, log,
		auditlogger.WithNotifier(forwarder),
		auditlogger.WithMetrics(auditmetrics.New()),
		auditlogger.WithArchiveThreshold(cfg.ArchiveThreshold),
		auditlogger.WithDefaultRetentionDays(cfg.RetentionDays),
	)

	// Consent ledger.
	var consentStorage consentservice.Store
	if pool != nil {
		consentStorage = consentstore.NewPostgres(pool.DB())
	} else {
		consentStorage = consentstore.NewInMemory()
	}
	consentSvc := consentservice.NewService(consentStorage, auditLog, log,
		consentservice.WithMetrics(consentmetrics.New()),
	)

	// Classification and the compliance gate.
	classifier := classification.New(
		classification.WithDefaultRetentionDays(cfg.RetentionDays),
	)
	gate := compliance.NewGate(consentSvc, cfg.MedicalDataProtection, cfg.GDPRComplianceLevel)

	// Secret store, encrypted with the per-tier keys.
	secretStore := secrets.NewStore(keyManager, auditLog, log)

	retentionWorker, err := retention.New(auditLog, retention.WithLogger(log))
	if err != nil {
		log.Error("failed to build retention worker", "error", err)
		os.Exit(1)
	}

	healthHandler := health.New(cfg.Environment)
	if pool != nil {
		healthHandler.RegisterCheck("database", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Health(ctx)
		})
	}
	if kafkaSink, ok := sink.(*notifier.KafkaSink); ok {
		healthHandler.RegisterCheck("kafka", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return kafkaSink.Ping(ctx)
		})
	}

	router := chi.NewRouter()
	router.Use(
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.UserContext,
		middleware.Logger(log),
		middleware.Metrics(metrics.New()),
	)
	healthHandler.Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Group(func(r chi.Router) {
		r.Use(
			middleware.Timeout(30*time.Second),
			middleware.AccessLog(auditLog, log),
		)
		consenthandler.New(consentSvc, log).Register(r)
		compliancehandler.New(classifier, gate, consentSvc, cfg.RetentionDays, log).Register(r)
		audithandler.New(auditLog, log).Register(r)
		secretshandler.New(secretStore, log).Register(r)
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		if err := retentionWorker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
