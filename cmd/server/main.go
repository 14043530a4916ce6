package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"efrn/internal/agents"
	jwttoken "efrn/internal/jwt_token"
	"efrn/internal/ledger"
	ledgermemory "efrn/internal/ledger/store/memory"
	ledgerpostgres "efrn/internal/ledger/store/postgres"
	"efrn/internal/orchestrator"
	"efrn/internal/orchestrator/handler"
	orchmetrics "efrn/internal/orchestrator/metrics"
	"efrn/internal/override"
	"efrn/internal/pipeline"
	"efrn/internal/platform/config"
	"efrn/internal/platform/httpserver"
	"efrn/internal/platform/kafka"
	"efrn/internal/platform/logger"
	"efrn/internal/platform/metrics"
	"efrn/internal/platform/postgres"
	redisclient "efrn/internal/platform/redis"
	"efrn/internal/ratelimit"
	"efrn/internal/transaction/store"
	httptransport "efrn/internal/transport/http"
	"efrn/pkg/platform/audit"
	"efrn/pkg/platform/keylock"
	"efrn/pkg/platform/middleware/auth"
)

// transactionStore is satisfied by both the in-memory and redis stores.
type transactionStore interface {
	orchestrator.TransactionStore
	override.TransactionStore
}

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	policy, err := buildPolicy(cfg.Policy)
	if err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	approvers, err := parseApprovers(cfg.Approvers)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	orchMetrics := orchmetrics.NewWithRegistry(reg)

	checks := map[string]httptransport.HealthCheck{}

	var ledgerStore ledger.Store = ledgermemory.New()
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		pg := ledgerpostgres.New(db)
		if err := pg.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate ledger: %w", err)
		}
		ledgerStore = pg
		checks["postgres"] = db.PingContext
		log.InfoContext(ctx, "ledger backed by postgres")
	}

	var (
		locker keylock.Locker   = keylock.NewMemory()
		txs    transactionStore = store.NewInMemory()
		limits ratelimit.Store  = ratelimit.NewMemoryStore()
	)
	rc, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rc != nil {
		defer rc.Close()
		locker = keylock.NewRedis(rc.Client, keylock.WithTTL(cfg.LockTTL))
		txs = store.NewRedis(rc.Client, store.WithTTL(cfg.Redis.TxTTL))
		limits = ratelimit.NewRedisStore(rc.Client)
		checks["redis"] = rc.Health
		log.InfoContext(ctx, "employee locks and transactions backed by redis")
	}

	sinks := []audit.Sink{audit.NewLogSink(log)}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka, kafka.WithLogger(log), kafka.WithRegistry(reg))
		if err != nil {
			return err
		}
		defer producer.Close(context.WithoutCancel(ctx))
		sinks = append(sinks, producer)
		checks["kafka"] = producer.Ping
		log.InfoContext(ctx, "ledger events published to kafka", "topic", cfg.Kafka.LedgerTopic)
	}
	fanout := audit.NewFanout(sinks, audit.WithMetrics(audit.NewMetrics(reg)), audit.WithLogger(log))

	ledgerSvc := ledger.NewService(ledgerStore,
		ledger.WithPublisher(ledger.NewEventPublisher(fanout)),
		ledger.WithMetrics(orchMetrics),
		ledger.WithLogger(log),
	)
	pipe := pipeline.New(agents.NewSet(policy),
		pipeline.WithRecorder(orchMetrics),
		pipeline.WithLogger(log),
	)
	overrides := override.New(txs, ledgerSvc, pipe, locker,
		override.WithApprovers(approvers...),
		override.WithMetrics(orchMetrics),
		override.WithLogger(log),
	)
	svc := orchestrator.New(pipe, ledgerSvc, txs, overrides, locker,
		orchestrator.WithMetrics(orchMetrics),
		orchestrator.WithLogger(log),
		orchestrator.WithTracer(otel.Tracer("efrn/orchestrator")),
	)

	var validator auth.TokenValidator
	if cfg.ApproverJWTSigningKey != "" {
		validator = jwttoken.NewJWTService(cfg.ApproverJWTSigningKey, cfg.ApproverJWTIssuer, cfg.ApproverJWTAudience)
	}

	var rateLimit func(http.Handler) http.Handler
	if cfg.RateLimitRequests > 0 {
		rateLimit = ratelimit.New(limits, cfg.RateLimitRequests, cfg.RateLimitWindow,
			ratelimit.WithLogger(log),
			ratelimit.WithRegistry(reg),
		).Handler
	}

	router := httptransport.NewRouter(httptransport.Config{
		ServiceName:  cfg.ServiceName,
		Orchestrator: handler.New(svc, log, validator),
		Registry:     reg,
		Checks:       checks,
		RateLimit:    rateLimit,
		Logger:       log,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(gctx, "starting efrn orchestrator", "addr", cfg.Addr)
		return httpserver.Serve(gctx, srv, cfg.ShutdownTimeout)
	})
	g.Go(func() error {
		if err := fanout.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	err = g.Wait()
	log.InfoContext(ctx, "shutdown complete")
	return err
}
