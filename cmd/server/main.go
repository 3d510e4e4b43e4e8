// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal service
// packages.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	aggregatehandler "sealedger/internal/aggregate/handler"
	aggregatemetrics "sealedger/internal/aggregate/metrics"
	aggregateservice "sealedger/internal/aggregate/service"
	aggregatestore "sealedger/internal/aggregate/store"
	"sealedger/internal/confidential"
	inspectionhandler "sealedger/internal/inspection/handler"
	inspectionmetrics "sealedger/internal/inspection/metrics"
	inspectionservice "sealedger/internal/inspection/service"
	inspectionstore "sealedger/internal/inspection/store"
	"sealedger/internal/platform/config"
	"sealedger/internal/platform/httpserver"
	"sealedger/internal/platform/logger"
	registryhandler "sealedger/internal/registry/handler"
	registrymetrics "sealedger/internal/registry/metrics"
	registryservice "sealedger/internal/registry/service"
	registrystore "sealedger/internal/registry/store"
	"sealedger/pkg/platform/audit"
	auditpublisher "sealedger/pkg/platform/audit/publisher"
	auditmemory "sealedger/pkg/platform/audit/store/memory"
	auditpostgres "sealedger/pkg/platform/audit/store/postgres"
	adminmw "sealedger/pkg/platform/middleware/admin"
	authmw "sealedger/pkg/platform/middleware/auth"
	"sealedger/pkg/platform/middleware/requestmeta"
)

func main() {
	log := logger.New()
	slog.SetDefault(log)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("configuration error", "err", err)
		os.Exit(1)
	}

	engine, err := confidential.NewSealedEngine(cfg.SealingKey)
	if err != nil {
		log.Error("sealing engine init failed", "err", err)
		os.Exit(1)
	}
	values := confidential.NewStore(engine)

	ctx := context.Background()

	var db *sql.DB
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres open failed", "err", err)
			os.Exit(1)
		}
		if err := migrate(ctx, db); err != nil {
			log.Error("postgres migration failed", "err", err)
			os.Exit(1)
		}
	}

	recorder, closeRecorder, err := buildRecorder(ctx, cfg, db, log)
	if err != nil {
		log.Error("audit recorder init failed", "err", err)
		os.Exit(1)
	}
	defer closeRecorder()

	var inspectors registryservice.InspectorStore = registrystore.NewInMemory()
	var records inspectionservice.RecordStore = inspectionstore.NewInMemory()
	if db != nil {
		inspectors = registrystore.NewPostgres(db)
		records = inspectionstore.NewPostgres(db)
	}

	var metricsStore aggregateservice.MetricsStore = aggregatestore.NewInMemory()
	if cfg.RedisAddr != "" {
		metricsStore = aggregatestore.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}

	registry, err := registryservice.New(cfg.Owner, inspectors,
		registryservice.WithLogger(log),
		registryservice.WithRecorder(recorder),
		registryservice.WithMetrics(registrymetrics.New()),
	)
	if err != nil {
		log.Error("registry init failed", "err", err)
		os.Exit(1)
	}

	ledger := inspectionservice.New(records, registry, values,
		inspectionservice.WithLogger(log),
		inspectionservice.WithRecorder(recorder),
		inspectionservice.WithMetrics(inspectionmetrics.New()),
	)
	// The stats counter comes from the ledger, which itself depends on the
	// registry, so it is wired after both exist.
	registryservice.WithInspectionCounter(ledger)(registry)

	aggregator := aggregateservice.New(records, values, metricsStore, registry,
		aggregateservice.WithLogger(log),
		aggregateservice.WithRecorder(recorder),
		aggregateservice.WithMetrics(aggregatemetrics.New()),
	)

	registryHandler := registryhandler.New(registry)
	inspectionHandler := inspectionhandler.New(ledger)
	aggregateHandler := aggregatehandler.New(aggregator)
	verifier := authmw.NewTokenVerifier(cfg.JWTSigningKey)

	router := chi.NewRouter()
	router.Use(requestmeta.Middleware)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Group(func(r chi.Router) {
		registryHandler.MountPublic(r)
		inspectionHandler.MountPublic(r)
		aggregateHandler.MountPublic(r)
	})
	router.Route("/admin", func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(cfg.AdminToken, cfg.Owner, log))
		registryHandler.MountAdmin(r)
		aggregateHandler.MountAdmin(r)
	})
	router.Group(func(r chi.Router) {
		r.Use(authmw.RequireCaller(verifier, log))
		inspectionHandler.MountInspector(r)
		aggregateHandler.MountInspector(r)
	})

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting sealedger", "addr", cfg.Addr, "owner", cfg.Owner.String())

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
		os.Exit(1)
	}
}

// buildRecorder picks the audit sink: Kafka when brokers are configured,
// postgres when only a database is, in-memory otherwise.
func buildRecorder(ctx context.Context, cfg config.Server, db *sql.DB, log *slog.Logger) (audit.Store, func(), error) {
	if len(cfg.KafkaBrokers) > 0 {
		pub, err := auditpublisher.New(ctx, cfg.KafkaBrokers, auditpublisher.WithLogger(log))
		if err != nil {
			return nil, nil, err
		}
		return pub, pub.Close, nil
	}
	if db != nil {
		return auditpostgres.New(db), func() {}, nil
	}
	return auditmemory.NewInMemoryStore(), func() {}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, schema := range []string{
		registrystore.Schema(),
		inspectionstore.Schema(),
		auditpostgres.Schema(),
	} {
		if _, err := db.ExecContext(ctx, schema); err != nil {
			return err
		}
	}
	return nil
}
