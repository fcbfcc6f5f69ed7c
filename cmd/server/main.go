// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/twmb/franz-go/pkg/kgo"

	"warden/internal/auditlog"
	"warden/internal/auth"
	"warden/internal/domain"
	"warden/internal/governor"
	"warden/internal/governor/handler"
	"warden/internal/governor/metrics"
	"warden/internal/governor/ports"
	"warden/internal/graph"
	graphcache "warden/internal/graph/cache"
	"warden/internal/platform/config"
	"warden/internal/platform/httpserver"
	"warden/internal/platform/logger"
	"warden/internal/platform/middleware"
	platformredis "warden/internal/platform/redis"
	httptransport "warden/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(logger.LevelFromEnv())

	ctx := context.Background()
	checks := map[string]httptransport.HealthCheck{}

	trail, closeTrail, err := buildTrail(ctx, cfg, checks)
	if err != nil {
		log.Error("change log setup failed", "error", err)
		os.Exit(1)
	}
	defer closeTrail()

	graphPort, closeGraph, err := buildGraph(cfg, log, checks)
	if err != nil {
		log.Error("graph setup failed", "error", err)
		os.Exit(1)
	}
	defer closeGraph()

	svc := governor.New(cfg.Governance, graphPort, trail, governor.NewInMemoryRegistry(),
		governor.WithLogger(log),
		governor.WithMetrics(metrics.New()),
	)
	// Default sink: surface pending decisions in the log until a real
	// notification channel is configured.
	svc.OnApprovalRequired(func(ctx context.Context, req *domain.ChangeRequest) error {
		log.InfoContext(ctx, "approval required",
			"request_id", req.ID,
			"target_id", req.TargetID,
			"risk_score", req.Risk.Score,
			"risk_level", req.Risk.Level,
		)
		return nil
	})

	tokens := auth.NewTokenService(cfg.JWTSigningKey, cfg.JWTIssuer)
	requireAuth := middleware.RequireAuth(tokens, log)

	router := httptransport.NewRouter(handler.New(svc, log), requireAuth, checks)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting warden", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// buildTrail selects the change log backend: postgres when configured,
// in-memory otherwise, with optional Kafka streaming layered on top.
func buildTrail(ctx context.Context, cfg config.Server, checks map[string]httptransport.HealthCheck) (ports.AuditPort, func(), error) {
	var store auditlog.Store = auditlog.NewInMemoryStore()
	cleanup := func() {}

	if cfg.Postgres.URL != "" {
		db, err := sql.Open("postgres", cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		pg := auditlog.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		checks["postgres"] = db.PingContext
		store = pg
		cleanup = func() { db.Close() }
	}

	if len(cfg.Kafka.Brokers) > 0 {
		client, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.Kafka.Brokers...),
			kgo.AllowAutoTopicCreation(),
		)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		streamer := auditlog.NewStreamer(store, client, cfg.Kafka.Topic)
		checks["kafka"] = client.Ping
		prev := cleanup
		cleanup = func() {
			streamer.Close()
			prev()
		}
		store = streamer
	}

	return store, cleanup, nil
}

// buildGraph returns the graph collaborator, wrapped in a Redis node cache
// when one is configured.
func buildGraph(cfg config.Server, log *slog.Logger, checks map[string]httptransport.HealthCheck) (ports.GraphPort, func(), error) {
	var port ports.GraphPort = graph.NewInMemoryStore()
	cleanup := func() {}

	rdb, err := platformredis.New(cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if rdb != nil {
		port = graphcache.New(port, rdb.Client,
			graphcache.WithTTL(cfg.Redis.NodeTTL),
			graphcache.WithLogger(log),
		)
		checks["redis"] = rdb.Health
		cleanup = func() { rdb.Close() }
	}

	return port, cleanup, nil
}
