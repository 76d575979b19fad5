// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal services.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sevasetu/internal/audit"
	"sevasetu/internal/conversation"
	"sevasetu/internal/eligibility"
	"sevasetu/internal/platform/config"
	"sevasetu/internal/platform/httpserver"
	"sevasetu/internal/platform/logger"
	"sevasetu/internal/platform/metrics"
	platformredis "sevasetu/internal/platform/redis"
	"sevasetu/internal/review"
	"sevasetu/internal/scheme"
	httptransport "sevasetu/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer log.Sync() //nolint:errcheck

	// Scheme store: postgres when configured, in-memory otherwise.
	var schemeStore scheme.Store
	if cfg.Postgres.DSN != "" {
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			log.Fatal("open postgres", zap.Error(err))
		}
		defer db.Close()
		schemeStore = scheme.NewPostgresStore(db)
	} else {
		schemeStore = scheme.NewInMemoryStore()
	}

	// Audit pipeline: events flow through a buffered inbox into the sink so
	// emitting stays off the session's critical path.
	var auditSink audit.Store
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaStore, err := audit.NewKafkaStore(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Fatal("create kafka audit store", zap.Error(err))
		}
		defer kafkaStore.Close()
		auditSink = kafkaStore
	} else {
		auditSink = audit.NewInMemoryStore()
	}
	inbox := make(chan audit.Event, 256)
	auditor := audit.NewPublisher(audit.NewChannelStore(inbox))
	worker := audit.NewWorker(auditSink, inbox)

	m := metrics.New()

	reviewService, err := review.NewService(review.NewInMemoryStore(), auditor, log)
	if err != nil {
		log.Fatal("create review service", zap.Error(err))
	}

	// Session persistence: redis when configured, in-memory otherwise.
	var sessionStore conversation.SessionStore
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Fatal("connect redis", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
		sessionStore = conversation.NewRedisSessionStore(redisClient.Client, cfg.Retention)
	} else {
		sessionStore = conversation.NewInMemorySessionStore()
	}

	sessions, err := conversation.NewService(
		schemeStore, eligibility.NewEngine(), reviewService, sessionStore, auditor, log, m)
	if err != nil {
		log.Fatal("create conversation service", zap.Error(err))
	}

	handler := httptransport.NewHandler(sessions, schemeStore, reviewService, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting sevasetu", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := worker.Run(gctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
