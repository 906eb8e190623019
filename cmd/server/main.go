package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	accesshandler "healthexchange/internal/access/handler"
	accessmetrics "healthexchange/internal/access/metrics"
	accessservice "healthexchange/internal/access/service"
	accessstore "healthexchange/internal/access/store"
	"healthexchange/internal/audit"
	emergencyhandler "healthexchange/internal/emergency/handler"
	emergencyservice "healthexchange/internal/emergency/service"
	identityhandler "healthexchange/internal/identity/handler"
	identitymetrics "healthexchange/internal/identity/metrics"
	identityservice "healthexchange/internal/identity/service"
	identitystore "healthexchange/internal/identity/store"
	"healthexchange/internal/jwttoken"
	"healthexchange/internal/platform/config"
	"healthexchange/internal/platform/httpserver"
	"healthexchange/internal/platform/kafka"
	"healthexchange/internal/platform/logger"
	"healthexchange/internal/platform/metrics"
	"healthexchange/internal/platform/postgres"
	platformredis "healthexchange/internal/platform/redis"
	"healthexchange/internal/ratelimit"
	recordshandler "healthexchange/internal/records/handler"
	recordsmetrics "healthexchange/internal/records/metrics"
	recordsservice "healthexchange/internal/records/service"
	recordsstore "healthexchange/internal/records/store"
	httptransport "healthexchange/internal/transport/http"
	"healthexchange/pkg/platform/middleware/metadata"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: in-memory by default, PostgreSQL when a DSN is configured.
	var (
		db         *sql.DB
		users      identityservice.Store
		grants     accessservice.Store
		reports    recordsservice.Store
		auditStore audit.Store
		outbox     *audit.PostgresStore
	)
	if cfg.PostgresDSN != "" {
		var err error
		db, err = postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			log.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		users = identitystore.NewPostgres(db)
		grants = accessstore.NewPostgres(db)
		reports = recordsstore.NewPostgres(db)
		outbox = audit.NewPostgresStore(db)
		auditStore = outbox
	} else {
		users = identitystore.NewInMemory()
		grants = accessstore.NewInMemory()
		reports = recordsstore.NewInMemory()
		auditStore = audit.NewInMemoryStore()
	}

	publisher := audit.NewPublisher(auditStore, audit.WithAsyncBuffer(256))
	defer publisher.Close()

	identitySvc := identityservice.New(users,
		identityservice.WithLogger(log),
		identityservice.WithAuditPublisher(publisher),
		identityservice.WithMetrics(identitymetrics.New()),
	)
	accessSvc := accessservice.New(grants, identitySvc,
		accessservice.WithLogger(log),
		accessservice.WithAuditPublisher(publisher),
		accessservice.WithMetrics(accessmetrics.New()),
	)
	recordsSvc := recordsservice.New(reports, accessSvc, identitySvc,
		recordsservice.WithLogger(log),
		recordsservice.WithAuditPublisher(publisher),
		recordsservice.WithMetrics(recordsmetrics.New()),
	)
	emergencySvc := emergencyservice.New(identitySvc, accessSvc,
		emergencyservice.WithLogger(log),
	)

	tokens := jwttoken.New(cfg.JWTSigningKey, "healthexchange", cfg.TokenTTL)

	// Rate limiting: shared Redis counters when configured, per-instance
	// memory otherwise.
	var limitStore ratelimit.Store = ratelimit.NewInMemoryStore()
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		limitStore = ratelimit.NewRedisStore(redisClient.Client)
	}
	limiter := ratelimit.New(limitStore, func(r *http.Request) string {
		return metadata.ClientIPFromRequest(r)
	}, cfg.RateLimitPerMinute, time.Minute, ratelimit.WithLogger(log))

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:    log,
		Identity:  identityhandler.New(identitySvc, tokens, log),
		Access:    accesshandler.New(accessSvc, log),
		Records:   recordshandler.New(recordsSvc, log),
		Emergency: emergencyhandler.New(emergencySvc, log),
		Tokens:    tokens,
		Limiter:   limiter,
		HTTP:      metrics.NewHTTP(prometheus.DefaultRegisterer),
		Health: func(w http.ResponseWriter, r *http.Request) {
			if db != nil {
				if err := db.PingContext(r.Context()); err != nil {
					http.Error(w, "database unavailable", http.StatusServiceUnavailable)
					return
				}
			}
			w.WriteHeader(http.StatusOK)
		},
	})

	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	worker := audit.NewWorker(auditStore, publisher.Inbox(), log)
	group.Go(func() error {
		if err := worker.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	var relay *audit.Relay
	if outbox != nil && len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(ctx, cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		defer producer.Close()

		relay = audit.NewRelay(outbox, producer, log, cfg.Kafka.RelayInterval)
		group.Go(func() error {
			if err := relay.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		err := srv.Shutdown(shutdownCtx)
		if relay != nil {
			// Final flush so events audited by in-flight requests do not
			// wait for the next process start to reach the broker.
			if drainErr := relay.Drain(shutdownCtx); drainErr != nil {
				log.Error("final audit relay flush failed", "error", drainErr)
			}
		}
		return err
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
