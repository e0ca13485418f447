package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"catchcert/internal/audit"
	"catchcert/internal/certificate/cache"
	certmetrics "catchcert/internal/certificate/metrics"
	"catchcert/internal/certificate/numbering"
	"catchcert/internal/certificate/service"
	"catchcert/internal/certificate/store"
	"catchcert/internal/platform/config"
	"catchcert/internal/platform/httpserver"
	"catchcert/internal/platform/logger"
	"catchcert/internal/platform/postgres"
	"catchcert/internal/platform/redis"
	httpapi "catchcert/internal/transport/http"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal/certificate packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	db, err := postgres.Open(cfg.Postgres)
	if err != nil {
		log.Error("postgres connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	docStore := store.NewPostgresStore(db)
	if err := docStore.EnsureSchema(ctx); err != nil {
		log.Error("document schema failed", "error", err)
		os.Exit(1)
	}
	numbers := numbering.NewPostgresAuthority(db)
	if err := numbers.EnsureSchema(ctx); err != nil {
		log.Error("numbering schema failed", "error", err)
		os.Exit(1)
	}

	// Redis is optional: without it the draft cache runs in-process, which
	// keeps single-instance deployments working, only colder.
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	var cacheClient cache.Client
	if redisClient != nil {
		defer redisClient.Close()
		cacheClient = cache.NewRedisClient(redisClient.Client)
	} else {
		log.Warn("redis not configured, using in-memory draft cache")
		cacheClient = cache.NewMemoryClient()
	}

	var publisher audit.Publisher = audit.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := audit.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("kafka connect failed", "error", err)
			os.Exit(1)
		}
		async := audit.NewAsyncPublisher(kafka, cfg.Kafka.Buffer,
			audit.WithDropHandler(func(e audit.Event) {
				log.Warn("audit event dropped", "action", e.Action, "document", e.DocumentNumber)
			}))
		defer async.Close()
		publisher = async
	}

	m := certmetrics.New()
	draftCache := cache.New(cacheClient, cache.WithLogger(log), cache.WithMetrics(m))
	svc, err := service.New(docStore, draftCache, numbers,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithAuditPublisher(publisher),
	)
	if err != nil {
		log.Error("service construction failed", "error", err)
		os.Exit(1)
	}
	deps := map[string]httpapi.Pinger{
		"postgres": httpapi.PingerFunc(db.PingContext),
		"redis":    nil,
	}
	if redisClient != nil {
		deps["redis"] = redisClient
	}

	srv := httpserver.New(cfg.Server.Addr, httpapi.NewRouter(httpapi.NewHandler(svc), deps))
	log.Info("starting catchcert", "addr", cfg.Server.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
