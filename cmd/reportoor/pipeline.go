package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ethpandaops/reportoor/pkg/config"
	"github.com/ethpandaops/reportoor/pkg/consumer"
	"github.com/ethpandaops/reportoor/pkg/deadletter"
	"github.com/ethpandaops/reportoor/pkg/events"
	"github.com/ethpandaops/reportoor/pkg/idalloc"
	"github.com/ethpandaops/reportoor/pkg/metrics"
	"github.com/ethpandaops/reportoor/pkg/queue"
	"github.com/ethpandaops/reportoor/pkg/redisclient"
	"github.com/ethpandaops/reportoor/pkg/status"
	"github.com/ethpandaops/reportoor/pkg/store"
	"github.com/ethpandaops/reportoor/pkg/uniqueid"
)

// pipeline holds the components shared by the api and worker commands.
type pipeline struct {
	store     store.Store
	redis     redis.UniversalClient
	broker    queue.Broker
	allocator idalloc.Allocator
}

// usesRedis reports whether any configured component needs the shared
// Redis client.
func usesRedis(cfg *config.Config) bool {
	return cfg.Broker.Driver == "redis" ||
		cfg.IDAllocator.Backend == "redis" ||
		cfg.Events.Driver == "redis"
}

// openPipeline starts the store, seeds users and connects the broker and the
// identifier allocator.
func openPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	p := &pipeline{
		store: store.NewStore(log, &cfg.Database),
	}

	if err := p.store.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting store: %w", err)
	}

	if err := p.store.SeedUsers(ctx, cfg.Auth.Users); err != nil {
		p.close()

		return nil, fmt.Errorf("seeding users: %w", err)
	}

	if usesRedis(cfg) {
		client, err := redisclient.New(ctx, cfg.Redis.URL)
		if err != nil {
			p.close()

			return nil, fmt.Errorf("connecting to redis: %w", err)
		}

		p.redis = client
	}

	switch cfg.Broker.Driver {
	case "redis":
		p.broker = queue.NewRedisBroker(log, p.redis, queue.RedisOptions{
			StreamPrefix:    cfg.Broker.Redis.StreamPrefix,
			Group:           cfg.Broker.Redis.Group,
			Partitions:      cfg.Broker.Partitions,
			BatchSize:       int64(cfg.Broker.Redis.BatchSize),
			BlockTimeout:    cfg.Broker.Redis.BlockTimeout,
			LeaseTTL:        cfg.Broker.Redis.LeaseTTL,
			RedeliveryDelay: cfg.Broker.RedeliveryDelay,
			MaxLen:          cfg.Broker.Redis.MaxLen,
		})
	default:
		p.broker = queue.NewMemoryBroker(log, cfg.Broker.Partitions, cfg.Broker.RedeliveryDelay)
	}

	allocator, err := idalloc.New(log, &cfg.IDAllocator, p.store, p.redis)
	if err != nil {
		p.close()

		return nil, fmt.Errorf("creating id allocator: %w", err)
	}

	p.allocator = allocator

	log.WithField("broker", cfg.Broker.Driver).
		WithField("partitions", cfg.Broker.Partitions).
		WithField("id_allocator", cfg.IDAllocator.Backend).
		Info("Pipeline ready")

	return p, nil
}

// newWorker builds the consumer for the pipeline broker.
func (p *pipeline) newWorker(cfg *config.Config) (consumer.Worker, error) {
	publisher, err := events.New(log, &cfg.Events, p.redis)
	if err != nil {
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}

	sink, err := deadletter.New(log, &cfg.DeadLetter)
	if err != nil {
		return nil, fmt.Errorf("creating dead letter sink: %w", err)
	}

	router := queue.NewRouter()
	consumer.NewMaterializer(
		log, p.store, status.DefaultTables(), uniqueid.NewGenerator(), publisher,
	).Register(router)

	return consumer.NewWorker(log, p.broker, router, sink, consumer.WorkerOptions{
		MaxDeliveries: cfg.Worker.MaxDeliveries,
	}), nil
}

func (p *pipeline) close() {
	if p.broker != nil {
		if err := p.broker.Close(); err != nil {
			log.WithError(err).Warn("Failed to close broker")
		}
	}

	if p.redis != nil {
		if err := p.redis.Close(); err != nil {
			log.WithError(err).Warn("Failed to close redis client")
		}
	}

	if err := p.store.Stop(); err != nil {
		log.WithError(err).Warn("Failed to stop store")
	}
}

// waitForSignal blocks until SIGINT or SIGTERM.
func waitForSignal() os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	defer signal.Stop(sigCh)

	return <-sigCh
}

// startMetricsServer serves /metrics on listen until the returned server is
// shut down.
func startMetricsServer(listen string) (*http.Server, error) {
	metrics.Register()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", listen, err)
	}

	go func() {
		log.WithField("listen", listen).Info("Metrics server starting")

		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server error")
		}
	}()

	return srv, nil
}
