package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"sns/internal/platform/config"
	"sns/internal/platform/kafka"
	platformnats "sns/internal/platform/nats"
	platformredis "sns/internal/platform/redis"
	"sns/internal/registry/cache"
	"sns/internal/registry/outbox"
	"sns/internal/registry/ports"
	"sns/internal/registry/service"
	"sns/internal/registry/store"
	id "sns/pkg/domain"
	dErrors "sns/pkg/domain-errors"
)

// backend is what the daemon needs from a store beyond the service port.
type backend interface {
	ports.Substrate
	ports.Outbox
	Credit(ctx context.Context, account id.Identity, amount uint64) error
}

// openBackend returns the Postgres store when a URL is configured, otherwise
// the in-memory store. The returned closer is never nil.
func openBackend(ctx context.Context, cfg config.Database, logger *slog.Logger) (backend, func(context.Context) error, func() error, error) {
	if cfg.URL == "" {
		logger.Warn("no database configured, state is held in memory")
		return store.NewInMemory(), func(context.Context) error { return nil }, func() error { return nil }, nil
	}
	db, err := store.Open(ctx, cfg.URL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := store.Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	pg := store.NewPostgres(db)
	return pg, pg.Ping, db.Close, nil
}

// openDB is used by commands that only need the raw pool.
func openDB(ctx context.Context, url string) (*sql.DB, error) {
	if url == "" {
		return nil, fmt.Errorf("REGISTRY_DATABASE_URL is required")
	}
	return store.Open(ctx, url)
}

// buildCache prefers Redis and falls back to the in-process cache.
func buildCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (service.NameCache, *platformredis.Client, error) {
	client, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return cache.NewMemory(cfg.Registry.CacheTTL, logger), nil, nil
	}
	return cache.NewRedis(client, cfg.Registry.CacheTTL, logger), client, nil
}

// sinks holds the broker connections behind the outbox fanout so they can be
// closed on shutdown.
type sinks struct {
	sink    outbox.Sink
	closers []func()
}

func (s *sinks) Close() {
	for _, c := range s.closers {
		c()
	}
}

// buildSinks always includes a log sink and adds Kafka and NATS when
// configured.
func buildSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sinks, error) {
	out := &sinks{}
	fanout := outbox.Fanout{outbox.NewLogSink(logger)}

	client, err := kafka.New(ctx, cfg.Kafka.Brokers)
	if err != nil {
		return nil, err
	}
	if client != nil {
		out.closers = append(out.closers, client.Close)
		if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.Topic, 1, 1); err != nil {
			out.Close()
			return nil, err
		}
		fanout = append(fanout, outbox.NewKafkaSink(client, cfg.Kafka.Topic))
	}

	conn, err := platformnats.Connect(cfg.NATS.URL, logger)
	if err != nil {
		out.Close()
		return nil, err
	}
	if conn != nil {
		out.closers = append(out.closers, conn.Close)
		fanout = append(fanout, outbox.NewNATSSink(conn))
	}

	out.sink = fanout
	return out, nil
}

// genesis initializes the registry from configuration unless it already is.
func genesis(ctx context.Context, svc *service.Service, funder backend, cfg config.Genesis, logger *slog.Logger) error {
	if cfg.Admin == "" || cfg.Treasury == "" {
		logger.Info("genesis not configured, waiting for external initialization")
		return nil
	}
	deployer, err := id.ParseIdentity(cfg.Deployer)
	if err != nil {
		return fmt.Errorf("genesis deployer: %w", err)
	}
	admin, err := id.ParseIdentity(cfg.Admin)
	if err != nil {
		return fmt.Errorf("genesis admin: %w", err)
	}
	treasury, err := id.ParseIdentity(cfg.Treasury)
	if err != nil {
		return fmt.Errorf("genesis treasury: %w", err)
	}

	if _, err := svc.GetConfig(ctx); err == nil {
		return nil
	} else if !dErrors.HasCode(err, dErrors.CodeNotInitialized) {
		return err
	}

	if cfg.FundDeployer {
		if err := funder.Credit(ctx, deployer, svc.MinimumReserve()); err != nil {
			return fmt.Errorf("fund deployer: %w", err)
		}
	}
	_, err = svc.Initialize(ctx, deployer, admin, treasury, cfg.PricePerChar)
	if dErrors.HasCode(err, dErrors.CodeAlreadyInitialized) {
		return nil
	}
	return err
}
