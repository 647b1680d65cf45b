package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"sns/internal/platform/config"
	"sns/internal/platform/httpserver"
	"sns/internal/platform/logger"
	"sns/internal/platform/metrics"
	registrymetrics "sns/internal/registry/metrics"
	"sns/internal/registry/outbox"
	"sns/internal/registry/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the registry, its outbox relay and the ops listener",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	m := registrymetrics.New(reg)

	db, ping, closeDB, err := openBackend(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() { _ = closeDB() }()

	nameCache, redisClient, err := buildCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithCache(nameCache),
	}
	if cfg.Registry.MinimumReserve > 0 {
		opts = append(opts, service.WithMinimumReserve(cfg.Registry.MinimumReserve))
	}
	svc, err := service.New(db, opts...)
	if err != nil {
		return err
	}
	if err := genesis(ctx, svc, db, cfg.Genesis, log); err != nil {
		return err
	}

	out, err := buildSinks(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer out.Close()

	worker := outbox.NewWorker(db, out.sink,
		outbox.WithInterval(cfg.Outbox.Interval),
		outbox.WithBatchSize(cfg.Outbox.BatchSize),
		outbox.WithLogger(log),
		outbox.WithMetrics(m),
	)

	checks := map[string]httpserver.Check{"store": ping}
	if redisClient != nil {
		checks["redis"] = redisClient.Health
	}
	srv := httpserver.New(cfg.Server.Addr, httpserver.NewOpsRouter(log, metrics.Handler(reg), checks))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := worker.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		log.Info("starting registryd", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info("registryd stopped")
	return err
}
