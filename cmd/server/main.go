// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
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
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"unify/internal/contact"
	"unify/internal/identify/handler"
	"unify/internal/identify/lock"
	"unify/internal/identify/service"
	"unify/internal/platform/config"
	"unify/internal/platform/httpserver"
	"unify/internal/platform/logger"
	"unify/internal/platform/metrics"
	"unify/internal/platform/middleware"
	"unify/internal/platform/postgres"
	platformredis "unify/internal/platform/redis"
	"unify/internal/platform/sqlite"
)

func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	var opts []service.Option
	if cfg.SerializeIdentify {
		locker, err := buildLocker(cfg)
		if err != nil {
			return err
		}
		opts = append(opts, service.WithLocker(locker))
		log.Info("identify serialization enabled", "backend", cfg.LockBackend)
	}

	svc := service.New(store, log, m, opts...)
	h := handler.New(svc, log, m)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.Latency(m))
	h.Register(r)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := httpserver.New(cfg.Addr, r)

	log.Info("starting unify", "addr", cfg.Addr, "store", cfg.StoreDriver)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
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
	return g.Wait()
}

// openStore builds the configured contact store and returns its cleanup.
func openStore(ctx context.Context, cfg config.Config) (contact.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return contact.NewPostgresStore(db), func() { _ = db.Close() }, nil
	case config.StoreSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return contact.NewSQLiteStore(db), func() { _ = db.Close() }, nil
	default:
		return contact.NewInMemoryStore(), func() {}, nil
	}
}

// buildLocker picks the fingerprint lock backend for serialized mode.
func buildLocker(cfg config.Config) (lock.Locker, error) {
	if cfg.LockBackend == config.LockRedis {
		client, err := platformredis.New(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect lock backend: %w", err)
		}
		return lock.NewRedisLocker(client), nil
	}
	return lock.NewKeyedMutex(), nil
}
