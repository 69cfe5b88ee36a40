// Command stockledgerd serves the stock ledger over HTTP.
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
	_ "time/tzdata"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	"github.com/sukino/stockledger"
	"github.com/sukino/stockledger/api"
	audithook "github.com/sukino/stockledger/audit_hook"
	"github.com/sukino/stockledger/distlock"
	"github.com/sukino/stockledger/events"
	"github.com/sukino/stockledger/observability"
	"github.com/sukino/stockledger/store"
	"github.com/sukino/stockledger/store/memory"
	"github.com/sukino/stockledger/store/mongo"
	"github.com/sukino/stockledger/store/postgres"
	"github.com/sukino/stockledger/store/sqlite"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment")
	}

	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("stockledgerd exited", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level()}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func run(cfg *Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	opts := []stockledger.Option{
		stockledger.WithLogger(logger),
		stockledger.WithLocation(cfg.Location()),
		stockledger.WithMaxWriteRetries(cfg.MaxWriteRetries),
		stockledger.WithPluginTimeout(cfg.PluginTimeout),
		stockledger.WithPlugin(audithook.New(audithook.SlogRecorder(logger), audithook.WithLogger(logger))),
	}
	if len(cfg.Branches) > 0 {
		opts = append(opts, stockledger.WithBranches(cfg.Branches...))
	}

	var closers []func() error

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		closers = append(closers, rdb.Close)
		opts = append(opts, stockledger.WithLocker(distlock.New(rdb, distlock.WithTTL(cfg.LockTTL))))
		logger.Info("using redis item lock", "addr", cfg.RedisAddr)
	}

	var gatherer prometheus.Gatherer
	if cfg.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, stockledger.WithPlugin(
			observability.NewMetricsExtension(observability.NewPrometheusFactory(reg)),
		))
		gatherer = reg
	}

	if cfg.PubSubProject != "" {
		var clientOpts []option.ClientOption
		if cfg.PubSubCredentialsJSON != "" {
			clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(cfg.PubSubCredentialsJSON)))
		}
		client, err := pubsub.NewClient(ctx, cfg.PubSubProject, clientOpts...)
		if err != nil {
			return fmt.Errorf("pubsub client: %w", err)
		}
		closers = append(closers, client.Close)

		var pubOpts []events.Option
		if cfg.PubSubOrdering {
			pubOpts = append(pubOpts, events.WithOrdering())
		}
		opts = append(opts, stockledger.WithPlugin(events.New(client.Topic(cfg.PubSubTopic), pubOpts...)))
		logger.Info("publishing stock events", "project", cfg.PubSubProject, "topic", cfg.PubSubTopic)
	}

	l := stockledger.New(s, opts...)
	if err := l.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := l.Stop(); err != nil {
			logger.Error("ledger stop", "error", err)
		}
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("close", "error", err)
			}
		}
	}()

	router := api.NewRouter(l, api.Config{
		BasePath:     cfg.BasePath,
		JWTSecret:    []byte(cfg.JWTSecret),
		Logger:       logger,
		Gatherer:     gatherer,
		Location:     cfg.Location(),
		ReleaseMode:  cfg.IsProd(),
		AllowOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("stockledgerd listening", "addr", cfg.Addr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case DriverSQLite:
		return sqlite.Open(cfg.StoreDSN)
	case DriverPostgres:
		return postgres.Open(cfg.StoreDSN, postgres.Config{
			MaxOpenConns: cfg.DBMaxOpen,
			MaxIdleConns: cfg.DBMaxIdle,
			Tracing:      cfg.DBTracing,
		})
	case DriverMongo:
		return mongo.Open(ctx, cfg.StoreDSN, cfg.MongoDatabase)
	default:
		return memory.New(), nil
	}
}
