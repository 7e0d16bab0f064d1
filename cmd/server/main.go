/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the discipline engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load configuration
  2. Build the structured logger
  3. Initialize SQLite store
  4. Build notification dispatcher (log or Redis sender)
  5. Register Prometheus collectors
  6. Create engine, API handler and router
  7. Start threshold scheduler
  8. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML configuration file (default: $DISCIPLINE_CONFIG, else built-in defaults)
  -db      SQLite database path, overrides the config file
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections and wait for active requests
  3. Drain queued notifications
  4. Close Redis and database connections

ENVIRONMENT:
  DISCIPLINE_* variables override the file. See config/config.go.

SEE ALSO:
  - config/config.go: Settings and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/warp/discipline-engine/api"
	"github.com/warp/discipline-engine/config"
	"github.com/warp/discipline-engine/discipline"
	"github.com/warp/discipline-engine/metrics"
	"github.com/warp/discipline-engine/notify"
	"github.com/warp/discipline-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	logger := config.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	// Metrics
	collectors := metrics.New()
	if err := collectors.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	// Notifications
	var notifier discipline.Notifier = discipline.NopNotifier{}
	if cfg.Notifications.Enabled {
		sender, closeSender, err := buildSender(cfg.Notifications, logger)
		if err != nil {
			return err
		}
		defer closeSender()

		dispatcher := notify.NewDispatcher(sender, logger, cfg.Notifications.BufferSize)
		dispatcher.OnDrop = func(notify.Message) { collectors.NotificationDropped() }
		dispatcher.Start()
		defer dispatcher.Stop()
		notifier = dispatcher
	}

	engine := discipline.NewEngine(store, discipline.Options{
		Notifier:          notifier,
		Observer:          collectors,
		Logger:            logger,
		AbsenceWindowDays: cfg.Engine.AbsenceWindowDays,
		MaxRetries:        cfg.Engine.MaxRetries,
	})

	handler := api.NewHandler(engine, store, discipline.SystemClock{}, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Gatherer:       prometheus.DefaultGatherer,
	})

	scheduler := api.NewThresholdScheduler(engine, logger)
	scheduler.Enabled = cfg.Scheduler.Enabled
	scheduler.CheckInterval = cfg.Scheduler.ThresholdInterval
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.String("address", cfg.Server.Address),
			slog.String("database", cfg.Database.Path),
			slog.String("notifications", notificationsMode(cfg.Notifications)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// buildSender returns the configured sender and a cleanup func.
func buildSender(cfg config.NotificationsConfig, logger *slog.Logger) (notify.Sender, func(), error) {
	switch cfg.Driver {
	case "redis":
		pub := notify.NewGoRedisPublisher(notify.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := pub.Ping(ctx); err != nil {
			pub.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		return notify.NewRedisSender(pub, cfg.Redis.Channel), func() { pub.Close() }, nil
	default:
		return notify.LogSender{Logger: logger}, func() {}, nil
	}
}

func notificationsMode(cfg config.NotificationsConfig) string {
	if !cfg.Enabled {
		return "disabled"
	}
	return cfg.Driver
}
