// Package app wires configuration, storage, event publishing and the queue
// service into the runtime shared by every queuectl command.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/vin-jex/queuectl/internal/config"
	"github.com/vin-jex/queuectl/internal/events"
	"github.com/vin-jex/queuectl/internal/queue"
	"github.com/vin-jex/queuectl/internal/store"
	"github.com/vin-jex/queuectl/internal/store/postgres"
	"github.com/vin-jex/queuectl/internal/store/sqlite"
)

type App struct {
	Config *config.Config
	Store  store.Store
	Queue  *queue.Service
	Logger *slog.Logger

	publisher *events.NSQPublisher
}

// Open opens and initializes the configured store. The schema is created on
// first use and the call fails if it cannot be.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	storeLayer, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := storeLayer.Initialize(ctx); err != nil {
		_ = storeLayer.Close()
		return nil, fmt.Errorf("initialize store: %w", err)
	}

	application := &App{
		Config: cfg,
		Store:  storeLayer,
		Logger: logger,
	}

	var publisher events.Publisher
	if cfg.NSQDAddr != "" {
		producer, err := events.NewNSQPublisher(cfg.NSQDAddr, logger)
		if err != nil {
			logger.Warn("event publishing disabled", "nsqd", cfg.NSQDAddr, "err", err)
		} else {
			application.publisher = producer
			publisher = producer
		}
	}

	application.Queue = queue.NewService(storeLayer, queue.Options{
		Publisher:  publisher,
		Topic:      cfg.NSQTopic,
		LeaseGrace: cfg.LeaseGrace,
		WorkerTTL:  workerTTL(cfg.HeartbeatInterval),
		Logger:     logger,
	})

	return application, nil
}

// workerTTL tolerates two missed heartbeats before a worker stops counting
// as live.
func workerTTL(heartbeat time.Duration) time.Duration {
	if heartbeat <= 0 {
		return queue.DefaultWorkerTTL
	}
	return 3 * heartbeat
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.UsesPostgres() {
		storeLayer, err := postgres.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return storeLayer, nil
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	storeLayer, err := sqlite.Open(ctx, cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open sqlite store %s: %w", cfg.DBPath(), err)
	}

	return storeLayer, nil
}

func (a *App) Close() error {
	if a.publisher != nil {
		a.publisher.Close()
	}

	return a.Store.Close()
}
