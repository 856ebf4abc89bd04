package initializer

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/kikoba/kikoba/infra"
	infra_eventbus "github.com/kikoba/kikoba/infra/eventbus"
	infra_notify "github.com/kikoba/kikoba/infra/notify"
	infra_repository "github.com/kikoba/kikoba/infra/repository"
	"github.com/kikoba/kikoba/infra/repository/memory"
	"github.com/kikoba/kikoba/pkg/config"
	"github.com/kikoba/kikoba/pkg/eventbus"
	"github.com/kikoba/kikoba/pkg/notify"
	"github.com/kikoba/kikoba/pkg/repository"
)

// InitializeDependencies initializes all the application dependencies. The returned
// cleanup flushes pending notifications and releases connections.
func InitializeDependencies(cfg *config.App) (
	deps *config.Deps,
	cleanup func(),
	err error,
) {
	logger := setupLogger(cfg.Log)
	deps = &config.Deps{Logger: logger, Config: cfg}

	var closers []func() error
	cleanup = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("cleanup failed", "error", err)
			}
		}
	}

	uow, closeStore, err := initStore(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	deps.Uow = uow
	closers = append(closers, closeStore)

	bus, closeBus, err := initEventBus(cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to initialize change bus: %w", err)
	}
	deps.EventBus = bus
	closers = append(closers, closeBus)

	notifier, closeNotifier := initNotifier(cfg, logger)
	deps.Notifier = notifier
	closers = append(closers, closeNotifier)

	return deps, cleanup, nil
}

func initStore(cfg *config.App, logger *slog.Logger) (repository.UnitOfWork, func() error, error) {
	driver := "postgres"
	if cfg.Store != nil && cfg.Store.Driver != "" {
		driver = cfg.Store.Driver
	}
	switch driver {
	case "memory":
		logger.Warn("Using in-memory ledger store; data is lost on exit")
		return memory.NewUoW(memory.New()), func() error { return nil }, nil
	case "postgres":
		db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
		if err != nil {
			logger.Error("Failed to initialize database", "error", err)
			return nil, nil, err
		}
		if err := infra.RunMigrations(db); err != nil {
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Connected to Postgres ledger store")
		return infra_repository.NewUoW(db), sqlDB.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", driver)
	}
}

// initEventBus uses Redis Pub/Sub when REDIS_URL is set. An unreachable Redis falls
// back to the in-process bus so a single server keeps working.
func initEventBus(cfg *config.App, logger *slog.Logger) (eventbus.Bus, func() error, error) {
	noop := func() error { return nil }
	if cfg.Redis == nil || cfg.Redis.URL == "" {
		return infra_eventbus.NewWithMemory(logger), noop, nil
	}
	bus, err := infra_eventbus.NewWithRedis(cfg.Redis.URL, cfg.Redis.ChannelPrefix, logger)
	if err != nil {
		if errors.Is(err, infra_eventbus.ErrInvalidRedisURL) {
			return nil, nil, err
		}
		logger.Warn("Redis unavailable; falling back to in-memory change bus", "error", err)
		return infra_eventbus.NewWithMemory(logger), noop, nil
	}
	return bus, bus.Close, nil
}

// initNotifier publishes to RabbitMQ when AMQP_URL is set and logs otherwise. The
// notifier is always wrapped for fire-and-forget delivery.
func initNotifier(cfg *config.App, logger *slog.Logger) (notify.Notifier, func() error) {
	var (
		next    notify.Notifier = infra_notify.NewLogNotifier(logger)
		closeFn                 = func() error { return nil }
	)
	if cfg.AMQP != nil && cfg.AMQP.URL != "" {
		n, err := infra_notify.NewAMQPNotifier(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue, cfg.AMQP.Timeout, logger)
		if err != nil {
			logger.Warn("AMQP unavailable; notifications will only be logged", "error", err)
		} else {
			next, closeFn = n, n.Close
		}
	}
	async := notify.NewAsync(next, logger, 0)
	return async, func() error {
		async.Wait()
		return closeFn()
	}
}
