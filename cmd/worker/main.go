package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/charmbracelet/log"
	"github.com/kikoba/kikoba/infra/initializer"
	"github.com/kikoba/kikoba/internal/worker"
	"github.com/kikoba/kikoba/pkg/config"
	"github.com/kikoba/kikoba/pkg/service/penalty"
)

const stopTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("failed to load application configuration: %w", err)
	}

	deps, cleanup, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer cleanup()
	logger := deps.Logger

	w, err := worker.NewPenaltyWorker(penalty.NewService(*deps), cfg.Penalty.Schedule, logger)
	if err != nil {
		return err
	}

	logger.Info("Running initial penalty pass")
	w.RunOnce(context.Background())
	w.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return w.Stop(ctx)
}
