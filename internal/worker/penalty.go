// Package worker schedules the background penalty accrual runs.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kikoba/kikoba/pkg/service/penalty"
	"github.com/robfig/cron/v3"
)

const defaultRunTimeout = 5 * time.Minute

// PenaltyRunner runs one accrual pass.
type PenaltyRunner interface {
	Run(ctx context.Context, now time.Time) (*penalty.Result, error)
}

// PenaltyWorker triggers penalty runs on a cron schedule. Overlapping ticks are
// skipped while a run is still in progress.
type PenaltyWorker struct {
	cron    *cron.Cron
	runner  PenaltyRunner
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewPenaltyWorker parses schedule (standard five-field cron or descriptors such
// as "@every 1h") and registers the run.
func NewPenaltyWorker(runner PenaltyRunner, schedule string, logger *slog.Logger) (*PenaltyWorker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w := &PenaltyWorker{
		runner:  runner,
		logger:  logger.With("worker", "penalty"),
		timeout: defaultRunTimeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
	w.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := w.cron.AddFunc(schedule, func() { w.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid penalty schedule %q: %w", schedule, err)
	}
	return w, nil
}

// RunOnce runs accrual now. Failures are logged; the next tick retries.
func (w *PenaltyWorker) RunOnce(ctx context.Context) *penalty.Result {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := w.now()
	res, err := w.runner.Run(ctx, start)
	if err != nil {
		w.logger.Error("penalty run failed", "error", err)
		return nil
	}
	w.logger.Info("penalty run complete",
		"run_id", res.RunID,
		"candidates", res.Candidates,
		"applied", res.Applied,
		"skipped", res.Skipped,
		"duration", time.Since(start),
	)
	return res
}

// Start begins scheduling in the background.
func (w *PenaltyWorker) Start() {
	w.cron.Start()
	for _, e := range w.cron.Entries() {
		w.logger.Info("penalty worker started", "next_run", e.Next)
	}
}

// Stop stops scheduling and waits for a run in progress, or for ctx.
func (w *PenaltyWorker) Stop(ctx context.Context) error {
	done := w.cron.Stop()
	select {
	case <-done.Done():
		w.logger.Info("penalty worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
