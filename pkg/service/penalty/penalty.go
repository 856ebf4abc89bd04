// Package penalty applies the flat late penalty to overdue Dharura loans.
package penalty

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kikoba/kikoba/pkg/config"
	"github.com/kikoba/kikoba/pkg/domain"
	"github.com/kikoba/kikoba/pkg/domain/ledger"
	"github.com/kikoba/kikoba/pkg/eventbus"
	"github.com/kikoba/kikoba/pkg/metrics"
	"github.com/kikoba/kikoba/pkg/notify"
	"github.com/kikoba/kikoba/pkg/repository"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultThreshold is how old an unpenalized Dharura loan must be to qualify.
	DefaultThreshold = 30 * 24 * time.Hour
	runKey           = "penalty-run"
)

// DefaultAmount is the flat penalty added to an overdue Dharura loan.
var DefaultAmount = decimal.NewFromInt(60000)

// Result summarizes one accrual run.
type Result struct {
	RunID        uuid.UUID   `json:"run_id"`
	Candidates   int         `json:"candidates"`
	Applied      int         `json:"applied"`
	Skipped      int         `json:"skipped"`
	PenalizedIDs []uuid.UUID `json:"penalized_ids"`
}

// Service runs penalty accrual.
type Service struct {
	uow        repository.UnitOfWork
	bus        eventbus.Bus
	notifier   notify.Notifier
	logger     *slog.Logger
	amount     decimal.Decimal
	threshold  time.Duration
	maxRetries int
	group      singleflight.Group
}

// NewService creates a new Service with the provided dependencies.
func NewService(deps config.Deps) *Service {
	s := &Service{
		uow:        deps.Uow,
		bus:        deps.EventBus,
		notifier:   deps.Notifier,
		logger:     deps.Logger,
		amount:     DefaultAmount,
		threshold:  DefaultThreshold,
		maxRetries: 3,
	}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if deps.Config != nil && deps.Config.Penalty != nil {
		p := deps.Config.Penalty
		if p.Amount.IsPositive() {
			s.amount = p.Amount
		}
		if p.Threshold > 0 {
			s.threshold = p.Threshold
		}
		if p.MaxRetries > 0 {
			s.maxRetries = p.MaxRetries
		}
	}
	s.logger = s.logger.With("service", "penalty")
	return s
}

// Overdue lists the loans that qualify for a penalty at now without touching them.
func (s *Service) Overdue(ctx context.Context, now time.Time) ([]*ledger.Transaction, error) {
	repo, err := s.uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	notApplied := false
	loans, err := repo.List(ctx, repository.TransactionFilter{
		Type:           ledger.TypeLoan,
		Category:       ledger.CategoryDharura,
		Status:         ledger.StatusCompleted,
		PenaltyApplied: &notApplied,
	})
	if err != nil {
		return nil, domain.External("list penalty candidates", err)
	}
	out := loans[:0]
	for _, t := range loans {
		if t.IsPenaltyCandidate(now, s.threshold) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Run penalizes every overdue Dharura loan at most once. Overlapping calls in this
// process for the same now (to the second) share one run; calls with a different now
// run on their own. Runs in other processes are kept apart by the atomic re-check,
// and a loan another run got to first is counted as skipped.
func (s *Service) Run(ctx context.Context, now time.Time) (*Result, error) {
	key := runKey + "@" + now.UTC().Truncate(time.Second).Format(time.RFC3339)
	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.run(ctx, now)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("penalty run shared with a concurrent caller")
	}
	res := *v.(*Result)
	res.PenalizedIDs = append([]uuid.UUID(nil), res.PenalizedIDs...)
	return &res, nil
}

func (s *Service) run(ctx context.Context, now time.Time) (*Result, error) {
	start := time.Now()
	defer func() { metrics.PenaltyRunDuration.Observe(time.Since(start).Seconds()) }()

	res := &Result{RunID: uuid.New()}
	logger := s.logger.With("run_id", res.RunID)

	candidates, err := s.Overdue(ctx, now)
	if err != nil {
		logger.Error("penalty run failed to identify candidates", "error", err)
		return nil, err
	}
	res.Candidates = len(candidates)
	if len(candidates) == 0 {
		logger.Info("penalty run found no overdue loans")
		return res, nil
	}

	var applied []*ledger.Transaction
	for attempt := 1; ; attempt++ {
		var skipped int
		applied, skipped, err = s.apply(ctx, candidates, now)
		if err == nil {
			res.Skipped = skipped
			break
		}
		if !errors.Is(err, domain.ErrConcurrentModification) || attempt >= s.maxRetries {
			logger.Error("penalty run failed", "attempt", attempt, "error", err)
			return nil, domain.External("apply penalties", err)
		}
		logger.Warn("penalty run conflicted, re-checking", "attempt", attempt)
	}

	res.Applied = len(applied)
	for _, t := range applied {
		res.PenalizedIDs = append(res.PenalizedIDs, t.ID)
	}
	metrics.PenaltiesApplied.Add(float64(res.Applied))
	metrics.PenaltiesSkipped.Add(float64(res.Skipped))
	logger.Info("penalty run finished", "candidates", res.Candidates, "applied", res.Applied, "skipped", res.Skipped)

	s.audit(ctx, logger, res.RunID, applied)
	return res, nil
}

// apply re-reads every candidate inside one atomic unit and penalizes those that
// still qualify.
func (s *Service) apply(ctx context.Context, candidates []*ledger.Transaction, now time.Time) ([]*ledger.Transaction, int, error) {
	var (
		applied []*ledger.Transaction
		skipped int
	)
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		applied, skipped = nil, 0
		txs, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		for _, c := range candidates {
			cur, err := txs.GetForUpdate(ctx, c.ID)
			if err != nil {
				return err
			}
			if !cur.IsPenaltyCandidate(now, s.threshold) {
				skipped++
				continue
			}
			expected := cur.Version
			if err := cur.ApplyPenalty(s.amount, now); err != nil {
				return fmt.Errorf("transaction %s: %w", cur.ID, err)
			}
			if err := txs.Update(ctx, cur, expected); err != nil {
				return err
			}
			applied = append(applied, cur)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return applied, skipped, nil
}

// audit records and announces applied penalties. Nothing here can undo a penalty.
func (s *Service) audit(ctx context.Context, logger *slog.Logger, runID uuid.UUID, applied []*ledger.Transaction) {
	audits, err := s.uow.PenaltyAuditRepository()
	if err != nil {
		logger.Warn("penalty audit unavailable", "error", err)
	}
	changes := make([]eventbus.Change, 0, 2*len(applied))
	for _, t := range applied {
		a := ledger.NewPenaltyAudit(runID, t, s.amount)
		if audits != nil {
			if err := audits.Create(ctx, a); err != nil {
				logger.Warn("failed to write penalty audit", "transaction_id", t.ID, "error", err)
			} else {
				changes = append(changes, eventbus.PenaltyAuditChange(a))
			}
		}
		changes = append(changes, eventbus.TransactionChange(t, eventbus.OpUpdate))

		if err := s.notifier.Notify(ctx, notify.Message{
			Kind:       notify.KindPenaltyApplied,
			Recipients: []uuid.UUID{t.MemberID},
			Title:      "Late penalty applied",
			Body: fmt.Sprintf("A penalty of %s was added to your Dharura loan. New balance: %s.",
				s.amount.String(), t.Amount.String()),
			Data: map[string]string{"transaction_id": t.ID.String(), "run_id": runID.String()},
		}); err != nil {
			logger.Warn("penalty notification failed", "transaction_id", t.ID, "error", err)
		}
	}
	eventbus.Emit(ctx, s.bus, logger, changes...)
}

// History returns the penalty audits of one loan.
func (s *Service) History(ctx context.Context, transactionID uuid.UUID) ([]*ledger.PenaltyAudit, error) {
	audits, err := s.uow.PenaltyAuditRepository()
	if err != nil {
		return nil, err
	}
	out, err := audits.ListByTransaction(ctx, transactionID)
	if err != nil {
		return nil, domain.External("list penalty audits", err)
	}
	return out, nil
}
