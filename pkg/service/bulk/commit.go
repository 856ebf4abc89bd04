package bulk

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/kikoba/kikoba/pkg/domain"
	"github.com/kikoba/kikoba/pkg/domain/ledger"
	"github.com/kikoba/kikoba/pkg/eventbus"
	"github.com/kikoba/kikoba/pkg/metrics"
	"github.com/kikoba/kikoba/pkg/repository"
	"golang.org/x/sync/errgroup"
)

// Commit writes the valid rows of a report. Rows commit in parallel, each in its own
// atomic unit; a failing row is recorded and the others go on. Rows are written as
// validated: balances are not re-derived, so the outcome does not depend on the order
// in which parallel rows land.
func (s *Service) Commit(ctx context.Context, report *Report, actor string) (*CommitResult, error) {
	if report == nil || len(report.Valid) == 0 {
		return nil, domain.ErrNoValidRows
	}
	logger := s.logger.With("rows", len(report.Valid), "actor", actor)

	var (
		mu  sync.Mutex
		res CommitResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, row := range report.Valid {
		g.Go(func() error {
			txs, err := s.commitRow(gctx, row, actor)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn("bulk row failed", "line", row.Line, "member_code", row.MemberCode, "error", err)
				res.Failures = append(res.Failures, RowFailure{Line: row.Line, MemberCode: row.MemberCode, Error: err.Error()})
				return nil
			}
			ids := make([]uuid.UUID, 0, len(txs))
			for _, t := range txs {
				ids = append(ids, t.ID)
			}
			res.Committed = append(res.Committed, CommittedRow{Line: row.Line, Reference: row.Reference(), TransactionIDs: ids})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return &res, err
	}

	sort.Slice(res.Committed, func(i, j int) bool { return res.Committed[i].Line < res.Committed[j].Line })
	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].Line < res.Failures[j].Line })
	metrics.BulkRows.WithLabelValues("commit", "committed").Add(float64(len(res.Committed)))
	metrics.BulkRows.WithLabelValues("commit", "failed").Add(float64(len(res.Failures)))
	logger.Info("batch committed", "committed", len(res.Committed), "failed", len(res.Failures))
	return &res, nil
}

func (s *Service) commitRow(ctx context.Context, row ValidRow, actor string) ([]*ledger.Transaction, error) {
	entries, err := row.Entries(actor, s.now())
	if err != nil {
		return nil, domain.Validation("%s", err.Error())
	}
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		for _, t := range entries {
			if err := repo.Create(ctx, t); err != nil {
				return fmt.Errorf("create %s %s: %w", t.Category, t.Type, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, domain.External("commit bulk row", err)
	}

	changes := make([]eventbus.Change, 0, len(entries))
	for _, t := range entries {
		changes = append(changes, eventbus.TransactionChange(t, eventbus.OpCreate))
	}
	eventbus.Emit(ctx, s.bus, s.logger, changes...)
	return entries, nil
}

// Import validates the batch and commits its valid rows.
func (s *Service) Import(ctx context.Context, batch Batch, actor string) (*Report, *CommitResult, error) {
	report, err := s.Validate(ctx, batch)
	if err != nil {
		return report, nil, err
	}
	res, err := s.Commit(ctx, report, actor)
	return report, res, err
}

// ImportFrom fetches a batch from src and imports it. With dryRun set only the
// validation report is produced.
func (s *Service) ImportFrom(ctx context.Context, src Source, actor string, dryRun bool) (*Report, *CommitResult, error) {
	batch, err := src.Fetch(ctx)
	if err != nil {
		return nil, nil, domain.External("fetch import", err)
	}
	if dryRun {
		report, err := s.Validate(ctx, batch)
		return report, nil, err
	}
	return s.Import(ctx, batch, actor)
}
