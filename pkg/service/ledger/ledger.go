// Package ledger serves derived balances and the transaction history, and records
// manual contributions and repayments.
package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kikoba/kikoba/pkg/config"
	"github.com/kikoba/kikoba/pkg/domain"
	"github.com/kikoba/kikoba/pkg/domain/ledger"
	"github.com/kikoba/kikoba/pkg/eventbus"
	"github.com/kikoba/kikoba/pkg/repository"
	"github.com/shopspring/decimal"
)

// Service reads and appends ledger transactions.
type Service struct {
	uow    repository.UnitOfWork
	bus    eventbus.Bus
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new Service with the provided dependencies.
func NewService(deps config.Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		uow:    deps.Uow,
		bus:    deps.EventBus,
		logger: logger.With("service", "ledger"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Balances derives the member's balances from their full transaction history.
func (s *Service) Balances(ctx context.Context, memberID uuid.UUID) (ledger.MemberBalances, error) {
	members, err := s.uow.MemberRepository()
	if err != nil {
		return ledger.MemberBalances{}, err
	}
	if _, err := members.Get(ctx, memberID); err != nil {
		return ledger.MemberBalances{}, domain.External("get member", err)
	}
	txs, err := s.history(ctx, s.uow, memberID)
	if err != nil {
		return ledger.MemberBalances{}, err
	}
	return ledger.Derive(txs).Member(memberID), nil
}

// Transactions lists ledger transactions in date order.
func (s *Service) Transactions(ctx context.Context, f repository.TransactionFilter) ([]*ledger.Transaction, error) {
	repo, err := s.uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	out, err := repo.List(ctx, f)
	if err != nil {
		return nil, domain.External("list transactions", err)
	}
	return out, nil
}

func (s *Service) history(ctx context.Context, uow repository.UnitOfWork, memberID uuid.UUID) ([]*ledger.Transaction, error) {
	repo, err := uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	txs, err := repo.List(ctx, repository.TransactionFilter{MemberID: &memberID})
	if err != nil {
		return nil, domain.External("list transactions", err)
	}
	return txs, nil
}

// RecordCommand is a manual contribution or repayment entered by an admin.
type RecordCommand struct {
	MemberID  uuid.UUID
	Type      ledger.Type
	Category  ledger.Category
	Amount    decimal.Decimal
	Date      time.Time
	CreatedBy string
	Reference string
}

// Record appends a manual entry. A repayment needs a positive outstanding balance
// in its category, checked against the history read in the same atomic unit.
func (s *Service) Record(ctx context.Context, cmd RecordCommand) (*ledger.Transaction, error) {
	logger := s.logger.With("member_id", cmd.MemberID, "type", cmd.Type, "category", cmd.Category)
	if cmd.Date.IsZero() {
		cmd.Date = s.now()
	}

	var tx *ledger.Transaction
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		members, err := uow.MemberRepository()
		if err != nil {
			return err
		}
		m, err := members.Get(ctx, cmd.MemberID)
		if err != nil {
			return err
		}
		entry := ledger.Entry{
			MemberID:   m.ID,
			MemberName: m.DisplayName,
			Category:   cmd.Category,
			Amount:     cmd.Amount,
			Date:       cmd.Date,
			CreatedBy:  cmd.CreatedBy,
			Source:     ledger.SourceManual,
			Reference:  cmd.Reference,
		}
		switch cmd.Type {
		case ledger.TypeContribution:
			tx, err = ledger.NewContribution(entry, s.now())
		case ledger.TypeLoanRepayment:
			history, herr := s.history(ctx, uow, m.ID)
			if herr != nil {
				return herr
			}
			if !ledger.Derive(history).For(m.ID, cmd.Category).HasOutstanding() {
				return domain.Validation("no active balance")
			}
			tx, err = ledger.NewRepayment(entry, s.now())
		default:
			return domain.Validation("manual entries must be contributions or repayments")
		}
		if err != nil {
			return domain.Validation("%s", err.Error())
		}
		repo, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		return repo.Create(ctx, tx)
	})
	if err != nil {
		logger.Warn("Record failed", "error", err)
		return nil, domain.External("record transaction", err)
	}
	logger.Info("transaction recorded", "transaction_id", tx.ID, "amount", tx.Amount.String())
	eventbus.Emit(ctx, s.bus, logger, eventbus.TransactionChange(tx, eventbus.OpCreate))
	return tx, nil
}
