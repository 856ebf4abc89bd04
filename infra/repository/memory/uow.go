package memory

import (
	"context"

	"github.com/kikoba/kikoba/pkg/repository"
)

// UoW implements repository.UnitOfWork over a Store.
type UoW struct {
	store *Store
	tx    *txn
}

// NewUoW creates a unit of work over store.
func NewUoW(store *Store) *UoW {
	return &UoW{store: store}
}

// Do buffers every write made through the repositories of the UoW passed to fn and
// commits them together when fn returns nil. A Do nested inside another joins the
// outer unit.
func (u *UoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.tx != nil {
		return fn(u)
	}
	t := newTxn()
	if err := fn(&UoW{store: u.store, tx: t}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return u.store.commit(t)
}

func (u *UoW) TransactionRepository() (repository.TransactionRepository, error) {
	return &transactionRepository{s: u.store, tx: u.tx}, nil
}

func (u *UoW) LoanRequestRepository() (repository.LoanRequestRepository, error) {
	return &loanRequestRepository{s: u.store, tx: u.tx}, nil
}

func (u *UoW) MemberRepository() (repository.MemberRepository, error) {
	return &memberRepository{s: u.store, tx: u.tx}, nil
}

func (u *UoW) GroupCodeRepository() (repository.GroupCodeRepository, error) {
	return &groupCodeRepository{s: u.store, tx: u.tx}, nil
}

func (u *UoW) PenaltyAuditRepository() (repository.PenaltyAuditRepository, error) {
	return &penaltyAuditRepository{s: u.store, tx: u.tx}, nil
}

var _ repository.UnitOfWork = (*UoW)(nil)
