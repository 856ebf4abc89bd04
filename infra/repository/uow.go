package repository

import (
	"context"

	"github.com/kikoba/kikoba/pkg/repository"
	"gorm.io/gorm"
)

// UoW provides the transaction boundary and repository access in one abstraction,
// so every repository used inside Do shares the same database transaction.
type UoW struct {
	db *gorm.DB
	tx *gorm.DB
}

// NewUoW creates a new UoW for the given *gorm.DB.
func NewUoW(db *gorm.DB) *UoW {
	return &UoW{db: db}
}

// Do runs fn in a database transaction. A Do nested inside another joins the outer
// transaction.
func (u *UoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	if u.tx != nil {
		return fn(u)
	}
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&UoW{db: u.db, tx: tx})
	})
}

func (u *UoW) session() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

// TransactionRepository returns the ledger transaction repository.
func (u *UoW) TransactionRepository() (repository.TransactionRepository, error) {
	return NewTransactionRepository(u.session()), nil
}

// LoanRequestRepository returns the loan request repository.
func (u *UoW) LoanRequestRepository() (repository.LoanRequestRepository, error) {
	return NewLoanRequestRepository(u.session()), nil
}

// MemberRepository returns the member repository.
func (u *UoW) MemberRepository() (repository.MemberRepository, error) {
	return NewMemberRepository(u.session()), nil
}

// GroupCodeRepository returns the group code repository.
func (u *UoW) GroupCodeRepository() (repository.GroupCodeRepository, error) {
	return NewGroupCodeRepository(u.session()), nil
}

// PenaltyAuditRepository returns the penalty audit repository.
func (u *UoW) PenaltyAuditRepository() (repository.PenaltyAuditRepository, error) {
	return NewPenaltyAuditRepository(u.session()), nil
}

var _ repository.UnitOfWork = (*UoW)(nil)
