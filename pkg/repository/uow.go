package repository

import (
	"context"
)

// UnitOfWork defines the contract for atomic work and repository access.
//
// Repositories obtained from the UnitOfWork passed to fn share its transaction:
// everything written inside fn commits together or not at all. Repositories obtained
// outside Do operate directly on the store.
type UnitOfWork interface {
	// Do executes fn within a transaction boundary. If fn returns an error the
	// transaction is rolled back and the error is returned unchanged. A commit that
	// loses an optimistic race returns domain.ErrConcurrentModification.
	Do(ctx context.Context, fn func(uow UnitOfWork) error) error

	TransactionRepository() (TransactionRepository, error)
	LoanRequestRepository() (LoanRequestRepository, error)
	MemberRepository() (MemberRepository, error)
	GroupCodeRepository() (GroupCodeRepository, error)
	PenaltyAuditRepository() (PenaltyAuditRepository, error)
}
