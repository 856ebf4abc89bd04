package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/kikoba/kikoba/pkg/domain/ledger"
	"github.com/kikoba/kikoba/pkg/domain/loan"
	"github.com/kikoba/kikoba/pkg/domain/member"
)

// TransactionFilter selects ledger transactions. Zero values do not filter.
// Results are ordered by Date, then CreatedAt.
type TransactionFilter struct {
	MemberID       *uuid.UUID
	Type           ledger.Type
	Category       ledger.Category
	Status         ledger.Status
	PenaltyApplied *bool
	RequestID      *uuid.UUID
	Reference      string
	Limit          int
}

// TransactionRepository is the ledger collection. Transactions are append-only;
// Update exists for the one-time penalty fields.
type TransactionRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error)
	List(ctx context.Context, filter TransactionFilter) ([]*ledger.Transaction, error)
	Create(ctx context.Context, tx *ledger.Transaction) error
	// Update writes tx only if the stored version still equals expectedVersion,
	// then bumps tx.Version. Otherwise it returns domain.ErrConcurrentModification.
	Update(ctx context.Context, tx *ledger.Transaction, expectedVersion int64) error
	// GetForUpdate re-reads a transaction inside an atomic unit, locking it where
	// the store supports row locks.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error)
}

// LoanRequestFilter selects loan requests. Results are newest first.
type LoanRequestFilter struct {
	MemberID   *uuid.UUID
	Status     loan.Status
	PendingFor *uuid.UUID
	Limit      int
}

// LoanRequestRepository stores loan requests.
type LoanRequestRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*loan.Request, error)
	List(ctx context.Context, filter LoanRequestFilter) ([]*loan.Request, error)
	Create(ctx context.Context, req *loan.Request) error
	// Update is a conditional write on expectedVersion, like TransactionRepository.Update.
	Update(ctx context.Context, req *loan.Request, expectedVersion int64) error
}

// MemberFilter selects members from the directory.
type MemberFilter struct {
	Role   member.Role
	Status member.Status
}

// MemberRepository is the member directory.
type MemberRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*member.Member, error)
	GetByCode(ctx context.Context, code string) (*member.Member, error)
	List(ctx context.Context, filter MemberFilter) ([]*member.Member, error)
	Create(ctx context.Context, m *member.Member) error
}

// GroupCodeRepository stores admission codes.
type GroupCodeRepository interface {
	GetByCode(ctx context.Context, code string) (*member.GroupCode, error)
	Create(ctx context.Context, code *member.GroupCode) error
	Update(ctx context.Context, code *member.GroupCode, expectedVersion int64) error
}

// PenaltyAuditRepository stores penalty audit records.
type PenaltyAuditRepository interface {
	Create(ctx context.Context, audit *ledger.PenaltyAudit) error
	ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*ledger.PenaltyAudit, error)
}
