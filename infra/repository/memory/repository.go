package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/kikoba/kikoba/pkg/domain"
	"github.com/kikoba/kikoba/pkg/domain/ledger"
	"github.com/kikoba/kikoba/pkg/domain/loan"
	"github.com/kikoba/kikoba/pkg/domain/member"
	"github.com/kikoba/kikoba/pkg/repository"
)

func pendingOf[T any](t *txn, pick func(*txn) *pending[T]) *pending[T] {
	if t == nil {
		return nil
	}
	return pick(t)
}

func pickTxs(t *txn) *pending[*ledger.Transaction] { return t.txs }
func pickLoans(t *txn) *pending[*loan.Request] { return t.loans }
func pickMembers(t *txn) *pending[*member.Member] { return t.members }
func pickCodes(t *txn) *pending[*member.GroupCode] { return t.codes }
func pickAudits(t *txn) *pending[*ledger.PenaltyAudit] { return t.audits }

type transactionRepository struct {
	s  *Store
	tx *txn
}

func (r *transactionRepository) Get(_ context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	t, ok := lookup(r.s, r.s.txs, pendingOf(r.tx, pickTxs), id)
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return t, nil
}

func (r *transactionRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	return r.Get(ctx, id)
}

func (r *transactionRepository) List(_ context.Context, f repository.TransactionFilter) ([]*ledger.Transaction, error) {
	out := scan(r.s, r.s.txs, pendingOf(r.tx, pickTxs), func(t *ledger.Transaction) bool {
		switch {
		case f.MemberID != nil && t.MemberID != *f.MemberID:
			return false
		case f.Type != "" && t.Type != f.Type:
			return false
		case f.Category != "" && t.Category != f.Category:
			return false
		case f.Status != "" && t.Status != f.Status:
			return false
		case f.PenaltyApplied != nil && t.PenaltyApplied != *f.PenaltyApplied:
			return false
		case f.RequestID != nil && (t.RequestID == nil || *t.RequestID != *f.RequestID):
			return false
		case f.Reference != "" && t.Reference != f.Reference:
			return false
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *transactionRepository) Create(_ context.Context, t *ledger.Transaction) error {
	return r.s.autocommit(r.tx, func(tx *txn) error {
		return create(r.s, r.s.txs, tx.txs, t)
	})
}

func (r *transactionRepository) Update(_ context.Context, t *ledger.Transaction, expectedVersion int64) error {
	return r.s.autocommit(r.tx, func(tx *txn) error {
		return update(r.s, r.s.txs, tx.txs, t, expectedVersion, domain.ErrTransactionNotFound)
	})
}

type loanRequestRepository struct {
	s  *Store
	tx *txn
}

func (r *loanRequestRepository) Get(_ context.Context, id uuid.UUID) (*loan.Request, error) {
	req, ok := lookup(r.s, r.s.loans, pendingOf(r.tx, pickLoans), id)
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	return req, nil
}

func (r *loanRequestRepository) List(_ context.Context, f repository.LoanRequestFilter) ([]*loan.Request, error) {
	out := scan(r.s, r.s.loans, pendingOf(r.tx, pickLoans), func(req *loan.Request) bool {
		switch {
		case f.MemberID != nil && req.MemberID != *f.MemberID:
			return false
		case f.Status != "" && req.Status != f.Status:
			return false
		case f.PendingFor != nil && !req.AwaitsVoteFrom(*f.PendingFor):
			return false
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *loanRequestRepository) Create(_ context.Context, req *loan.Request) error {
	return r.s.autocommit(r.tx, func(tx *txn) error {
		return create(r.s, r.s.loans, tx.loans, req)
	})
}

func (r *loanRequestRepository) Update(_ context.Context, req *loan.Request, expectedVersion int64) error {
	return r.s.autocommit(r.tx, func(tx *txn) error {
		return update(r.s, r.s.loans, tx.loans, req, expectedVersion, domain.ErrRequestNotFound)
	})
}

type memberRepository struct {
	s  *Store
	tx *txn
}

func (r *memberRepository) Get(_ context.Context, id uuid.UUID) (*member.Member, error) {
	m, ok := lookup(r.s, r.s.members, pendingOf(r.tx, pickMembers), id)
	if !ok {
		return nil, domain.ErrMemberNotFound
	}
	return m, nil
}

func (r *memberRepository) GetByCode(_ context.Context, code string) (*member.Member, error) {
	code = member.NormalizeCode(code)
	found := scan(r.s, r.s.members, pendingOf(r.tx, pickMembers), func(m *member.Member) bool {
		return member.NormalizeCode(m.Code) == code
	})
	if len(found) == 0 {
		return nil, domain.ErrMemberNotFound
	}
	return found[0], nil
}

func (r *memberRepository) List(_ context.Context, f repository.MemberFilter) ([]*member.Member, error) {
	out := scan(r.s, r.s.members, pendingOf(r.tx, pickMembers), func(m *member.Member) bool {
		return (f.Role == "" || m.Role == f.Role) && (f.Status == "" || m.Status == f.Status)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *memberRepository) Create(_ context.Context, m *member.Member) error {
	return r.s.autocommit(r.tx, func(tx *txn) error {
		return create(r.s, r.s.members, tx.members, m)
	})
}

type groupCodeRepository struct {
	s  *Store
	tx *txn
}

func (r *groupCodeRepository) GetByCode(_ context.Context, code string) (*member.GroupCode, error) {
	code = member.NormalizeCode(code)
	found := scan(r.s, r.s.codes, pendingOf(r.tx, pickCodes), func(g *member.GroupCode) bool {
		return member.NormalizeCode(g.Code) == code
	})
	if len(found) == 0 {
		return nil, domain.ErrGroupCodeNotFound
	}
	return found[0], nil
}

func (r *groupCodeRepository) Create(_ context.Context, g *member.GroupCode) error {
	return r.s.autocommit(r.tx, func(tx *txn) error {
		return create(r.s, r.s.codes, tx.codes, g)
	})
}

func (r *groupCodeRepository) Update(_ context.Context, g *member.GroupCode, expectedVersion int64) error {
	return r.s.autocommit(r.tx, func(tx *txn) error {
		return update(r.s, r.s.codes, tx.codes, g, expectedVersion, domain.ErrGroupCodeNotFound)
	})
}

type penaltyAuditRepository struct {
	s  *Store
	tx *txn
}

func (r *penaltyAuditRepository) Create(_ context.Context, a *ledger.PenaltyAudit) error {
	return r.s.autocommit(r.tx, func(tx *txn) error {
		return create(r.s, r.s.audits, tx.audits, a)
	})
}

func (r *penaltyAuditRepository) ListByTransaction(_ context.Context, id uuid.UUID) ([]*ledger.PenaltyAudit, error) {
	out := scan(r.s, r.s.audits, pendingOf(r.tx, pickAudits), func(a *ledger.PenaltyAudit) bool {
		return a.TransactionID == id
	})
	sort.Slice(out, func(i, j int) bool { return out[i].AppliedAt.Before(out[j].AppliedAt) })
	return out, nil
}
