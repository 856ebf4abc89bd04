package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Balance is the derived loan position of one member in one loan category.
// Outstanding is never clamped: a negative value means repayments exceed the
// recorded loans and must be surfaced.
type Balance struct {
	Borrowed    decimal.Decimal `json:"borrowed"`
	Repaid      decimal.Decimal `json:"repaid"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// HasOutstanding reports whether there is a positive amount left to repay.
func (b Balance) HasOutstanding() bool {
	return b.Outstanding.IsPositive()
}

// MemberBalances is everything derived for one member.
type MemberBalances struct {
	MemberID      uuid.UUID                    `json:"member_id"`
	Loans         map[Category]Balance         `json:"loans"`
	Contributions map[Category]decimal.Decimal `json:"contributions"`
}

type position struct {
	borrowed decimal.Decimal
	repaid   decimal.Decimal
}

// Ledger is a read-only view of balances derived from a transaction history.
// It is rebuilt for every decision; it is never persisted.
type Ledger struct {
	loans         map[uuid.UUID]map[Category]*position
	contributions map[uuid.UUID]map[Category]decimal.Decimal
}

// Derive folds a transaction history into per-member, per-category balances.
// Transactions that are not Completed, or whose category does not apply to their
// type, are skipped.
func Derive(txs []*Transaction) Ledger {
	l := Ledger{
		loans:         make(map[uuid.UUID]map[Category]*position),
		contributions: make(map[uuid.UUID]map[Category]decimal.Decimal),
	}
	for _, t := range txs {
		if t == nil || t.Status != StatusCompleted {
			continue
		}
		switch t.Type {
		case TypeLoan:
			if p := l.position(t.MemberID, t.Category); p != nil {
				p.borrowed = p.borrowed.Add(t.Amount)
			}
		case TypeLoanRepayment:
			if p := l.position(t.MemberID, t.Category); p != nil {
				p.repaid = p.repaid.Add(t.Amount)
			}
		case TypeContribution:
			if !t.Category.IsContributionCategory() {
				continue
			}
			m, ok := l.contributions[t.MemberID]
			if !ok {
				m = make(map[Category]decimal.Decimal)
				l.contributions[t.MemberID] = m
			}
			m[t.Category] = m[t.Category].Add(t.Amount)
		}
	}
	return l
}

func (l Ledger) position(memberID uuid.UUID, c Category) *position {
	if !c.IsLoanCategory() {
		return nil
	}
	m, ok := l.loans[memberID]
	if !ok {
		m = make(map[Category]*position)
		l.loans[memberID] = m
	}
	p, ok := m[c]
	if !ok {
		p = &position{}
		m[c] = p
	}
	return p
}

// For returns the balance of one member in one loan category. Unknown members and
// categories yield a zero balance.
func (l Ledger) For(memberID uuid.UUID, c Category) Balance {
	p, ok := l.loans[memberID][c]
	if !ok {
		return Balance{Borrowed: decimal.Zero, Repaid: decimal.Zero, Outstanding: decimal.Zero}
	}
	return Balance{
		Borrowed:    p.borrowed,
		Repaid:      p.repaid,
		Outstanding: p.borrowed.Sub(p.repaid),
	}
}

// Member returns all balances of one member, with both loan categories and both
// contribution categories always present.
func (l Ledger) Member(memberID uuid.UUID) MemberBalances {
	mb := MemberBalances{
		MemberID:      memberID,
		Loans:         make(map[Category]Balance, 2),
		Contributions: make(map[Category]decimal.Decimal, 2),
	}
	for _, c := range []Category{CategoryStandard, CategoryDharura} {
		mb.Loans[c] = l.For(memberID, c)
	}
	for _, c := range []Category{CategoryHisa, CategoryJamii} {
		mb.Contributions[c] = l.contributions[memberID][c]
	}
	return mb
}

// Members returns the ids of every member with at least one loan position.
func (l Ledger) Members() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(l.loans))
	for id := range l.loans {
		ids = append(ids, id)
	}
	return ids
}
