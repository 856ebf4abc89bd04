// Package ledger holds the append-only transaction model of a kikoba group and the
// pure functions that derive balances from it.
package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type classifies a ledger transaction.
type Type string

const (
	TypeContribution  Type = "Contribution"
	TypeLoan          Type = "Loan"
	TypeLoanRepayment Type = "LoanRepayment"
)

// Category decides which balance a transaction affects.
type Category string

const (
	CategoryNone     Category = ""
	CategoryHisa     Category = "Hisa"
	CategoryJamii    Category = "Jamii"
	CategoryStandard Category = "Standard"
	CategoryDharura  Category = "Dharura"
)

// IsLoanCategory reports whether c is one of the loan categories.
func (c Category) IsLoanCategory() bool {
	return c == CategoryStandard || c == CategoryDharura
}

// IsContributionCategory reports whether c is one of the contribution categories.
func (c Category) IsContributionCategory() bool {
	return c == CategoryHisa || c == CategoryJamii
}

// Status of a transaction. Only Completed transactions count towards balances.
type Status string

const (
	StatusCompleted Status = "Completed"
	StatusPending   Status = "Pending"
)

// Source records which path created a transaction.
type Source string

const (
	SourceManual Source = "manual"
	SourceBulk   Source = "bulk"
	SourceSystem Source = "system"
)

// StandardInterestRate is the percentage added to Standard loans on approval.
var StandardInterestRate = decimal.NewFromInt(10)

var (
	// ErrPenaltyAlreadyApplied is returned when a penalty is applied to a loan twice.
	ErrPenaltyAlreadyApplied = errors.New("penalty already applied")
	// ErrNotPenalizable is returned when a penalty targets anything but a Dharura loan.
	ErrNotPenalizable = errors.New("transaction is not a penalizable loan")
	// ErrAmountMustBePositive is returned when a transaction amount is zero or negative.
	ErrAmountMustBePositive = errors.New("transaction amount must be positive")
)

// Transaction is a single immutable ledger entry. The only fields that change after
// creation are the penalty fields, and PenaltyApplied never goes back to false.
type Transaction struct {
	ID                          uuid.UUID
	Type                        Type
	Category                    Category
	Amount                      decimal.Decimal
	OriginalAmount              decimal.Decimal
	InterestRate                decimal.Decimal
	MemberID                    uuid.UUID
	MemberName                  string
	Date                        time.Time
	CreatedBy                   string
	Status                      Status
	Source                      Source
	Description                 string
	Reference                   string
	RequestID                   *uuid.UUID
	PenaltyApplied              bool
	PenaltyDate                 *time.Time
	OriginalAmountBeforePenalty decimal.Decimal
	Version                     int64
	CreatedAt                   time.Time
}

// LoanTerms is what finalize-to-ledger needs from an approved request.
type LoanTerms struct {
	RequestID   uuid.UUID
	MemberID    uuid.UUID
	MemberName  string
	Principal   decimal.Decimal
	Category    Category
	Description string
	ApprovedBy  string
	ApprovedAt  time.Time
}

// LoanAmount returns the amount owed for a principal in a loan category and the
// interest rate applied. Standard loans carry 10% interest rounded half away from
// zero to whole units; Dharura loans carry none.
func LoanAmount(principal decimal.Decimal, category Category) (amount, rate decimal.Decimal) {
	if category == CategoryStandard {
		factor := decimal.NewFromInt(100).Add(StandardInterestRate).Div(decimal.NewFromInt(100))
		return principal.Mul(factor).Round(0), StandardInterestRate
	}
	return principal, decimal.Zero
}

// NewLoan builds the Loan transaction appended when a request is approved.
func NewLoan(terms LoanTerms) (*Transaction, error) {
	if !terms.Principal.IsPositive() {
		return nil, ErrAmountMustBePositive
	}
	if !terms.Category.IsLoanCategory() {
		return nil, errors.New("loan category must be Standard or Dharura")
	}
	amount, rate := LoanAmount(terms.Principal, terms.Category)
	requestID := terms.RequestID
	return &Transaction{
		ID:             uuid.New(),
		Type:           TypeLoan,
		Category:       terms.Category,
		Amount:         amount,
		OriginalAmount: terms.Principal,
		InterestRate:   rate,
		MemberID:       terms.MemberID,
		MemberName:     terms.MemberName,
		Date:           terms.ApprovedAt,
		CreatedBy:      terms.ApprovedBy,
		Status:         StatusCompleted,
		Source:         SourceSystem,
		Description:    terms.Description,
		RequestID:      &requestID,
		Version:        1,
		CreatedAt:      terms.ApprovedAt,
	}, nil
}

// Entry describes a contribution or repayment before it is committed.
type Entry struct {
	MemberID   uuid.UUID
	MemberName string
	Category   Category
	Amount     decimal.Decimal
	Date       time.Time
	CreatedBy  string
	Source     Source
	Reference  string
}

// NewContribution builds a Hisa or Jamii contribution.
func NewContribution(e Entry, now time.Time) (*Transaction, error) {
	if !e.Category.IsContributionCategory() {
		return nil, errors.New("contribution category must be Hisa or Jamii")
	}
	return newEntry(TypeContribution, e, now)
}

// NewRepayment builds a Standard or Dharura loan repayment.
func NewRepayment(e Entry, now time.Time) (*Transaction, error) {
	if !e.Category.IsLoanCategory() {
		return nil, errors.New("repayment category must be Standard or Dharura")
	}
	return newEntry(TypeLoanRepayment, e, now)
}

func newEntry(t Type, e Entry, now time.Time) (*Transaction, error) {
	if !e.Amount.IsPositive() {
		return nil, ErrAmountMustBePositive
	}
	return &Transaction{
		ID:         uuid.New(),
		Type:       t,
		Category:   e.Category,
		Amount:     e.Amount,
		MemberID:   e.MemberID,
		MemberName: e.MemberName,
		Date:       e.Date,
		CreatedBy:  e.CreatedBy,
		Status:     StatusCompleted,
		Source:     e.Source,
		Reference:  e.Reference,
		Version:    1,
		CreatedAt:  now,
	}, nil
}

// IsPenaltyCandidate reports whether the transaction is an unpenalized, completed
// Dharura loan older than threshold at now. Exactly threshold old does not qualify.
func (t *Transaction) IsPenaltyCandidate(now time.Time, threshold time.Duration) bool {
	if t.Type != TypeLoan || t.Category != CategoryDharura || t.Status != StatusCompleted {
		return false
	}
	if t.PenaltyApplied {
		return false
	}
	return now.Sub(t.Date) > threshold
}

// ApplyPenalty adds a flat penalty to a Dharura loan exactly once.
func (t *Transaction) ApplyPenalty(penalty decimal.Decimal, now time.Time) error {
	if t.Type != TypeLoan || t.Category != CategoryDharura {
		return ErrNotPenalizable
	}
	if t.PenaltyApplied {
		return ErrPenaltyAlreadyApplied
	}
	if !penalty.IsPositive() {
		return ErrAmountMustBePositive
	}
	applied := now
	t.OriginalAmountBeforePenalty = t.Amount
	t.Amount = t.Amount.Add(penalty)
	t.PenaltyApplied = true
	t.PenaltyDate = &applied
	return nil
}

// Clone returns a deep copy of the transaction.
func (t *Transaction) Clone() *Transaction {
	c := *t
	if t.RequestID != nil {
		id := *t.RequestID
		c.RequestID = &id
	}
	if t.PenaltyDate != nil {
		d := *t.PenaltyDate
		c.PenaltyDate = &d
	}
	return &c
}
