package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/kikoba/kikoba/pkg/domain/ledger"
	"github.com/shopspring/decimal"
)

// TransactionRead is the read model of a ledger transaction for API responses and
// change events.
type TransactionRead struct {
	ID                          uuid.UUID        `json:"id"`
	Type                        string           `json:"type"`
	Category                    string           `json:"category,omitempty"`
	Amount                      decimal.Decimal  `json:"amount"`
	OriginalAmount              *decimal.Decimal `json:"original_amount,omitempty"`
	InterestRate                *decimal.Decimal `json:"interest_rate,omitempty"`
	MemberID                    uuid.UUID        `json:"member_id"`
	MemberName                  string           `json:"member_name"`
	Date                        time.Time        `json:"date"`
	CreatedBy                   string           `json:"created_by"`
	Status                      string           `json:"status"`
	Source                      string           `json:"source"`
	Description                 string           `json:"description,omitempty"`
	Reference                   string           `json:"reference,omitempty"`
	RequestID                   *uuid.UUID       `json:"request_id,omitempty"`
	PenaltyApplied              bool             `json:"penalty_applied"`
	PenaltyDate                 *time.Time       `json:"penalty_date,omitempty"`
	OriginalAmountBeforePenalty *decimal.Decimal `json:"original_amount_before_penalty,omitempty"`
	CreatedAt                   time.Time        `json:"created_at"`
}

// FromTransaction maps a ledger transaction to its read model.
func FromTransaction(t *ledger.Transaction) TransactionRead {
	r := TransactionRead{
		ID:             t.ID,
		Type:           string(t.Type),
		Category:       string(t.Category),
		Amount:         t.Amount,
		MemberID:       t.MemberID,
		MemberName:     t.MemberName,
		Date:           t.Date,
		CreatedBy:      t.CreatedBy,
		Status:         string(t.Status),
		Source:         string(t.Source),
		Description:    t.Description,
		Reference:      t.Reference,
		RequestID:      t.RequestID,
		PenaltyApplied: t.PenaltyApplied,
		PenaltyDate:    t.PenaltyDate,
		CreatedAt:      t.CreatedAt,
	}
	if t.Type == ledger.TypeLoan {
		original, rate := t.OriginalAmount, t.InterestRate
		r.OriginalAmount = &original
		r.InterestRate = &rate
	}
	if t.PenaltyApplied {
		before := t.OriginalAmountBeforePenalty
		r.OriginalAmountBeforePenalty = &before
	}
	return r
}

// FromTransactions maps a slice of transactions.
func FromTransactions(txs []*ledger.Transaction) []TransactionRead {
	out := make([]TransactionRead, 0, len(txs))
	for _, t := range txs {
		out = append(out, FromTransaction(t))
	}
	return out
}

// PenaltyAuditRead is the read model of a penalty audit record.
type PenaltyAuditRead struct {
	ID             uuid.UUID       `json:"id"`
	RunID          uuid.UUID       `json:"run_id"`
	TransactionID  uuid.UUID       `json:"transaction_id"`
	MemberID       uuid.UUID       `json:"member_id"`
	MemberName     string          `json:"member_name"`
	PenaltyAmount  decimal.Decimal `json:"penalty_amount"`
	PreviousAmount decimal.Decimal `json:"previous_amount"`
	NewAmount      decimal.Decimal `json:"new_amount"`
	AppliedAt      time.Time       `json:"applied_at"`
}

// FromPenaltyAudit maps an audit record to its read model.
func FromPenaltyAudit(a *ledger.PenaltyAudit) PenaltyAuditRead {
	return PenaltyAuditRead{
		ID:             a.ID,
		RunID:          a.RunID,
		TransactionID:  a.TransactionID,
		MemberID:       a.MemberID,
		MemberName:     a.MemberName,
		PenaltyAmount:  a.PenaltyAmount,
		PreviousAmount: a.PreviousAmount,
		NewAmount:      a.NewAmount,
		AppliedAt:      a.AppliedAt,
	}
}
