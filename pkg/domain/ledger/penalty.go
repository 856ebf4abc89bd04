package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PenaltyAudit is the audit record written after a penalty has been applied.
type PenaltyAudit struct {
	ID             uuid.UUID
	RunID          uuid.UUID
	TransactionID  uuid.UUID
	MemberID       uuid.UUID
	MemberName     string
	PenaltyAmount  decimal.Decimal
	PreviousAmount decimal.Decimal
	NewAmount      decimal.Decimal
	AppliedAt      time.Time
}

// NewPenaltyAudit records the penalty just applied to t.
func NewPenaltyAudit(runID uuid.UUID, t *Transaction, penalty decimal.Decimal) *PenaltyAudit {
	audit := &PenaltyAudit{
		ID:             uuid.New(),
		RunID:          runID,
		TransactionID:  t.ID,
		MemberID:       t.MemberID,
		MemberName:     t.MemberName,
		PenaltyAmount:  penalty,
		PreviousAmount: t.OriginalAmountBeforePenalty,
		NewAmount:      t.Amount,
	}
	if t.PenaltyDate != nil {
		audit.AppliedAt = *t.PenaltyDate
	}
	return audit
}
