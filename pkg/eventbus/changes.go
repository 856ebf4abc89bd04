package eventbus

import (
	"github.com/kikoba/kikoba/pkg/domain/ledger"
	"github.com/kikoba/kikoba/pkg/domain/loan"
	"github.com/kikoba/kikoba/pkg/domain/member"
	"github.com/kikoba/kikoba/pkg/dto"
)

// TransactionChange describes a ledger write.
func TransactionChange(t *ledger.Transaction, op Op) Change {
	return Change{
		Collection: CollectionTransactions,
		ID:         t.ID,
		Op:         op,
		Attrs: map[string]string{
			"member_id": t.MemberID.String(),
			"type":      string(t.Type),
			"category":  string(t.Category),
		},
		Doc: dto.FromTransaction(t),
	}
}

// LoanRequestChange describes a loan request write.
func LoanRequestChange(r *loan.Request, op Op) Change {
	return Change{
		Collection: CollectionLoanRequests,
		ID:         r.ID,
		Op:         op,
		Attrs: map[string]string{
			"member_id": r.MemberID.String(),
			"status":    string(r.Status),
			"type":      string(r.Type),
		},
		Doc: dto.FromLoanRequest(r),
	}
}

// PenaltyAuditChange describes a new penalty audit record.
func PenaltyAuditChange(a *ledger.PenaltyAudit) Change {
	return Change{
		Collection: CollectionPenaltyAudits,
		ID:         a.ID,
		Op:         OpCreate,
		Attrs: map[string]string{
			"member_id":      a.MemberID.String(),
			"transaction_id": a.TransactionID.String(),
		},
		Doc: dto.FromPenaltyAudit(a),
	}
}

// MemberChange describes a new member.
func MemberChange(m *member.Member, op Op) Change {
	return Change{
		Collection: CollectionMembers,
		ID:         m.ID,
		Op:         op,
		Attrs:      map[string]string{"role": string(m.Role), "status": string(m.Status)},
		Doc:        dto.FromMember(m),
	}
}
