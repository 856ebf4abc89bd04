package dto

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kikoba/kikoba/pkg/domain/loan"
	"github.com/shopspring/decimal"
)

// ApprovalRead is one admin's vote on a loan request.
type ApprovalRead struct {
	AdminID   uuid.UUID `json:"admin_id"`
	AdminName string    `json:"admin_name"`
	Decision  string    `json:"decision"`
}

// LoanRequestRead is the read model of a loan request.
type LoanRequestRead struct {
	ID                  uuid.UUID       `json:"id"`
	MemberID            uuid.UUID       `json:"member_id"`
	RequesterMemberCode string          `json:"requester_member_code"`
	MemberName          string          `json:"member_name"`
	Amount              decimal.Decimal `json:"amount"`
	Type                string          `json:"type"`
	Description         string          `json:"description"`
	Status              string          `json:"status"`
	Approvals           []ApprovalRead  `json:"approvals"`
	RejectionReason     string          `json:"rejection_reason,omitempty"`
	RejectedBy          *uuid.UUID      `json:"rejected_by,omitempty"`
	DecidedAt           *time.Time      `json:"decided_at,omitempty"`
	TransactionID       *uuid.UUID      `json:"transaction_id,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// FromLoanRequest maps a loan request to its read model. Approvals are ordered by
// admin name so responses are stable.
func FromLoanRequest(r *loan.Request) LoanRequestRead {
	approvals := make([]ApprovalRead, 0, len(r.Approvals))
	for id, d := range r.Approvals {
		approvals = append(approvals, ApprovalRead{AdminID: id, AdminName: r.AdminNames[id], Decision: string(d)})
	}
	sort.Slice(approvals, func(i, j int) bool {
		if approvals[i].AdminName != approvals[j].AdminName {
			return approvals[i].AdminName < approvals[j].AdminName
		}
		return approvals[i].AdminID.String() < approvals[j].AdminID.String()
	})
	return LoanRequestRead{
		ID:                  r.ID,
		MemberID:            r.MemberID,
		RequesterMemberCode: r.RequesterMemberCode,
		MemberName:          r.MemberName,
		Amount:              r.Amount,
		Type:                string(r.Type),
		Description:         r.Description,
		Status:              string(r.Status),
		Approvals:           approvals,
		RejectionReason:     r.RejectionReason,
		RejectedBy:          r.RejectedBy,
		DecidedAt:           r.DecidedAt,
		TransactionID:       r.TransactionID,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

// FromLoanRequests maps a slice of loan requests.
func FromLoanRequests(reqs []*loan.Request) []LoanRequestRead {
	out := make([]LoanRequestRead, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, FromLoanRequest(r))
	}
	return out
}
