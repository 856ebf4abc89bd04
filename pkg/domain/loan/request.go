// Package loan implements the loan request lifecycle: submission with a frozen admin
// snapshot, unanimous approval and first-rejection-wins.
package loan

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kikoba/kikoba/pkg/domain"
	"github.com/kikoba/kikoba/pkg/domain/ledger"
	"github.com/shopspring/decimal"
)

// Type is the kind of loan requested. It doubles as the ledger category.
type Type string

const (
	TypeStandard Type = "Standard"
	TypeDharura  Type = "Dharura"
)

// Category maps the loan type to its ledger category.
func (t Type) Category() ledger.Category {
	return ledger.Category(t)
}

// Valid reports whether t is a known loan type.
func (t Type) Valid() bool {
	return t == TypeStandard || t == TypeDharura
}

// Status of a loan request. Approved and Rejected are terminal.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Decision is one admin's vote.
type Decision string

const (
	DecisionPending  Decision = "pending"
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// DefaultRejectionReason is recorded when a rejecting admin gives no reason.
const DefaultRejectionReason = "Rejected by admin"

// Approver is an admin captured in the snapshot at submission time.
type Approver struct {
	ID   uuid.UUID
	Name string
}

// Applicant is the member asking for the loan.
type Applicant struct {
	ID   uuid.UUID
	Code string
	Name string
}

// Request is a loan request. Approvals and AdminNames are captured once at
// submission and never re-joined against the live admin roster.
type Request struct {
	ID                  uuid.UUID
	MemberID            uuid.UUID
	RequesterMemberCode string
	MemberName          string
	Amount              decimal.Decimal
	Type                Type
	Description         string
	Status              Status
	Approvals           map[uuid.UUID]Decision
	AdminNames          map[uuid.UUID]string
	RejectionReason     string
	RejectedBy          *uuid.UUID
	DecidedAt           *time.Time
	TransactionID       *uuid.UUID
	Version             int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ValidateSubmission checks the caller-supplied fields of a loan request.
func ValidateSubmission(amount decimal.Decimal, t Type, description string) error {
	if !amount.IsPositive() {
		return domain.Validation("amount must be greater than zero")
	}
	if strings.TrimSpace(description) == "" {
		return domain.Validation("description is required")
	}
	if !t.Valid() {
		return domain.Validation("unknown loan type %q", t)
	}
	return nil
}

// NewRequest validates a submission and freezes the approver snapshot.
func NewRequest(
	applicant Applicant,
	amount decimal.Decimal,
	t Type,
	description string,
	approvers []Approver,
	now time.Time,
) (*Request, error) {
	if err := ValidateSubmission(amount, t, description); err != nil {
		return nil, err
	}
	if len(approvers) == 0 {
		return nil, domain.ErrNoApprovers
	}
	approvals := make(map[uuid.UUID]Decision, len(approvers))
	names := make(map[uuid.UUID]string, len(approvers))
	for _, a := range approvers {
		approvals[a.ID] = DecisionPending
		names[a.ID] = a.Name
	}
	return &Request{
		ID:                  uuid.New(),
		MemberID:            applicant.ID,
		RequesterMemberCode: applicant.Code,
		MemberName:          applicant.Name,
		Amount:              amount,
		Type:                t,
		Description:         strings.TrimSpace(description),
		Status:              StatusPending,
		Approvals:           approvals,
		AdminNames:          names,
		Version:             1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// CastVote records adminID's decision and returns the resulting status.
//
// A rejection ends the request immediately. An approval ends it only when every
// snapshotted admin has approved. Votes on a terminal request fail with
// ErrAlreadyDecided and leave the request untouched.
func (r *Request) CastVote(adminID uuid.UUID, d Decision, reason string, now time.Time) (Status, error) {
	if r.Status.Terminal() {
		return r.Status, domain.ErrAlreadyDecided
	}
	if _, ok := r.Approvals[adminID]; !ok {
		return r.Status, domain.ErrVoterNotEligible
	}
	switch d {
	case DecisionRejected:
		r.Approvals[adminID] = DecisionRejected
		r.Status = StatusRejected
		r.RejectionReason = strings.TrimSpace(reason)
		if r.RejectionReason == "" {
			r.RejectionReason = DefaultRejectionReason
		}
		voter := adminID
		r.RejectedBy = &voter
		r.DecidedAt = &now
	case DecisionApproved:
		r.Approvals[adminID] = DecisionApproved
		if r.unanimous() {
			r.Status = StatusApproved
			r.DecidedAt = &now
		}
	default:
		return r.Status, domain.ErrInvalidDecision
	}
	r.UpdatedAt = now
	return r.Status, nil
}

func (r *Request) unanimous() bool {
	for _, d := range r.Approvals {
		if d != DecisionApproved {
			return false
		}
	}
	return true
}

// PendingVoters returns the admins who have not voted yet.
func (r *Request) PendingVoters() []uuid.UUID {
	var ids []uuid.UUID
	for id, d := range r.Approvals {
		if d == DecisionPending {
			ids = append(ids, id)
		}
	}
	return ids
}

// AwaitsVoteFrom reports whether adminID still has to vote on a pending request.
func (r *Request) AwaitsVoteFrom(adminID uuid.UUID) bool {
	return r.Status == StatusPending && r.Approvals[adminID] == DecisionPending
}

// LoanTerms returns what finalize-to-ledger needs. It fails unless the request is
// Approved, which is the guard against finalizing twice from a non-terminal state.
func (r *Request) LoanTerms(approvedBy string) (ledger.LoanTerms, error) {
	if r.Status != StatusApproved || r.DecidedAt == nil {
		return ledger.LoanTerms{}, fmt.Errorf("%w: request %s is %s", domain.ErrStateConflict, r.ID, r.Status)
	}
	return ledger.LoanTerms{
		RequestID:   r.ID,
		MemberID:    r.MemberID,
		MemberName:  r.MemberName,
		Principal:   r.Amount,
		Category:    r.Type.Category(),
		Description: r.Description,
		ApprovedBy:  approvedBy,
		ApprovedAt:  *r.DecidedAt,
	}, nil
}

// Clone returns a deep copy so that a failed attempt never leaks mutations.
func (r *Request) Clone() *Request {
	c := *r
	c.Approvals = make(map[uuid.UUID]Decision, len(r.Approvals))
	for k, v := range r.Approvals {
		c.Approvals[k] = v
	}
	c.AdminNames = make(map[uuid.UUID]string, len(r.AdminNames))
	for k, v := range r.AdminNames {
		c.AdminNames[k] = v
	}
	if r.RejectedBy != nil {
		v := *r.RejectedBy
		c.RejectedBy = &v
	}
	if r.DecidedAt != nil {
		v := *r.DecidedAt
		c.DecidedAt = &v
	}
	if r.TransactionID != nil {
		v := *r.TransactionID
		c.TransactionID = &v
	}
	return &c
}
