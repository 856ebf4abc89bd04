package repository

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kikoba/kikoba/pkg/domain/ledger"
	"github.com/kikoba/kikoba/pkg/domain/loan"
	"github.com/kikoba/kikoba/pkg/domain/member"
	"github.com/shopspring/decimal"
)

// Transaction represents a persisted ledger transaction.
type Transaction struct {
	ID                          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Type                        string    `gorm:"type:varchar(32);not null"`
	Category                    string    `gorm:"type:varchar(16);not null"`
	Amount                      decimal.Decimal
	OriginalAmount              decimal.NullDecimal
	InterestRate                decimal.NullDecimal
	MemberID                    uuid.UUID `gorm:"type:uuid;not null;index"`
	MemberName                  string
	Date                        time.Time `gorm:"not null"`
	CreatedBy                   string
	Status                      string `gorm:"type:varchar(16);not null"`
	Source                      string `gorm:"type:varchar(16);not null"`
	Description                 string
	Reference                   string
	RequestID                   *uuid.UUID `gorm:"type:uuid"`
	PenaltyApplied              bool
	PenaltyDate                 *time.Time
	OriginalAmountBeforePenalty decimal.NullDecimal
	Version                     int64
	CreatedAt                   time.Time
	UpdatedAt                   time.Time
}

// TableName specifies the table name for the Transaction model.
func (Transaction) TableName() string {
	return "transactions"
}

// Approval is one admin's slot in a loan request's frozen approver snapshot.
type Approval struct {
	AdminID   uuid.UUID `json:"admin_id"`
	AdminName string    `json:"admin_name"`
	Decision  string    `json:"decision"`
}

// Approvals is stored as a jsonb array so "awaiting my vote" can use containment.
type Approvals []Approval

// Value implements driver.Valuer.
func (a Approvals) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (a *Approvals) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("approvals: unsupported type %T", src)
	}
}

// LoanRequest represents a persisted loan request.
type LoanRequest struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey"`
	MemberID            uuid.UUID `gorm:"type:uuid;not null;index"`
	RequesterMemberCode string
	MemberName          string
	Amount              decimal.Decimal
	Type                string    `gorm:"type:varchar(16);not null"`
	Description         string    `gorm:"not null"`
	Status              string    `gorm:"type:varchar(16);not null"`
	Approvals           Approvals `gorm:"type:jsonb;not null"`
	RejectionReason     string
	RejectedBy          *uuid.UUID `gorm:"type:uuid"`
	DecidedAt           *time.Time
	TransactionID       *uuid.UUID `gorm:"type:uuid"`
	Version             int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TableName specifies the table name for the LoanRequest model.
func (LoanRequest) TableName() string {
	return "loan_requests"
}

// Member represents a persisted member. CodeKey is the normalized code used for
// lookups and uniqueness.
type Member struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Code        string    `gorm:"not null"`
	CodeKey     string    `gorm:"not null;uniqueIndex"`
	DisplayName string    `gorm:"not null"`
	Email       string
	Role        string `gorm:"type:varchar(16);not null"`
	Status      string `gorm:"type:varchar(16);not null"`
	JoinedAt    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName specifies the table name for the Member model.
func (Member) TableName() string {
	return "members"
}

// GroupCode represents a persisted group code.
type GroupCode struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Code           string    `gorm:"not null"`
	CodeKey        string    `gorm:"not null;uniqueIndex"`
	IsActive       bool
	ExpiresAt      *time.Time
	MaxRedemptions int
	RedeemedCount  int
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName specifies the table name for the GroupCode model.
func (GroupCode) TableName() string {
	return "group_codes"
}

// PenaltyAudit represents a persisted penalty audit record.
type PenaltyAudit struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	RunID          uuid.UUID `gorm:"type:uuid;not null"`
	TransactionID  uuid.UUID `gorm:"type:uuid;not null;index"`
	MemberID       uuid.UUID `gorm:"type:uuid;not null"`
	MemberName     string
	PenaltyAmount  decimal.Decimal
	PreviousAmount decimal.Decimal
	NewAmount      decimal.Decimal
	AppliedAt      time.Time
	CreatedAt      time.Time
}

// TableName specifies the table name for the PenaltyAudit model.
func (PenaltyAudit) TableName() string {
	return "penalty_audits"
}

// --- Mappers ---

func nullDecimal(d decimal.Decimal) decimal.NullDecimal {
	if d.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

func mapTransactionToModel(t *ledger.Transaction) *Transaction {
	return &Transaction{
		ID:                          t.ID,
		Type:                        string(t.Type),
		Category:                    string(t.Category),
		Amount:                      t.Amount,
		OriginalAmount:              nullDecimal(t.OriginalAmount),
		InterestRate:                nullDecimal(t.InterestRate),
		MemberID:                    t.MemberID,
		MemberName:                  t.MemberName,
		Date:                        t.Date,
		CreatedBy:                   t.CreatedBy,
		Status:                      string(t.Status),
		Source:                      string(t.Source),
		Description:                 t.Description,
		Reference:                   t.Reference,
		RequestID:                   t.RequestID,
		PenaltyApplied:              t.PenaltyApplied,
		PenaltyDate:                 t.PenaltyDate,
		OriginalAmountBeforePenalty: nullDecimal(t.OriginalAmountBeforePenalty),
		Version:                     t.Version,
		CreatedAt:                   t.CreatedAt,
	}
}

func mapModelToTransaction(m *Transaction) *ledger.Transaction {
	return &ledger.Transaction{
		ID:                          m.ID,
		Type:                        ledger.Type(m.Type),
		Category:                    ledger.Category(m.Category),
		Amount:                      m.Amount,
		OriginalAmount:              orZero(m.OriginalAmount),
		InterestRate:                orZero(m.InterestRate),
		MemberID:                    m.MemberID,
		MemberName:                  m.MemberName,
		Date:                        m.Date,
		CreatedBy:                   m.CreatedBy,
		Status:                      ledger.Status(m.Status),
		Source:                      ledger.Source(m.Source),
		Description:                 m.Description,
		Reference:                   m.Reference,
		RequestID:                   m.RequestID,
		PenaltyApplied:              m.PenaltyApplied,
		PenaltyDate:                 m.PenaltyDate,
		OriginalAmountBeforePenalty: orZero(m.OriginalAmountBeforePenalty),
		Version:                     m.Version,
		CreatedAt:                   m.CreatedAt,
	}
}

func mapApprovals(r *loan.Request) Approvals {
	out := make(Approvals, 0, len(r.Approvals))
	for id, d := range r.Approvals {
		out = append(out, Approval{AdminID: id, AdminName: r.AdminNames[id], Decision: string(d)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AdminID.String() < out[j].AdminID.String() })
	return out
}

func mapLoanRequestToModel(r *loan.Request) *LoanRequest {
	return &LoanRequest{
		ID:                  r.ID,
		MemberID:            r.MemberID,
		RequesterMemberCode: r.RequesterMemberCode,
		MemberName:          r.MemberName,
		Amount:              r.Amount,
		Type:                string(r.Type),
		Description:         r.Description,
		Status:              string(r.Status),
		Approvals:           mapApprovals(r),
		RejectionReason:     r.RejectionReason,
		RejectedBy:          r.RejectedBy,
		DecidedAt:           r.DecidedAt,
		TransactionID:       r.TransactionID,
		Version:             r.Version,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func mapModelToLoanRequest(m *LoanRequest) *loan.Request {
	r := &loan.Request{
		ID:                  m.ID,
		MemberID:            m.MemberID,
		RequesterMemberCode: m.RequesterMemberCode,
		MemberName:          m.MemberName,
		Amount:              m.Amount,
		Type:                loan.Type(m.Type),
		Description:         m.Description,
		Status:              loan.Status(m.Status),
		Approvals:           make(map[uuid.UUID]loan.Decision, len(m.Approvals)),
		AdminNames:          make(map[uuid.UUID]string, len(m.Approvals)),
		RejectionReason:     m.RejectionReason,
		RejectedBy:          m.RejectedBy,
		DecidedAt:           m.DecidedAt,
		TransactionID:       m.TransactionID,
		Version:             m.Version,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
	for _, a := range m.Approvals {
		r.Approvals[a.AdminID] = loan.Decision(a.Decision)
		r.AdminNames[a.AdminID] = a.AdminName
	}
	return r
}

func mapMemberToModel(m *member.Member) *Member {
	return &Member{
		ID:          m.ID,
		Code:        m.Code,
		CodeKey:     member.NormalizeCode(m.Code),
		DisplayName: m.DisplayName,
		Email:       m.Email,
		Role:        string(m.Role),
		Status:      string(m.Status),
		JoinedAt:    m.JoinedAt,
	}
}

func mapModelToMember(m *Member) *member.Member {
	return &member.Member{
		ID:          m.ID,
		Code:        m.Code,
		DisplayName: m.DisplayName,
		Email:       m.Email,
		Role:        member.Role(m.Role),
		Status:      member.Status(m.Status),
		JoinedAt:    m.JoinedAt,
	}
}

func mapGroupCodeToModel(g *member.GroupCode) *GroupCode {
	return &GroupCode{
		ID:             g.ID,
		Code:           g.Code,
		CodeKey:        member.NormalizeCode(g.Code),
		IsActive:       g.IsActive,
		ExpiresAt:      g.ExpiresAt,
		MaxRedemptions: g.MaxRedemptions,
		RedeemedCount:  g.RedeemedCount,
		Version:        g.Version,
		CreatedAt:      g.CreatedAt,
	}
}

func mapModelToGroupCode(m *GroupCode) *member.GroupCode {
	return &member.GroupCode{
		ID:             m.ID,
		Code:           m.Code,
		IsActive:       m.IsActive,
		ExpiresAt:      m.ExpiresAt,
		MaxRedemptions: m.MaxRedemptions,
		RedeemedCount:  m.RedeemedCount,
		Version:        m.Version,
		CreatedAt:      m.CreatedAt,
	}
}

func mapPenaltyAuditToModel(a *ledger.PenaltyAudit) *PenaltyAudit {
	return &PenaltyAudit{
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

func mapModelToPenaltyAudit(m *PenaltyAudit) *ledger.PenaltyAudit {
	return &ledger.PenaltyAudit{
		ID:             m.ID,
		RunID:          m.RunID,
		TransactionID:  m.TransactionID,
		MemberID:       m.MemberID,
		MemberName:     m.MemberName,
		PenaltyAmount:  m.PenaltyAmount,
		PreviousAmount: m.PreviousAmount,
		NewAmount:      m.NewAmount,
		AppliedAt:      m.AppliedAt,
	}
}
