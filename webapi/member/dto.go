package member

import (
	"time"

	"github.com/shopspring/decimal"
)

// JoinRequest represents the request body for joining the group.
type JoinRequest struct {
	Code        string `json:"code" validate:"required" example:"KIKOBA-2026"`
	MemberCode  string `json:"member_code" validate:"required,max=32" example:"M-014"`
	DisplayName string `json:"display_name" validate:"required,max=100" example:"Amina Juma"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
}

// IssueCodeRequest represents the request body for issuing a group code.
type IssueCodeRequest struct {
	Code           string     `json:"code" validate:"required,max=64" example:"KIKOBA-2026"`
	MaxRedemptions int        `json:"max_redemptions" validate:"min=0"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// RecordRequest represents a manual contribution or repayment.
type RecordRequest struct {
	Type      string          `json:"type" validate:"required,oneof=Contribution LoanRepayment" example:"Contribution"`
	Category  string          `json:"category" validate:"required,oneof=Hisa Jamii Standard Dharura" example:"Hisa"`
	Amount    decimal.Decimal `json:"amount" swaggertype:"string" example:"5000"`
	Date      *time.Time      `json:"date,omitempty"`
	Reference string          `json:"reference,omitempty" validate:"max=128"`
}
