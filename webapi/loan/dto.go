package loan

import "github.com/shopspring/decimal"

// SubmitLoanRequest represents the request body for submitting a loan request.
type SubmitLoanRequest struct {
	Amount      decimal.Decimal `json:"amount" swaggertype:"string" example:"100000"`
	Type        string          `json:"type" validate:"required,oneof=Standard Dharura" example:"Dharura"`
	Description string          `json:"description" validate:"required,max=500" example:"School fees"`
}

// VoteRequest represents the request body for an admin's vote.
type VoteRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected" example:"approved"`
	Reason   string `json:"reason,omitempty" validate:"max=500"`
}
