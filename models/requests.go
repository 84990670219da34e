package models

import "github.com/shopspring/decimal"

type CreateSalesRepRequest struct {
	FullName          string          `json:"fullName" validate:"required,min=2"`
	Email             string          `json:"email" validate:"required,email"`
	PhoneNumber       string          `json:"phoneNumber,omitempty"`
	Region            string          `json:"region,omitempty"`
	SalesManagerID    string          `json:"salesManagerId,omitempty" validate:"omitempty,len=24,hexadecimal"`
	CommissionPercent decimal.Decimal `json:"commissionPercent"`
}

type SuspendSalesRepRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type RecordEarningRequest struct {
	SalesRepID  string           `json:"salesRepId" validate:"required,len=24,hexadecimal"`
	SourceType  string           `json:"sourceType" validate:"required,oneof=invoice project subscription referral"`
	SourceID    string           `json:"sourceId" validate:"required"`
	Description string           `json:"description,omitempty"`
	BaseAmount  decimal.Decimal  `json:"baseAmount"`
	RatePercent *decimal.Decimal `json:"ratePercent,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Currency    string           `json:"currency,omitempty" validate:"omitempty,len=3"`
	Earned      bool             `json:"earned,omitempty"`
}

type ReverseRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type IssueAdvanceRequest struct {
	SalesRepID string          `json:"salesRepId" validate:"required,len=24,hexadecimal"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	Note       string          `json:"note,omitempty"`
}

type CreatePayoutRequest struct {
	SalesRepID string   `json:"salesRepId" validate:"required,len=24,hexadecimal"`
	EarningIDs []string `json:"earningIds,omitempty" validate:"omitempty,dive,len=24,hexadecimal"`
	Note       string   `json:"note,omitempty"`
}
