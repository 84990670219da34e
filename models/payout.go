package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	PayoutDraft    = "draft"
	PayoutPaid     = "paid"
	PayoutReversed = "reversed"
)

// CommissionPayout is a batched disbursement of earnings to one sales rep.
// GrossAmount always equals the sum of the linked earnings.
type CommissionPayout struct {
	ID               primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	SalesRepID       primitive.ObjectID   `bson:"salesRepId" json:"salesRepId"`
	Status           string               `bson:"status" json:"status"`
	EarningIDs       []primitive.ObjectID `bson:"earningIds" json:"earningIds"`
	GrossAmount      decimal.Decimal      `bson:"grossAmount" json:"grossAmount"`
	AdvanceDeduction decimal.Decimal      `bson:"advanceDeduction" json:"advanceDeduction"`
	NetAmount        decimal.Decimal      `bson:"netAmount" json:"netAmount"`
	Currency         string               `bson:"currency" json:"currency"`
	Reference        string               `bson:"reference,omitempty" json:"reference,omitempty"`
	Note             string               `bson:"note,omitempty" json:"note,omitempty"`
	IdempotencyKey   string               `bson:"idempotencyKey,omitempty" json:"-"`

	CreatedBy      string     `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt      time.Time  `bson:"createdAt" json:"createdAt"`
	PaidAt         *time.Time `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	PaidBy         string     `bson:"paidBy,omitempty" json:"paidBy,omitempty"`
	ReversedAt     *time.Time `bson:"reversedAt,omitempty" json:"reversedAt,omitempty"`
	ReversedBy     string     `bson:"reversedBy,omitempty" json:"reversedBy,omitempty"`
	ReversalReason string     `bson:"reversalReason,omitempty" json:"reversalReason,omitempty"`
}

// FinanceSummary is the ledger-wide position shown on the finance dashboard.
type FinanceSummary struct {
	Currency            string          `json:"currency"`
	Totals              EarningTotals   `json:"totals"`
	AdvancesOutstanding decimal.Decimal `json:"advancesOutstanding"`
	PaidPayoutsNet      decimal.Decimal `json:"paidPayoutsNet"`
	PaidPayoutCount     int             `json:"paidPayoutCount"`
	DraftPayoutCount    int             `json:"draftPayoutCount"`
	ReversedPayoutCount int             `json:"reversedPayoutCount"`
	NetLiability        decimal.Decimal `json:"netLiability"`
	LastUpdated         time.Time       `json:"lastUpdated"`
}
