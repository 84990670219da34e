package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Earning statuses
const (
	EarningPending  = "pending"
	EarningEarned   = "earned"
	EarningPayable  = "payable"
	EarningPaid     = "paid"
	EarningReversed = "reversed"
)

// Earning source types
const (
	SourceInvoice      = "invoice"
	SourceProject      = "project"
	SourceSubscription = "subscription"
	SourceReferral     = "referral"
)

// SourceTypes lists every accepted earning source.
var SourceTypes = []string{SourceInvoice, SourceProject, SourceSubscription, SourceReferral}

// CommissionEarning is money owed to a sales representative for one sale.
// PayoutID is set while the earning is attached to a draft or paid payout.
type CommissionEarning struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	SalesRepID  primitive.ObjectID  `bson:"salesRepId" json:"salesRepId"`
	SourceType  string              `bson:"sourceType" json:"sourceType"`
	SourceID    string              `bson:"sourceId" json:"sourceId"`
	Description string              `bson:"description,omitempty" json:"description,omitempty"`
	BaseAmount  decimal.Decimal     `bson:"baseAmount" json:"baseAmount"`
	RatePercent decimal.Decimal     `bson:"ratePercent" json:"ratePercent"`
	Amount      decimal.Decimal     `bson:"amount" json:"amount"`
	Currency    string              `bson:"currency" json:"currency"`
	Status      string              `bson:"status" json:"status"`
	PayoutID    *primitive.ObjectID `bson:"payoutId,omitempty" json:"payoutId,omitempty"`

	EarnedAt       *time.Time `bson:"earnedAt,omitempty" json:"earnedAt,omitempty"`
	PayableAt      *time.Time `bson:"payableAt,omitempty" json:"payableAt,omitempty"`
	PaidAt         *time.Time `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	ReversedAt     *time.Time `bson:"reversedAt,omitempty" json:"reversedAt,omitempty"`
	ReversalReason string     `bson:"reversalReason,omitempty" json:"reversalReason,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Locked reports whether the earning is attached to a payout.
func (e *CommissionEarning) Locked() bool {
	return e.PayoutID != nil && !e.PayoutID.IsZero()
}

// EarningTotals aggregates earning amounts by lifecycle state.
// Payable only counts earnings not yet attached to a payout; InDraft holds
// payable earnings locked by a draft payout.
type EarningTotals struct {
	Pending  decimal.Decimal `json:"pending"`
	Earned   decimal.Decimal `json:"earned"`
	Payable  decimal.Decimal `json:"payable"`
	InDraft  decimal.Decimal `json:"inDraft"`
	Paid     decimal.Decimal `json:"paid"`
	Reversed decimal.Decimal `json:"reversed"`
}
