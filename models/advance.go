package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	AdvanceOutstanding = "outstanding"
	AdvanceRecovered   = "recovered"
	AdvanceCancelled   = "cancelled"
)

// AdvanceRecovery records the part of an advance netted against one payout.
type AdvanceRecovery struct {
	PayoutID primitive.ObjectID `bson:"payoutId" json:"payoutId"`
	Amount   decimal.Decimal    `bson:"amount" json:"amount"`
	At       time.Time          `bson:"at" json:"at"`
}

// CommissionAdvance is a pre-payment to a sales rep, recovered from later payouts.
type CommissionAdvance struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SalesRepID      primitive.ObjectID `bson:"salesRepId" json:"salesRepId"`
	Amount          decimal.Decimal    `bson:"amount" json:"amount"`
	RecoveredAmount decimal.Decimal    `bson:"recoveredAmount" json:"recoveredAmount"`
	Currency        string             `bson:"currency" json:"currency"`
	Status          string             `bson:"status" json:"status"`
	Note            string             `bson:"note,omitempty" json:"note,omitempty"`
	Recoveries      []AdvanceRecovery  `bson:"recoveries,omitempty" json:"recoveries,omitempty"`
	IssuedAt        time.Time          `bson:"issuedAt" json:"issuedAt"`
	IssuedBy        string             `bson:"issuedBy,omitempty" json:"issuedBy,omitempty"`
	Version         int64              `bson:"version" json:"-"`
}

// Outstanding is the part of the advance not yet recovered.
func (a *CommissionAdvance) Outstanding() decimal.Decimal {
	if a.Status == AdvanceCancelled {
		return decimal.Zero
	}
	return a.Amount.Sub(a.RecoveredAmount)
}
