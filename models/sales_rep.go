package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RepActive    = "active"
	RepSuspended = "suspended"
)

type SalesRepresentative struct {
	ID                primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	FullName          string              `json:"fullName" bson:"fullName"`
	Email             string              `json:"email" bson:"email"`
	PhoneNumber       string              `json:"phoneNumber,omitempty" bson:"phoneNumber,omitempty"`
	Region            string              `json:"region,omitempty" bson:"region,omitempty"`
	SalesManagerID    *primitive.ObjectID `json:"salesManagerId,omitempty" bson:"salesManagerId,omitempty"`
	CommissionPercent decimal.Decimal     `json:"commissionPercent" bson:"commissionPercent"`
	Status            string              `json:"status" bson:"status"`
	SuspendedAt       *time.Time          `json:"suspendedAt,omitempty" bson:"suspendedAt,omitempty"`
	SuspensionReason  string              `json:"suspensionReason,omitempty" bson:"suspensionReason,omitempty"`
	CreatedAt         time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt" bson:"updatedAt"`
}

func (r *SalesRepresentative) Active() bool {
	return r.Status == RepActive
}

// RepBalance is the reconciled position of one sales representative.
type RepBalance struct {
	SalesRepID          primitive.ObjectID `json:"salesRepId"`
	FullName            string             `json:"fullName"`
	Status              string             `json:"status"`
	Currency            string             `json:"currency"`
	Totals              EarningTotals      `json:"totals"`
	AdvancesOutstanding decimal.Decimal    `json:"advancesOutstanding"`
	GrossPayable        decimal.Decimal    `json:"grossPayable"`
	NetPayable          decimal.Decimal    `json:"netPayable"`
	OnHold              decimal.Decimal    `json:"onHold"`
}
