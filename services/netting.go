package services

import (
	"sort"
	"time"

	"github.com/HSouheill/barrim_ledger/models"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Recovery is the amount taken from one advance.
type Recovery struct {
	AdvanceID primitive.ObjectID
	Amount    decimal.Decimal
}

// Netting is the result of offsetting a gross payout against advances.
type Netting struct {
	Gross      decimal.Decimal
	Deduction  decimal.Decimal
	Net        decimal.Decimal
	Recoveries []Recovery
}

// RoundAmount rounds to cents, half away from zero.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// NetAgainstAdvances recovers outstanding advances from gross, oldest advance
// first. The deduction never exceeds gross, so Net is never negative.
func NetAgainstAdvances(gross decimal.Decimal, advances []models.CommissionAdvance) Netting {
	n := Netting{Gross: RoundAmount(gross), Deduction: decimal.Zero}
	if !n.Gross.IsPositive() {
		n.Gross = decimal.Zero
		n.Net = decimal.Zero
		return n
	}

	ordered := make([]models.CommissionAdvance, 0, len(advances))
	for _, a := range advances {
		if a.Status == models.AdvanceOutstanding && a.Outstanding().IsPositive() {
			ordered = append(ordered, a)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].IssuedAt.Before(ordered[j].IssuedAt) })

	remaining := n.Gross
	for _, a := range ordered {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(remaining, a.Outstanding())
		n.Recoveries = append(n.Recoveries, Recovery{AdvanceID: a.ID, Amount: take})
		n.Deduction = n.Deduction.Add(take)
		remaining = remaining.Sub(take)
	}
	n.Net = remaining
	return n
}

// applyRecovery books amount of payoutID against the advance.
func applyRecovery(a *models.CommissionAdvance, payoutID primitive.ObjectID, amount decimal.Decimal, at time.Time) {
	a.RecoveredAmount = a.RecoveredAmount.Add(amount)
	a.Recoveries = append(a.Recoveries, models.AdvanceRecovery{PayoutID: payoutID, Amount: amount, At: at})
	if !a.Outstanding().IsPositive() {
		a.Status = models.AdvanceRecovered
	}
}

// releaseRecoveries undoes every recovery booked by payoutID and returns the
// amount given back to the advance.
func releaseRecoveries(a *models.CommissionAdvance, payoutID primitive.ObjectID) decimal.Decimal {
	released := decimal.Zero
	kept := a.Recoveries[:0]
	for _, rec := range a.Recoveries {
		if rec.PayoutID == payoutID {
			released = released.Add(rec.Amount)
			continue
		}
		kept = append(kept, rec)
	}
	a.Recoveries = kept
	a.RecoveredAmount = a.RecoveredAmount.Sub(released)
	if a.Status == models.AdvanceRecovered && a.Outstanding().IsPositive() {
		a.Status = models.AdvanceOutstanding
	}
	return released
}
