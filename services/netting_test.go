package services

import (
	"testing"
	"time"

	"github.com/HSouheill/barrim_ledger/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testAdvance(amount, recovered string, issued time.Time) models.CommissionAdvance {
	return models.CommissionAdvance{
		ID:              primitive.NewObjectID(),
		Amount:          dec(amount),
		RecoveredAmount: dec(recovered),
		Status:          models.AdvanceOutstanding,
		IssuedAt:        issued,
	}
}

func TestNetAgainstAdvances_NoAdvances(t *testing.T) {
	n := NetAgainstAdvances(dec("250.00"), nil)

	assert.True(t, n.Gross.Equal(dec("250")))
	assert.True(t, n.Deduction.IsZero())
	assert.True(t, n.Net.Equal(dec("250")))
	assert.Empty(t, n.Recoveries)
}

func TestNetAgainstAdvances_OldestFirst(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := testAdvance("50", "0", t0.Add(48*time.Hour))
	older := testAdvance("100", "0", t0)

	n := NetAgainstAdvances(dec("120"), []models.CommissionAdvance{newer, older})

	require.Len(t, n.Recoveries, 2)
	assert.Equal(t, older.ID, n.Recoveries[0].AdvanceID)
	assert.True(t, n.Recoveries[0].Amount.Equal(dec("100")))
	assert.Equal(t, newer.ID, n.Recoveries[1].AdvanceID)
	assert.True(t, n.Recoveries[1].Amount.Equal(dec("20")))
	assert.True(t, n.Deduction.Equal(dec("120")))
	assert.True(t, n.Net.IsZero())
}

func TestNetAgainstAdvances_DeductionCappedAtGross(t *testing.T) {
	a := testAdvance("500", "0", time.Now())

	n := NetAgainstAdvances(dec("80.25"), []models.CommissionAdvance{a})

	assert.True(t, n.Deduction.Equal(dec("80.25")))
	assert.True(t, n.Net.IsZero())
	assert.False(t, n.Net.IsNegative())
}

func TestNetAgainstAdvances_PartiallyRecoveredAndSettled(t *testing.T) {
	t0 := time.Now()
	partial := testAdvance("100", "40", t0)
	cancelled := testAdvance("70", "0", t0.Add(-time.Hour))
	cancelled.Status = models.AdvanceCancelled
	recovered := testAdvance("30", "30", t0.Add(-2*time.Hour))
	recovered.Status = models.AdvanceRecovered

	n := NetAgainstAdvances(dec("200"), []models.CommissionAdvance{cancelled, recovered, partial})

	require.Len(t, n.Recoveries, 1)
	assert.Equal(t, partial.ID, n.Recoveries[0].AdvanceID)
	assert.True(t, n.Deduction.Equal(dec("60")))
	assert.True(t, n.Net.Equal(dec("140")))
}

func TestNetAgainstAdvances_NonPositiveGross(t *testing.T) {
	a := testAdvance("10", "0", time.Now())

	n := NetAgainstAdvances(dec("-5"), []models.CommissionAdvance{a})

	assert.True(t, n.Gross.IsZero())
	assert.True(t, n.Net.IsZero())
	assert.Empty(t, n.Recoveries)
}

func TestRoundAmount(t *testing.T) {
	assert.Equal(t, "92.59", RoundAmount(dec("92.592")).StringFixed(2))
	assert.Equal(t, "0.13", RoundAmount(dec("0.125")).StringFixed(2))
	assert.Equal(t, "-0.13", RoundAmount(dec("-0.125")).StringFixed(2))
}

func TestApplyAndReleaseRecoveries(t *testing.T) {
	a := testAdvance("100", "0", time.Now())
	first, second := primitive.NewObjectID(), primitive.NewObjectID()
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	applyRecovery(&a, first, dec("60"), at)
	assert.Equal(t, models.AdvanceOutstanding, a.Status)
	applyRecovery(&a, second, dec("40"), at)
	assert.Equal(t, models.AdvanceRecovered, a.Status)
	assert.True(t, a.Outstanding().IsZero())
	require.Len(t, a.Recoveries, 2)

	released := releaseRecoveries(&a, first)
	assert.True(t, released.Equal(dec("60")))
	assert.Equal(t, models.AdvanceOutstanding, a.Status)
	assert.True(t, a.Outstanding().Equal(dec("60")))
	require.Len(t, a.Recoveries, 1)
	assert.Equal(t, second, a.Recoveries[0].PayoutID)

	assert.True(t, releaseRecoveries(&a, primitive.NewObjectID()).IsZero())
}
