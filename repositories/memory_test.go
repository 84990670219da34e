package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HSouheill/barrim_ledger/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func payableEarning(repID primitive.ObjectID, source string, amount int64) *models.CommissionEarning {
	return &models.CommissionEarning{
		ID:         primitive.NewObjectID(),
		SalesRepID: repID,
		SourceType: models.SourceInvoice,
		SourceID:   source,
		Amount:     decimal.NewFromInt(amount),
		Currency:   "USD",
		Status:     models.EarningPayable,
		CreatedAt:  t0,
	}
}

func TestMemoryStore_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	repID := primitive.NewObjectID()
	kept := payableEarning(repID, "INV-1", 10)
	require.NoError(t, s.Earnings().Insert(ctx, kept))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context) error {
		n, err := s.Earnings().LockForPayout(ctx, repID, primitive.NewObjectID(), []primitive.ObjectID{kept.ID}, t0)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
		require.NoError(t, s.Earnings().Insert(ctx, payableEarning(repID, "INV-2", 20)))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Earnings().Find(ctx, EarningFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].Locked())
}

func TestMemoryStore_NestedTxRunsInline(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.WithTx(ctx, func(ctx context.Context) error {
		return s.WithTx(ctx, func(ctx context.Context) error {
			return s.Earnings().Insert(ctx, payableEarning(primitive.NewObjectID(), "INV-1", 5))
		})
	})
	require.NoError(t, err)

	got, err := s.Earnings().Find(ctx, EarningFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryEarnings_Duplicates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	repID := primitive.NewObjectID()

	require.NoError(t, s.Earnings().Insert(ctx, payableEarning(repID, "INV-1", 5)))
	assert.ErrorIs(t, s.Earnings().Insert(ctx, payableEarning(repID, "INV-1", 5)), ErrDuplicate)
	assert.NoError(t, s.Earnings().Insert(ctx, payableEarning(primitive.NewObjectID(), "INV-1", 5)))

	rep := &models.SalesRepresentative{Email: "rep@barrim.test"}
	require.NoError(t, s.SalesReps().Create(ctx, rep))
	assert.False(t, rep.ID.IsZero())
	assert.ErrorIs(t, s.SalesReps().Create(ctx, &models.SalesRepresentative{Email: "REP@barrim.test"}), ErrDuplicate)
}

func TestMemoryEarnings_TransitionRefusesLocked(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	repID := primitive.NewObjectID()
	e := payableEarning(repID, "INV-1", 5)
	require.NoError(t, s.Earnings().Insert(ctx, e))

	_, err := s.Earnings().Transition(ctx, e.ID, []string{models.EarningEarned}, models.EarningPayable, t0, "")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = s.Earnings().LockForPayout(ctx, repID, primitive.NewObjectID(), []primitive.ObjectID{e.ID}, t0)
	require.NoError(t, err)
	_, err = s.Earnings().Transition(ctx, e.ID, []string{models.EarningPayable}, models.EarningReversed, t0, "refund")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = s.Earnings().Transition(ctx, primitive.NewObjectID(), []string{models.EarningPayable}, models.EarningReversed, t0, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryEarnings_PayoutLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	repID := primitive.NewObjectID()
	payoutID := primitive.NewObjectID()
	a := payableEarning(repID, "INV-1", 10)
	b := payableEarning(repID, "INV-2", 20)
	foreign := payableEarning(primitive.NewObjectID(), "INV-3", 30)
	for _, e := range []*models.CommissionEarning{a, b, foreign} {
		require.NoError(t, s.Earnings().Insert(ctx, e))
	}

	n, err := s.Earnings().LockForPayout(ctx, repID, payoutID, []primitive.ObjectID{a.ID, b.ID, foreign.ID}, t0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	totals, err := s.Earnings().Totals(ctx, &repID)
	require.NoError(t, err)
	assert.True(t, totals.InDraft.Equal(decimal.NewFromInt(30)))
	assert.True(t, totals.Payable.IsZero())

	n, err = s.Earnings().MarkPaid(ctx, payoutID, t0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = s.Earnings().ReleasePayout(ctx, payoutID, t0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	got, err := s.Earnings().FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EarningPayable, got.Status)
	assert.Nil(t, got.PayoutID)
	assert.Nil(t, got.PaidAt)

	all, err := s.Earnings().Totals(ctx, nil)
	require.NoError(t, err)
	assert.True(t, all.Payable.Equal(decimal.NewFromInt(60)))
}

func TestMemoryAdvances_SaveChecksVersion(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := &models.CommissionAdvance{
		SalesRepID: primitive.NewObjectID(),
		Amount:     decimal.NewFromInt(100),
		Status:     models.AdvanceOutstanding,
		IssuedAt:   t0,
	}
	require.NoError(t, s.Advances().Insert(ctx, a))

	first, err := s.Advances().FindByID(ctx, a.ID)
	require.NoError(t, err)
	second, err := s.Advances().FindByID(ctx, a.ID)
	require.NoError(t, err)

	first.RecoveredAmount = decimal.NewFromInt(40)
	require.NoError(t, s.Advances().Save(ctx, first))
	assert.EqualValues(t, 1, first.Version)

	second.Status = models.AdvanceCancelled
	assert.ErrorIs(t, s.Advances().Save(ctx, second), ErrConflict)

	total, err := s.Advances().OutstandingTotal(ctx, nil)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(60)))
}

func TestMemoryAdvances_FindByRecoveryPayout(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	payoutID := primitive.NewObjectID()
	repID := primitive.NewObjectID()

	newer := &models.CommissionAdvance{SalesRepID: repID, Status: models.AdvanceRecovered, IssuedAt: t0.Add(time.Hour),
		Recoveries: []models.AdvanceRecovery{{PayoutID: payoutID, Amount: decimal.NewFromInt(5), At: t0}}}
	older := &models.CommissionAdvance{SalesRepID: repID, Status: models.AdvanceOutstanding, IssuedAt: t0,
		Recoveries: []models.AdvanceRecovery{{PayoutID: payoutID, Amount: decimal.NewFromInt(5), At: t0}}}
	unrelated := &models.CommissionAdvance{SalesRepID: repID, Status: models.AdvanceOutstanding, IssuedAt: t0}
	for _, a := range []*models.CommissionAdvance{newer, older, unrelated} {
		require.NoError(t, s.Advances().Insert(ctx, a))
	}

	got, err := s.Advances().FindByRecoveryPayout(ctx, payoutID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, older.ID, got[0].ID)
	assert.Equal(t, newer.ID, got[1].ID)

	outstanding, err := s.Advances().FindByRep(ctx, repID, true)
	require.NoError(t, err)
	assert.Len(t, outstanding, 2)
}

func TestMemoryPayouts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	p := &models.CommissionPayout{
		SalesRepID:     primitive.NewObjectID(),
		Status:         models.PayoutDraft,
		IdempotencyKey: "key-1",
		NetAmount:      decimal.NewFromInt(70),
		CreatedAt:      t0,
	}
	require.NoError(t, s.Payouts().Insert(ctx, p))
	assert.ErrorIs(t, s.Payouts().Insert(ctx, &models.CommissionPayout{IdempotencyKey: "key-1"}), ErrDuplicate)
	require.NoError(t, s.Payouts().Insert(ctx, &models.CommissionPayout{Status: models.PayoutDraft, CreatedAt: t0.Add(time.Minute)}))
	require.NoError(t, s.Payouts().Insert(ctx, &models.CommissionPayout{Status: models.PayoutDraft, CreatedAt: t0.Add(2 * time.Minute)}))

	byKey, err := s.Payouts().FindByIdempotencyKey(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byKey.ID)
	_, err = s.Payouts().FindByIdempotencyKey(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)

	p.Status = models.PayoutPaid
	require.NoError(t, s.Payouts().Save(ctx, p, models.PayoutDraft))
	assert.ErrorIs(t, s.Payouts().Save(ctx, p, models.PayoutDraft), ErrConflict)

	stats, err := s.Payouts().Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Counts[models.PayoutPaid])
	assert.Equal(t, 2, stats.Counts[models.PayoutDraft])
	assert.True(t, stats.PaidNet.Equal(decimal.NewFromInt(70)))

	drafts, err := s.Payouts().Find(ctx, PayoutFilter{Status: models.PayoutDraft, Limit: 1})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.True(t, drafts[0].CreatedAt.Equal(t0.Add(2*time.Minute)))
}
