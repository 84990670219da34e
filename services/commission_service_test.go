package services

import (
	"testing"
	"time"

	"github.com/HSouheill/barrim_ledger/models"
	"github.com/HSouheill/barrim_ledger/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreateRep(t *testing.T) {
	env := newTestEnv(t)

	rep, err := env.commissions.CreateRep(env.ctx, models.CreateSalesRepRequest{
		FullName:          "  Maya   Haddad ",
		Email:             "Maya@Barrim.Test",
		PhoneNumber:       "+961 3 123 456",
		CommissionPercent: dec("12.5"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Maya Haddad", rep.FullName)
	assert.Equal(t, "maya@barrim.test", rep.Email)
	assert.Equal(t, "+9613123456", rep.PhoneNumber)
	assert.Equal(t, models.RepActive, rep.Status)

	_, err = env.commissions.CreateRep(env.ctx, models.CreateSalesRepRequest{
		FullName: "Someone Else",
		Email:    "MAYA@barrim.test",
	})
	assert.ErrorIs(t, err, ErrDuplicateRep)
}

func TestCreateRep_Validation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.commissions.CreateRep(env.ctx, models.CreateSalesRepRequest{FullName: "A B", Email: "a@b.test", CommissionPercent: dec("101")})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.commissions.CreateRep(env.ctx, models.CreateSalesRepRequest{FullName: "A B", Email: "nope"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.commissions.CreateRep(env.ctx, models.CreateSalesRepRequest{FullName: "A B", Email: "a@b.test", SalesManagerID: "xyz"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSuspendAndReactivateRep(t *testing.T) {
	env := newTestEnv(t)
	rep := env.rep(t, "10")

	_, err := env.commissions.SuspendRep(env.ctx, rep.ID, " ")
	assert.ErrorIs(t, err, ErrValidation)

	suspended, err := env.commissions.SuspendRep(env.ctx, rep.ID, "compliance review")
	require.NoError(t, err)
	assert.Equal(t, models.RepSuspended, suspended.Status)
	assert.NotNil(t, suspended.SuspendedAt)

	_, err = env.commissions.SuspendRep(env.ctx, rep.ID, "again")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	active, err := env.commissions.ReactivateRep(env.ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RepActive, active.Status)
	assert.Nil(t, active.SuspendedAt)
	assert.Empty(t, active.SuspensionReason)

	_, err = env.commissions.ReactivateRep(env.ctx, rep.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = env.commissions.SuspendRep(env.ctx, primitive.NewObjectID(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordEarning_Amounts(t *testing.T) {
	env := newTestEnv(t)
	rep := env.rep(t, "10")

	fromRepRate, err := env.commissions.RecordEarning(env.ctx, models.RecordEarningRequest{
		SalesRepID: rep.ID.Hex(),
		SourceType: models.SourceSubscription,
		SourceID:   "SUB-1",
		BaseAmount: dec("200"),
	})
	require.NoError(t, err)
	assert.True(t, fromRepRate.Amount.Equal(dec("20")))
	assert.True(t, fromRepRate.RatePercent.Equal(dec("10")))
	assert.Equal(t, models.EarningPending, fromRepRate.Status)
	assert.Nil(t, fromRepRate.EarnedAt)
	assert.Equal(t, "USD", fromRepRate.Currency)

	explicitRate, err := env.commissions.RecordEarning(env.ctx, models.RecordEarningRequest{
		SalesRepID:  rep.ID.Hex(),
		SourceType:  models.SourceProject,
		SourceID:    "PRJ-7",
		BaseAmount:  dec("1234.56"),
		RatePercent: decPtr("7.5"),
		Currency:    "eur",
		Earned:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, "92.59", explicitRate.Amount.StringFixed(2))
	assert.Equal(t, models.EarningEarned, explicitRate.Status)
	assert.NotNil(t, explicitRate.EarnedAt)
	assert.Equal(t, "EUR", explicitRate.Currency)

	fixed, err := env.commissions.RecordEarning(env.ctx, models.RecordEarningRequest{
		SalesRepID: rep.ID.Hex(),
		SourceType: models.SourceReferral,
		SourceID:   "REF-3",
		Amount:     decPtr("15.005"),
	})
	require.NoError(t, err)
	assert.Equal(t, "15.01", fixed.Amount.StringFixed(2))
}

func TestRecordEarning_Rejects(t *testing.T) {
	env := newTestEnv(t)
	rep := env.rep(t, "10")
	base := models.RecordEarningRequest{SalesRepID: rep.ID.Hex(), SourceType: models.SourceInvoice, SourceID: "INV-1", BaseAmount: dec("100")}

	_, err := env.commissions.RecordEarning(env.ctx, base)
	require.NoError(t, err)

	_, err = env.commissions.RecordEarning(env.ctx, base)
	assert.ErrorIs(t, err, ErrDuplicateEarning)

	other := env.rep(t, "5")
	sameSourceOtherRep := base
	sameSourceOtherRep.SalesRepID = other.ID.Hex()
	_, err = env.commissions.RecordEarning(env.ctx, sameSourceOtherRep)
	assert.NoError(t, err)

	unknown := base
	unknown.SalesRepID = primitive.NewObjectID().Hex()
	_, err = env.commissions.RecordEarning(env.ctx, unknown)
	assert.ErrorIs(t, err, ErrNotFound)

	badSource := base
	badSource.SourceType = "gift"
	_, err = env.commissions.RecordEarning(env.ctx, badSource)
	assert.ErrorIs(t, err, ErrValidation)

	zero := base
	zero.SourceID = "INV-2"
	zero.BaseAmount = dec("0")
	_, err = env.commissions.RecordEarning(env.ctx, zero)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEarningLifecycle(t *testing.T) {
	env := newTestEnv(t)
	rep := env.rep(t, "10")

	e, err := env.commissions.RecordEarning(env.ctx, models.RecordEarningRequest{
		SalesRepID: rep.ID.Hex(), SourceType: models.SourceInvoice, SourceID: "INV-9", BaseAmount: dec("300"),
	})
	require.NoError(t, err)

	_, err = env.commissions.MarkPayable(env.ctx, e.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	earned, err := env.commissions.MarkEarned(env.ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EarningEarned, earned.Status)

	_, err = env.commissions.MarkEarned(env.ctx, e.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	payable, err := env.commissions.MarkPayable(env.ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EarningPayable, payable.Status)
	assert.NotNil(t, payable.PayableAt)

	_, err = env.commissions.MarkEarned(env.ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkPayable_SuspendedRep(t *testing.T) {
	env := newTestEnv(t)
	rep := env.rep(t, "10")
	e := env.earned(t, rep, "40")

	_, err := env.commissions.SuspendRep(env.ctx, rep.ID, "fraud check")
	require.NoError(t, err)

	_, err = env.commissions.MarkPayable(env.ctx, e.ID)
	assert.ErrorIs(t, err, ErrRepNotPayable)
	assert.Equal(t, models.EarningEarned, env.earning(t, e.ID).Status)
}

func TestPromoteDue(t *testing.T) {
	env := newTestEnv(t)
	active := env.rep(t, "10")
	suspended := env.rep(t, "10")

	due := env.earned(t, active, "10")
	held := env.earned(t, suspended, "20")
	env.clock.Advance(10 * 24 * time.Hour)
	recent := env.earned(t, active, "30")

	_, err := env.commissions.SuspendRep(env.ctx, suspended.ID, "on leave")
	require.NoError(t, err)

	env.clock.Advance(5 * 24 * time.Hour)
	n, err := env.commissions.PromoteDue(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, models.EarningPayable, env.earning(t, due.ID).Status)
	assert.Equal(t, models.EarningEarned, env.earning(t, held.ID).Status)
	assert.Equal(t, models.EarningEarned, env.earning(t, recent.ID).Status)

	n, err = env.commissions.PromoteDue(env.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReverseEarning(t *testing.T) {
	env := newTestEnv(t)
	rep := env.rep(t, "10")
	free := env.payable(t, rep, "25")

	_, err := env.commissions.ReverseEarning(env.ctx, free.ID, "")
	assert.ErrorIs(t, err, ErrValidation)

	reversed, err := env.commissions.ReverseEarning(env.ctx, free.ID, "invoice refunded")
	require.NoError(t, err)
	assert.Equal(t, models.EarningReversed, reversed.Status)
	assert.Equal(t, "invoice refunded", reversed.ReversalReason)
	assert.NotNil(t, reversed.ReversedAt)

	_, err = env.commissions.ReverseEarning(env.ctx, free.ID, "twice")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	locked := env.payable(t, rep, "50")
	env.draft(t, rep, locked.ID)
	_, err = env.commissions.ReverseEarning(env.ctx, locked.ID, "refund")
	assert.ErrorIs(t, err, ErrEarningLocked)
	assert.Equal(t, models.EarningPayable, env.earning(t, locked.ID).Status)
}

func TestReverseSource(t *testing.T) {
	env := newTestEnv(t)
	repA := env.rep(t, "10")
	repB := env.rep(t, "10")

	record := func(rep *models.SalesRepresentative) *models.CommissionEarning {
		e, err := env.commissions.RecordEarning(env.ctx, models.RecordEarningRequest{
			SalesRepID: rep.ID.Hex(), SourceType: models.SourceInvoice, SourceID: "INV-500", BaseAmount: dec("1000"), Earned: true,
		})
		require.NoError(t, err)
		return e
	}
	a := record(repA)
	b := record(repB)
	_, err := env.commissions.MarkPayable(env.ctx, b.ID)
	require.NoError(t, err)
	env.draft(t, repB, b.ID)

	result, err := env.commissions.ReverseSource(env.ctx, models.SourceInvoice, "INV-500", "customer refund")
	require.NoError(t, err)
	require.Len(t, result.Reversed, 1)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, a.ID, result.Reversed[0].ID)
	assert.Equal(t, b.ID, result.Skipped[0].ID)

	_, err = env.commissions.ReverseSource(env.ctx, models.SourceInvoice, "INV-404", "refund")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBalance(t *testing.T) {
	env := newTestEnv(t)
	rep := env.rep(t, "10")

	env.payable(t, rep, "100")
	env.payable(t, rep, "200")
	env.earned(t, rep, "40")
	drafted := env.payable(t, rep, "60")
	env.draft(t, rep, drafted.ID)
	env.advance(t, rep, "120")

	b, err := env.commissions.Balance(env.ctx, rep.ID)
	require.NoError(t, err)
	assert.True(t, b.Totals.Payable.Equal(dec("300")))
	assert.True(t, b.Totals.InDraft.Equal(dec("60")))
	assert.True(t, b.Totals.Earned.Equal(dec("40")))
	assert.True(t, b.AdvancesOutstanding.Equal(dec("120")))
	assert.True(t, b.GrossPayable.Equal(dec("300")))
	assert.True(t, b.NetPayable.Equal(dec("180")))
	assert.True(t, b.OnHold.IsZero())

	_, err = env.commissions.SuspendRep(env.ctx, rep.ID, "audit")
	require.NoError(t, err)
	b, err = env.commissions.Balance(env.ctx, rep.ID)
	require.NoError(t, err)
	assert.True(t, b.NetPayable.IsZero())
	assert.True(t, b.OnHold.Equal(dec("300")))

	all, err := env.commissions.Balances(env.ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestBalance_AdvancesExceedPayable(t *testing.T) {
	env := newTestEnv(t)
	rep := env.rep(t, "10")
	env.payable(t, rep, "50")
	env.advance(t, rep, "80")

	b, err := env.commissions.Balance(env.ctx, rep.ID)
	require.NoError(t, err)
	assert.True(t, b.NetPayable.IsZero())
}

func TestListEarnings_Filters(t *testing.T) {
	env := newTestEnv(t)
	rep := env.rep(t, "10")
	other := env.rep(t, "10")
	env.payable(t, rep, "10")
	env.earned(t, rep, "20")
	env.earned(t, other, "30")

	got, err := env.commissions.ListEarnings(env.ctx, repositories.EarningFilter{SalesRepID: &rep.ID})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = env.commissions.ListEarnings(env.ctx, repositories.EarningFilter{Statuses: []string{models.EarningEarned}})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = env.commissions.ListEarnings(env.ctx, repositories.EarningFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
