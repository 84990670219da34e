package services

import (
	"testing"

	"github.com/HSouheill/barrim_ledger/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestIssueAdvance(t *testing.T) {
	env := newTestEnv(t)
	rep := env.rep(t, "10")

	a, err := env.advances.Issue(env.ctx, models.IssueAdvanceRequest{
		SalesRepID: rep.ID.Hex(),
		Amount:     dec("250.456"),
		Note:       " relocation\x00 ",
	}, "finance:carla")
	require.NoError(t, err)
	assert.Equal(t, "250.46", a.Amount.StringFixed(2))
	assert.Equal(t, models.AdvanceOutstanding, a.Status)
	assert.Equal(t, "USD", a.Currency)
	assert.Equal(t, "relocation", a.Note)
	assert.Equal(t, "finance:carla", a.IssuedBy)
	assert.True(t, a.Outstanding().Equal(a.Amount))

	list, err := env.advances.List(env.ctx, rep.ID, false)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestIssueAdvance_Rejects(t *testing.T) {
	env := newTestEnv(t)
	rep := env.rep(t, "10")

	_, err := env.advances.Issue(env.ctx, models.IssueAdvanceRequest{SalesRepID: rep.ID.Hex(), Amount: dec("0")}, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.advances.Issue(env.ctx, models.IssueAdvanceRequest{SalesRepID: "bad", Amount: dec("5")}, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.advances.Issue(env.ctx, models.IssueAdvanceRequest{SalesRepID: primitive.NewObjectID().Hex(), Amount: dec("5")}, "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.commissions.SuspendRep(env.ctx, rep.ID, "audit")
	require.NoError(t, err)
	_, err = env.advances.Issue(env.ctx, models.IssueAdvanceRequest{SalesRepID: rep.ID.Hex(), Amount: dec("5")}, "")
	assert.ErrorIs(t, err, ErrRepNotPayable)
}

func TestCancelAdvance(t *testing.T) {
	env := newTestEnv(t)
	rep := env.rep(t, "10")
	untouched := env.advance(t, rep, "40")

	cancelled, err := env.advances.Cancel(env.ctx, untouched.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AdvanceCancelled, cancelled.Status)
	assert.True(t, cancelled.Outstanding().IsZero())

	_, err = env.advances.Cancel(env.ctx, untouched.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	outstanding, err := env.advances.List(env.ctx, rep.ID, true)
	require.NoError(t, err)
	assert.Empty(t, outstanding)

	_, err = env.advances.Cancel(env.ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelAdvance_PartiallyRecovered(t *testing.T) {
	env := newTestEnv(t)
	rep := env.rep(t, "10")
	env.payable(t, rep, "10")
	adv := env.advance(t, rep, "40")
	draft := env.draft(t, rep)
	_, err := env.payouts.Pay(env.ctx, draft.ID, "finance:test")
	require.NoError(t, err)

	_, err = env.advances.Cancel(env.ctx, adv.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.True(t, env.advanceByID(t, adv.ID).Outstanding().Equal(dec("30")))
}
