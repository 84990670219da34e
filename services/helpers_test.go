package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/HSouheill/barrim_ledger/models"
	"github.com/HSouheill/barrim_ledger/repositories"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) PayoutChanged(_ context.Context, rep *models.SalesRepresentative, p *models.CommissionPayout) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, rep.ID.Hex()+":"+p.Status)
	return nil
}

func (n *recordingNotifier) statuses() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e[25:])
	}
	return out
}

// lockCheckingNotifier tries the rep's payout lock from inside PayoutChanged.
type lockCheckingNotifier struct {
	locker *MemoryLocker
	mu     sync.Mutex
	free   []bool
}

func (n *lockCheckingNotifier) PayoutChanged(ctx context.Context, rep *models.SalesRepresentative, _ *models.CommissionPayout) error {
	release, err := n.locker.Acquire(ctx, "payout:"+rep.ID.Hex(), time.Minute)
	if err == nil {
		release()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.free = append(n.free, err == nil)
	return nil
}

type fakeTreasury struct {
	balance decimal.Decimal
	err     error
}

func (f *fakeTreasury) Balance(context.Context) (decimal.Decimal, error) {
	return f.balance, f.err
}

// gatedTreasury blocks Balance until release is closed, then reports an
// empty account.
type gatedTreasury struct {
	entered chan struct{}
	release chan struct{}
}

func newGatedTreasury() *gatedTreasury {
	return &gatedTreasury{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedTreasury) Balance(context.Context) (decimal.Decimal, error) {
	close(g.entered)
	<-g.release
	return decimal.Zero, nil
}

type testEnv struct {
	ctx         context.Context
	store       *repositories.MemoryStore
	clock       *testClock
	opts        Options
	commissions *CommissionService
	advances    *AdvanceService
	payouts     *PayoutService
	finance     *FinanceService
	notifier    *recordingNotifier
	locker      *MemoryLocker
	seq         int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	env := &testEnv{
		ctx:      context.Background(),
		store:    repositories.NewMemoryStore(),
		clock:    &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		notifier: &recordingNotifier{},
		locker:   NewMemoryLocker(),
	}
	env.opts = Options{
		Logger:     logger,
		Now:        env.clock.Now,
		Currency:   "USD",
		HoldPeriod: 14 * 24 * time.Hour,
	}
	env.commissions = NewCommissionService(env.store, env.opts)
	env.advances = NewAdvanceService(env.store, env.opts)
	env.finance = NewFinanceService(env.store, env.opts)
	env.payouts = env.newPayouts(nil)
	return env
}

func (env *testEnv) newPayouts(treasury Treasury) *PayoutService {
	return NewPayoutService(env.store, PayoutDeps{
		Locker:   env.locker,
		LockTTL:  time.Minute,
		Notifier: env.notifier,
		Treasury: treasury,
	}, env.opts)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func (env *testEnv) rep(t *testing.T, percent string) *models.SalesRepresentative {
	t.Helper()
	env.seq++
	rep, err := env.commissions.CreateRep(env.ctx, models.CreateSalesRepRequest{
		FullName:          fmt.Sprintf("Rep %d", env.seq),
		Email:             fmt.Sprintf("rep%d@barrim.test", env.seq),
		CommissionPercent: dec(percent),
	})
	require.NoError(t, err)
	return rep
}

// earned records an earning with a fixed amount that is already earned.
func (env *testEnv) earned(t *testing.T, rep *models.SalesRepresentative, amount string) *models.CommissionEarning {
	t.Helper()
	env.seq++
	e, err := env.commissions.RecordEarning(env.ctx, models.RecordEarningRequest{
		SalesRepID: rep.ID.Hex(),
		SourceType: models.SourceInvoice,
		SourceID:   fmt.Sprintf("INV-%04d", env.seq),
		Amount:     decPtr(amount),
		Earned:     true,
	})
	require.NoError(t, err)
	return e
}

// payable records an earning and releases it for payout.
func (env *testEnv) payable(t *testing.T, rep *models.SalesRepresentative, amount string) *models.CommissionEarning {
	t.Helper()
	e, err := env.commissions.MarkPayable(env.ctx, env.earned(t, rep, amount).ID)
	require.NoError(t, err)
	return e
}

func (env *testEnv) advance(t *testing.T, rep *models.SalesRepresentative, amount string) *models.CommissionAdvance {
	t.Helper()
	a, err := env.advances.Issue(env.ctx, models.IssueAdvanceRequest{SalesRepID: rep.ID.Hex(), Amount: dec(amount)}, "finance:test")
	require.NoError(t, err)
	env.clock.Advance(time.Minute)
	return a
}

func (env *testEnv) draft(t *testing.T, rep *models.SalesRepresentative, ids ...primitive.ObjectID) *models.CommissionPayout {
	t.Helper()
	p, created, err := env.payouts.CreateDraft(env.ctx, CreateDraftInput{SalesRepID: rep.ID, EarningIDs: ids, CreatedBy: "finance:test"})
	require.NoError(t, err)
	require.True(t, created)
	return p
}

func (env *testEnv) earning(t *testing.T, id primitive.ObjectID) *models.CommissionEarning {
	t.Helper()
	e, err := env.store.Earnings().FindByID(env.ctx, id)
	require.NoError(t, err)
	return e
}

func (env *testEnv) advanceByID(t *testing.T, id primitive.ObjectID) *models.CommissionAdvance {
	t.Helper()
	a, err := env.store.Advances().FindByID(env.ctx, id)
	require.NoError(t, err)
	return a
}
