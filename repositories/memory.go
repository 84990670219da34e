package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/HSouheill/barrim_ledger/models"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type txKey struct{}

// MemoryStore keeps the ledger in process memory. Transactions are
// serialized and restore a snapshot when fn fails. Calls made outside a
// transaction wait for any open one, so a rollback only undoes the
// transaction's own writes.
type MemoryStore struct {
	mu       sync.RWMutex
	txMu     sync.RWMutex
	reps     map[primitive.ObjectID]models.SalesRepresentative
	earnings map[primitive.ObjectID]models.CommissionEarning
	advances map[primitive.ObjectID]models.CommissionAdvance
	payouts  map[primitive.ObjectID]models.CommissionPayout
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reps:     make(map[primitive.ObjectID]models.SalesRepresentative),
		earnings: make(map[primitive.ObjectID]models.CommissionEarning),
		advances: make(map[primitive.ObjectID]models.CommissionAdvance),
		payouts:  make(map[primitive.ObjectID]models.CommissionPayout),
	}
}

func (s *MemoryStore) SalesReps() SalesRepRepository { return memorySalesReps{s} }
func (s *MemoryStore) Earnings() EarningRepository   { return memoryEarnings{s} }
func (s *MemoryStore) Advances() AdvanceRepository   { return memoryAdvances{s} }
func (s *MemoryStore) Payouts() PayoutRepository     { return memoryPayouts{s} }

func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.reps, s.earnings, s.advances, s.payouts = snap.reps, snap.earnings, snap.advances, snap.payouts
		s.mu.Unlock()
		return err
	}
	return nil
}

func inTx(ctx context.Context) bool {
	return ctx.Value(txKey{}) != nil
}

func (s *MemoryStore) lock(ctx context.Context) func() {
	if inTx(ctx) {
		s.mu.Lock()
		return s.mu.Unlock
	}
	s.txMu.RLock()
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.txMu.RUnlock()
	}
}

func (s *MemoryStore) rlock(ctx context.Context) func() {
	if inTx(ctx) {
		s.mu.RLock()
		return s.mu.RUnlock
	}
	s.txMu.RLock()
	s.mu.RLock()
	return func() {
		s.mu.RUnlock()
		s.txMu.RUnlock()
	}
}

func (s *MemoryStore) snapshot() *MemoryStore {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := NewMemoryStore()
	for k, v := range s.reps {
		snap.reps[k] = v
	}
	for k, v := range s.earnings {
		snap.earnings[k] = v
	}
	for k, v := range s.advances {
		snap.advances[k] = copyAdvance(v)
	}
	for k, v := range s.payouts {
		snap.payouts[k] = copyPayout(v)
	}
	return snap
}

func copyAdvance(a models.CommissionAdvance) models.CommissionAdvance {
	a.Recoveries = append([]models.AdvanceRecovery(nil), a.Recoveries...)
	return a
}

func copyPayout(p models.CommissionPayout) models.CommissionPayout {
	p.EarningIDs = append([]primitive.ObjectID(nil), p.EarningIDs...)
	return p
}

// sales reps

type memorySalesReps struct{ s *MemoryStore }

func (r memorySalesReps) Create(ctx context.Context, rep *models.SalesRepresentative) error {
	defer r.s.lock(ctx)()

	if rep.ID.IsZero() {
		rep.ID = primitive.NewObjectID()
	}
	for _, existing := range r.s.reps {
		if strings.EqualFold(existing.Email, rep.Email) {
			return ErrDuplicate
		}
	}
	r.s.reps[rep.ID] = *rep
	return nil
}

func (r memorySalesReps) FindByID(ctx context.Context, id primitive.ObjectID) (*models.SalesRepresentative, error) {
	defer r.s.rlock(ctx)()

	rep, ok := r.s.reps[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rep, nil
}

func (r memorySalesReps) List(ctx context.Context, status string) ([]models.SalesRepresentative, error) {
	defer r.s.rlock(ctx)()

	reps := make([]models.SalesRepresentative, 0, len(r.s.reps))
	for _, rep := range r.s.reps {
		if status != "" && rep.Status != status {
			continue
		}
		reps = append(reps, rep)
	}
	sort.Slice(reps, func(i, j int) bool { return reps[i].CreatedAt.Before(reps[j].CreatedAt) })
	return reps, nil
}

func (r memorySalesReps) Update(ctx context.Context, rep *models.SalesRepresentative) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.reps[rep.ID]; !ok {
		return ErrNotFound
	}
	r.s.reps[rep.ID] = *rep
	return nil
}

// earnings

type memoryEarnings struct{ s *MemoryStore }

func (r memoryEarnings) Insert(ctx context.Context, e *models.CommissionEarning) error {
	defer r.s.lock(ctx)()

	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	for _, existing := range r.s.earnings {
		if existing.SourceType == e.SourceType && existing.SourceID == e.SourceID && existing.SalesRepID == e.SalesRepID {
			return ErrDuplicate
		}
	}
	r.s.earnings[e.ID] = *e
	return nil
}

func (r memoryEarnings) FindByID(ctx context.Context, id primitive.ObjectID) (*models.CommissionEarning, error) {
	defer r.s.rlock(ctx)()

	e, ok := r.s.earnings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (f EarningFilter) matches(e *models.CommissionEarning) bool {
	if f.SalesRepID != nil && e.SalesRepID != *f.SalesRepID {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, e.Status) {
		return false
	}
	if f.SourceType != "" && e.SourceType != f.SourceType {
		return false
	}
	if f.SourceID != "" && e.SourceID != f.SourceID {
		return false
	}
	if f.PayoutID != nil && (e.PayoutID == nil || *e.PayoutID != *f.PayoutID) {
		return false
	}
	if f.UnlockedOnly && e.Locked() {
		return false
	}
	if f.EarnedBefore != nil && (e.EarnedAt == nil || e.EarnedAt.After(*f.EarnedBefore)) {
		return false
	}
	if len(f.IDs) > 0 {
		found := false
		for _, id := range f.IDs {
			if id == e.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (r memoryEarnings) Find(ctx context.Context, f EarningFilter) ([]models.CommissionEarning, error) {
	defer r.s.rlock(ctx)()

	out := []models.CommissionEarning{}
	for _, e := range r.s.earnings {
		e := e
		if f.matches(&e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && int64(len(out)) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r memoryEarnings) Transition(ctx context.Context, id primitive.ObjectID, from []string, to string, at time.Time, reason string) (*models.CommissionEarning, error) {
	defer r.s.lock(ctx)()

	e, ok := r.s.earnings[id]
	if !ok {
		return nil, ErrNotFound
	}
	if e.Locked() || !contains(from, e.Status) {
		return nil, ErrConflict
	}
	timestampFor(&e, to, at, reason)
	r.s.earnings[id] = e
	return &e, nil
}

func (r memoryEarnings) LockForPayout(ctx context.Context, repID, payoutID primitive.ObjectID, ids []primitive.ObjectID, at time.Time) (int64, error) {
	defer r.s.lock(ctx)()

	var n int64
	for _, id := range ids {
		e, ok := r.s.earnings[id]
		if !ok || e.SalesRepID != repID || e.Status != models.EarningPayable || e.Locked() {
			continue
		}
		pid := payoutID
		e.PayoutID = &pid
		e.UpdatedAt = at
		r.s.earnings[id] = e
		n++
	}
	return n, nil
}

func (r memoryEarnings) MarkPaid(ctx context.Context, payoutID primitive.ObjectID, at time.Time) (int64, error) {
	defer r.s.lock(ctx)()

	var n int64
	for id, e := range r.s.earnings {
		if e.PayoutID == nil || *e.PayoutID != payoutID || e.Status != models.EarningPayable {
			continue
		}
		timestampFor(&e, models.EarningPaid, at, "")
		r.s.earnings[id] = e
		n++
	}
	return n, nil
}

func (r memoryEarnings) ReleasePayout(ctx context.Context, payoutID primitive.ObjectID, at time.Time) (int64, error) {
	defer r.s.lock(ctx)()

	var n int64
	for id, e := range r.s.earnings {
		if e.PayoutID == nil || *e.PayoutID != payoutID {
			continue
		}
		e.PayoutID = nil
		e.PaidAt = nil
		e.Status = models.EarningPayable
		e.UpdatedAt = at
		r.s.earnings[id] = e
		n++
	}
	return n, nil
}

func (r memoryEarnings) Totals(ctx context.Context, repID *primitive.ObjectID) (models.EarningTotals, error) {
	defer r.s.rlock(ctx)()

	var t models.EarningTotals
	for _, e := range r.s.earnings {
		if repID != nil && e.SalesRepID != *repID {
			continue
		}
		addToTotals(&t, e.Status, e.Locked(), e.Amount)
	}
	return t, nil
}

func addToTotals(t *models.EarningTotals, status string, locked bool, amount decimal.Decimal) {
	switch status {
	case models.EarningPending:
		t.Pending = t.Pending.Add(amount)
	case models.EarningEarned:
		t.Earned = t.Earned.Add(amount)
	case models.EarningPayable:
		if locked {
			t.InDraft = t.InDraft.Add(amount)
		} else {
			t.Payable = t.Payable.Add(amount)
		}
	case models.EarningPaid:
		t.Paid = t.Paid.Add(amount)
	case models.EarningReversed:
		t.Reversed = t.Reversed.Add(amount)
	}
}

// advances

type memoryAdvances struct{ s *MemoryStore }

func (r memoryAdvances) Insert(ctx context.Context, a *models.CommissionAdvance) error {
	defer r.s.lock(ctx)()

	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	r.s.advances[a.ID] = copyAdvance(*a)
	return nil
}

func (r memoryAdvances) FindByID(ctx context.Context, id primitive.ObjectID) (*models.CommissionAdvance, error) {
	defer r.s.rlock(ctx)()

	a, ok := r.s.advances[id]
	if !ok {
		return nil, ErrNotFound
	}
	a = copyAdvance(a)
	return &a, nil
}

func (r memoryAdvances) collect(keep func(a *models.CommissionAdvance) bool) []models.CommissionAdvance {
	out := []models.CommissionAdvance{}
	for _, a := range r.s.advances {
		a := copyAdvance(a)
		if keep(&a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out
}

func (r memoryAdvances) FindByRep(ctx context.Context, repID primitive.ObjectID, outstandingOnly bool) ([]models.CommissionAdvance, error) {
	defer r.s.rlock(ctx)()

	return r.collect(func(a *models.CommissionAdvance) bool {
		return a.SalesRepID == repID && (!outstandingOnly || a.Status == models.AdvanceOutstanding)
	}), nil
}

func (r memoryAdvances) FindByRecoveryPayout(ctx context.Context, payoutID primitive.ObjectID) ([]models.CommissionAdvance, error) {
	defer r.s.rlock(ctx)()

	return r.collect(func(a *models.CommissionAdvance) bool {
		for _, rec := range a.Recoveries {
			if rec.PayoutID == payoutID {
				return true
			}
		}
		return false
	}), nil
}

func (r memoryAdvances) Save(ctx context.Context, a *models.CommissionAdvance) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.advances[a.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != a.Version {
		return ErrConflict
	}
	a.Version++
	r.s.advances[a.ID] = copyAdvance(*a)
	return nil
}

func (r memoryAdvances) OutstandingTotal(ctx context.Context, repID *primitive.ObjectID) (decimal.Decimal, error) {
	defer r.s.rlock(ctx)()

	total := decimal.Zero
	for _, a := range r.s.advances {
		if a.Status != models.AdvanceOutstanding || (repID != nil && a.SalesRepID != *repID) {
			continue
		}
		total = total.Add(a.Outstanding())
	}
	return total, nil
}

// payouts

type memoryPayouts struct{ s *MemoryStore }

func (r memoryPayouts) Insert(ctx context.Context, p *models.CommissionPayout) error {
	defer r.s.lock(ctx)()

	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.IdempotencyKey != "" {
		for _, existing := range r.s.payouts {
			if existing.IdempotencyKey == p.IdempotencyKey {
				return ErrDuplicate
			}
		}
	}
	r.s.payouts[p.ID] = copyPayout(*p)
	return nil
}

func (r memoryPayouts) FindByID(ctx context.Context, id primitive.ObjectID) (*models.CommissionPayout, error) {
	defer r.s.rlock(ctx)()

	p, ok := r.s.payouts[id]
	if !ok {
		return nil, ErrNotFound
	}
	p = copyPayout(p)
	return &p, nil
}

func (r memoryPayouts) FindByIdempotencyKey(ctx context.Context, key string) (*models.CommissionPayout, error) {
	defer r.s.rlock(ctx)()

	for _, p := range r.s.payouts {
		if key != "" && p.IdempotencyKey == key {
			p = copyPayout(p)
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryPayouts) Find(ctx context.Context, f PayoutFilter) ([]models.CommissionPayout, error) {
	defer r.s.rlock(ctx)()

	out := []models.CommissionPayout{}
	for _, p := range r.s.payouts {
		if f.SalesRepID != nil && p.SalesRepID != *f.SalesRepID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		out = append(out, copyPayout(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && int64(len(out)) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r memoryPayouts) Save(ctx context.Context, p *models.CommissionPayout, expectedStatus string) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.payouts[p.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Status != expectedStatus {
		return ErrConflict
	}
	r.s.payouts[p.ID] = copyPayout(*p)
	return nil
}

func (r memoryPayouts) Stats(ctx context.Context) (PayoutStats, error) {
	defer r.s.rlock(ctx)()

	stats := PayoutStats{Counts: map[string]int{}, PaidNet: decimal.Zero}
	for _, p := range r.s.payouts {
		stats.Counts[p.Status]++
		if p.Status == models.PayoutPaid {
			stats.PaidNet = stats.PaidNet.Add(p.NetAmount)
		}
	}
	return stats, nil
}
