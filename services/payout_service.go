package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/HSouheill/barrim_ledger/metrics"
	"github.com/HSouheill/barrim_ledger/models"
	"github.com/HSouheill/barrim_ledger/repositories"
	"github.com/HSouheill/barrim_ledger/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PayoutService batches payable earnings into payouts and moves them through
// draft, paid and reversed.
type PayoutService struct {
	store    repositories.Store
	locker   Locker
	lockTTL  time.Duration
	notifier Notifier
	treasury Treasury
	opts     Options
	log      *logrus.Entry
}

type PayoutDeps struct {
	Locker   Locker
	LockTTL  time.Duration
	Notifier Notifier
	// Treasury is optional; without it paying skips the balance check.
	Treasury Treasury
}

func NewPayoutService(store repositories.Store, deps PayoutDeps, opts Options) *PayoutService {
	opts = opts.withDefaults()
	if deps.Locker == nil {
		deps.Locker = NewMemoryLocker()
	}
	if deps.LockTTL <= 0 {
		deps.LockTTL = 30 * time.Second
	}
	return &PayoutService{
		store:    store,
		locker:   deps.Locker,
		lockTTL:  deps.LockTTL,
		notifier: deps.Notifier,
		treasury: deps.Treasury,
		opts:     opts,
		log:      opts.Logger.WithField("component", "payout"),
	}
}

func (s *PayoutService) now() time.Time {
	return s.opts.Now().UTC()
}

func (s *PayoutService) lockRep(ctx context.Context, repID primitive.ObjectID) (func(), error) {
	release, err := s.locker.Acquire(ctx, "payout:"+repID.Hex(), s.lockTTL)
	if errors.Is(err, ErrLockHeld) {
		return nil, ErrPayoutInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("acquire payout lock: %w", err)
	}
	return sync.OnceFunc(release), nil
}

// CreateDraftInput describes a new payout. Without EarningIDs every payable
// earning of the representative not yet in a payout is included.
type CreateDraftInput struct {
	SalesRepID     primitive.ObjectID
	EarningIDs     []primitive.ObjectID
	Note           string
	CreatedBy      string
	IdempotencyKey string
}

// CreateDraft locks the chosen earnings to a new draft payout. Either every
// requested earning is attached or none is. A repeated idempotency key
// returns the payout created the first time, with created false.
func (s *PayoutService) CreateDraft(ctx context.Context, in CreateDraftInput) (*models.CommissionPayout, bool, error) {
	if in.IdempotencyKey != "" {
		existing, err := s.store.Payouts().FindByIdempotencyKey(ctx, in.IdempotencyKey)
		if err == nil {
			if existing.SalesRepID != in.SalesRepID {
				return nil, false, validationError("idempotency key already used for another sales representative")
			}
			return existing, false, nil
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, false, err
		}
	}

	release, err := s.lockRep(ctx, in.SalesRepID)
	if err != nil {
		return nil, false, err
	}
	defer release()

	rep, err := s.store.SalesReps().FindByID(ctx, in.SalesRepID)
	if err != nil {
		return nil, false, notFound("sales representative", err)
	}
	if !rep.Active() {
		return nil, false, fmt.Errorf("sales representative is %s: %w", rep.Status, ErrRepNotPayable)
	}

	now := s.now()
	payout := &models.CommissionPayout{
		ID:             primitive.NewObjectID(),
		SalesRepID:     rep.ID,
		Status:         models.PayoutDraft,
		Currency:       s.opts.Currency,
		Note:           utils.SanitizeText(in.Note),
		CreatedBy:      in.CreatedBy,
		CreatedAt:      now,
		IdempotencyKey: in.IdempotencyKey,
	}

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		ids := uniqueIDs(in.EarningIDs)
		if len(ids) == 0 {
			payable, err := s.store.Earnings().Find(ctx, repositories.EarningFilter{
				SalesRepID:   &rep.ID,
				Statuses:     []string{models.EarningPayable},
				UnlockedOnly: true,
			})
			if err != nil {
				return err
			}
			for _, e := range payable {
				ids = append(ids, e.ID)
			}
		}
		if len(ids) == 0 {
			return ErrNothingToPay
		}

		locked, err := s.store.Earnings().LockForPayout(ctx, rep.ID, payout.ID, ids, now)
		if err != nil {
			return err
		}
		if locked != int64(len(ids)) {
			return fmt.Errorf("%d of %d earnings could be attached: %w", locked, len(ids), ErrEarningUnavailable)
		}

		earnings, err := s.store.Earnings().Find(ctx, repositories.EarningFilter{PayoutID: &payout.ID})
		if err != nil {
			return err
		}
		gross, currency, err := sumEarnings(earnings)
		if err != nil {
			return err
		}
		advances, err := s.store.Advances().FindByRep(ctx, rep.ID, true)
		if err != nil {
			return err
		}

		preview := NetAgainstAdvances(gross, advances)
		payout.EarningIDs = earningIDs(earnings)
		payout.Currency = currency
		payout.GrossAmount = preview.Gross
		payout.AdvanceDeduction = preview.Deduction
		payout.NetAmount = preview.Net
		return s.store.Payouts().Insert(ctx, payout)
	})
	if errors.Is(err, repositories.ErrDuplicate) && in.IdempotencyKey != "" {
		existing, findErr := s.store.Payouts().FindByIdempotencyKey(ctx, in.IdempotencyKey)
		if findErr == nil {
			return existing, false, nil
		}
	}
	if err != nil {
		return nil, false, err
	}

	metrics.PayoutTransitions.WithLabelValues(models.PayoutDraft).Inc()
	s.log.WithFields(logrus.Fields{
		"payoutId":   payout.ID.Hex(),
		"salesRepId": rep.ID.Hex(),
		"earnings":   len(payout.EarningIDs),
		"gross":      payout.GrossAmount.String(),
	}).Info("draft payout created")
	release()
	s.notify(ctx, rep, payout)
	return payout, true, nil
}

// Pay settles a draft payout. Outstanding advances are netted at this point,
// so the recorded deduction reflects the advances open when money moves.
func (s *PayoutService) Pay(ctx context.Context, id primitive.ObjectID, paidBy string) (*models.CommissionPayout, error) {
	payout, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	release, err := s.lockRep(ctx, payout.SalesRepID)
	if err != nil {
		return nil, err
	}
	defer release()

	var rep *models.SalesRepresentative
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.store.Payouts().FindByID(ctx, id)
		if err != nil {
			return notFound("payout", err)
		}
		if current.Status != models.PayoutDraft {
			return fmt.Errorf("payout is %s: %w", current.Status, ErrInvalidTransition)
		}

		rep, err = s.store.SalesReps().FindByID(ctx, current.SalesRepID)
		if err != nil {
			return notFound("sales representative", err)
		}
		if !rep.Active() {
			return fmt.Errorf("sales representative is %s: %w", rep.Status, ErrRepNotPayable)
		}

		earnings, err := s.store.Earnings().Find(ctx, repositories.EarningFilter{PayoutID: &current.ID})
		if err != nil {
			return err
		}
		gross, _, err := sumEarnings(earnings)
		if err != nil {
			return err
		}
		if len(earnings) != len(current.EarningIDs) || !gross.Equal(current.GrossAmount) {
			return fmt.Errorf("payout %s no longer matches its earnings: %w", current.ID.Hex(), ErrEarningUnavailable)
		}

		advances, err := s.store.Advances().FindByRep(ctx, rep.ID, true)
		if err != nil {
			return err
		}
		netting := NetAgainstAdvances(gross, advances)

		if s.treasury != nil && netting.Net.IsPositive() {
			available, err := s.treasury.Balance(ctx)
			if err != nil {
				return fmt.Errorf("read treasury balance: %w", err)
			}
			if available.LessThan(netting.Net) {
				return fmt.Errorf("need %s, have %s: %w", netting.Net, available, ErrInsufficientFunds)
			}
		}

		now := s.now()
		if err := s.applyRecoveries(ctx, advances, current.ID, netting, now); err != nil {
			return err
		}

		paid, err := s.store.Earnings().MarkPaid(ctx, current.ID, now)
		if err != nil {
			return err
		}
		if paid != int64(len(current.EarningIDs)) {
			return fmt.Errorf("%d of %d earnings marked paid: %w", paid, len(current.EarningIDs), ErrEarningUnavailable)
		}

		current.Status = models.PayoutPaid
		current.AdvanceDeduction = netting.Deduction
		current.NetAmount = netting.Net
		current.PaidAt = &now
		current.PaidBy = paidBy
		current.Reference = "PO-" + uuid.NewString()
		if err := s.store.Payouts().Save(ctx, current, models.PayoutDraft); err != nil {
			return err
		}
		payout = current
		return nil
	})
	if err != nil {
		return nil, conflictAsTransition(err)
	}

	metrics.PayoutTransitions.WithLabelValues(models.PayoutPaid).Inc()
	metrics.PayoutNetPaid.Add(payout.NetAmount.InexactFloat64())
	s.log.WithFields(logrus.Fields{
		"payoutId":   payout.ID.Hex(),
		"salesRepId": payout.SalesRepID.Hex(),
		"gross":      payout.GrossAmount.String(),
		"deduction":  payout.AdvanceDeduction.String(),
		"net":        payout.NetAmount.String(),
		"reference":  payout.Reference,
	}).Info("payout paid")
	release()
	s.notify(ctx, rep, payout)
	return payout, nil
}

func (s *PayoutService) applyRecoveries(ctx context.Context, advances []models.CommissionAdvance, payoutID primitive.ObjectID, netting Netting, at time.Time) error {
	byID := make(map[primitive.ObjectID]*models.CommissionAdvance, len(advances))
	for i := range advances {
		byID[advances[i].ID] = &advances[i]
	}
	for _, rec := range netting.Recoveries {
		advance, ok := byID[rec.AdvanceID]
		if !ok {
			return fmt.Errorf("advance %s: %w", rec.AdvanceID.Hex(), ErrNotFound)
		}
		applyRecovery(advance, payoutID, rec.Amount, at)
		if err := s.store.Advances().Save(ctx, advance); err != nil {
			return err
		}
	}
	return nil
}

// Reverse voids a draft or paid payout. Its earnings become payable again and
// any advance amounts it recovered are outstanding again.
func (s *PayoutService) Reverse(ctx context.Context, id primitive.ObjectID, reason, reversedBy string) (*models.CommissionPayout, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, validationError("reason is required")
	}
	payout, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	release, err := s.lockRep(ctx, payout.SalesRepID)
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.store.Payouts().FindByID(ctx, id)
		if err != nil {
			return notFound("payout", err)
		}
		previous := current.Status
		if previous != models.PayoutDraft && previous != models.PayoutPaid {
			return fmt.Errorf("payout is %s: %w", previous, ErrInvalidTransition)
		}

		now := s.now()
		if _, err := s.store.Earnings().ReleasePayout(ctx, current.ID, now); err != nil {
			return err
		}

		if previous == models.PayoutPaid {
			advances, err := s.store.Advances().FindByRecoveryPayout(ctx, current.ID)
			if err != nil {
				return err
			}
			for i := range advances {
				releaseRecoveries(&advances[i], current.ID)
				if err := s.store.Advances().Save(ctx, &advances[i]); err != nil {
					return err
				}
			}
		}

		current.Status = models.PayoutReversed
		current.ReversedAt = &now
		current.ReversedBy = reversedBy
		current.ReversalReason = utils.SanitizeText(reason)
		if err := s.store.Payouts().Save(ctx, current, previous); err != nil {
			return err
		}
		payout = current
		return nil
	})
	if err != nil {
		return nil, conflictAsTransition(err)
	}

	metrics.PayoutTransitions.WithLabelValues(models.PayoutReversed).Inc()
	s.log.WithFields(logrus.Fields{
		"payoutId":   payout.ID.Hex(),
		"salesRepId": payout.SalesRepID.Hex(),
		"reason":     reason,
	}).Warn("payout reversed")
	release()

	if rep, err := s.store.SalesReps().FindByID(ctx, payout.SalesRepID); err == nil {
		s.notify(ctx, rep, payout)
	}
	return payout, nil
}

func (s *PayoutService) Get(ctx context.Context, id primitive.ObjectID) (*models.CommissionPayout, error) {
	p, err := s.store.Payouts().FindByID(ctx, id)
	if err != nil {
		return nil, notFound("payout", err)
	}
	return p, nil
}

func (s *PayoutService) List(ctx context.Context, f repositories.PayoutFilter) ([]models.CommissionPayout, error) {
	return s.store.Payouts().Find(ctx, f)
}

// notify runs after the rep lock is released so slow targets do not hold it.
func (s *PayoutService) notify(ctx context.Context, rep *models.SalesRepresentative, payout *models.CommissionPayout) {
	if s.notifier == nil || rep == nil {
		return
	}
	if err := s.notifier.PayoutChanged(ctx, rep, payout); err != nil {
		s.log.WithError(err).WithField("payoutId", payout.ID.Hex()).Warn("payout notification failed")
	}
}

// conflictAsTransition reports optimistic write conflicts as a refused
// transition; the caller can reload and retry.
func conflictAsTransition(err error) error {
	if errors.Is(err, repositories.ErrConflict) {
		return fmt.Errorf("payout changed concurrently: %w", ErrInvalidTransition)
	}
	return err
}

func sumEarnings(earnings []models.CommissionEarning) (decimal.Decimal, string, error) {
	total := decimal.Zero
	currency := ""
	for _, e := range earnings {
		if currency == "" {
			currency = e.Currency
		} else if e.Currency != currency {
			return decimal.Zero, "", validationError("earnings mix currencies %s and %s", currency, e.Currency)
		}
		total = total.Add(e.Amount)
	}
	return total, currency, nil
}

func earningIDs(earnings []models.CommissionEarning) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(earnings))
	for _, e := range earnings {
		ids = append(ids, e.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Hex() < ids[j].Hex() })
	return ids
}

func uniqueIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
