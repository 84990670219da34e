package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HSouheill/barrim_ledger/metrics"
	"github.com/HSouheill/barrim_ledger/models"
	"github.com/HSouheill/barrim_ledger/repositories"
	"github.com/HSouheill/barrim_ledger/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var hundred = decimal.NewFromInt(100)

// Options carries what every ledger service shares.
type Options struct {
	Logger     *logrus.Logger
	Now        func() time.Time
	Currency   string
	HoldPeriod time.Duration
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Currency == "" {
		o.Currency = "USD"
	}
	return o
}

// CommissionService manages sales representatives and their earnings.
type CommissionService struct {
	store repositories.Store
	opts  Options
	log   *logrus.Entry
}

func NewCommissionService(store repositories.Store, opts Options) *CommissionService {
	opts = opts.withDefaults()
	return &CommissionService{
		store: store,
		opts:  opts,
		log:   opts.Logger.WithField("component", "commission"),
	}
}

func (s *CommissionService) now() time.Time {
	return s.opts.Now().UTC()
}

// CreateRep registers a sales representative in active status.
func (s *CommissionService) CreateRep(ctx context.Context, req models.CreateSalesRepRequest) (*models.SalesRepresentative, error) {
	if req.CommissionPercent.IsNegative() || req.CommissionPercent.GreaterThan(hundred) {
		return nil, validationError("commissionPercent must be between 0 and 100")
	}

	email, err := utils.SanitizeEmail(req.Email)
	if err != nil {
		return nil, validationError("%v", err)
	}
	phone, err := utils.SanitizePhone(req.PhoneNumber)
	if err != nil {
		return nil, validationError("%v", err)
	}
	name := utils.SanitizeText(req.FullName)
	if name == "" {
		return nil, validationError("fullName is required")
	}

	now := s.now()
	rep := &models.SalesRepresentative{
		ID:                primitive.NewObjectID(),
		FullName:          name,
		Email:             email,
		PhoneNumber:       phone,
		Region:            utils.SanitizeText(req.Region),
		CommissionPercent: req.CommissionPercent,
		Status:            models.RepActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if req.SalesManagerID != "" {
		managerID, err := primitive.ObjectIDFromHex(req.SalesManagerID)
		if err != nil {
			return nil, validationError("invalid salesManagerId")
		}
		rep.SalesManagerID = &managerID
	}

	if err := s.store.SalesReps().Create(ctx, rep); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("%s: %w", rep.Email, ErrDuplicateRep)
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"salesRepId": rep.ID.Hex(), "email": rep.Email}).Info("sales representative created")
	return rep, nil
}

func (s *CommissionService) GetRep(ctx context.Context, id primitive.ObjectID) (*models.SalesRepresentative, error) {
	rep, err := s.store.SalesReps().FindByID(ctx, id)
	if err != nil {
		return nil, notFound("sales representative", err)
	}
	return rep, nil
}

func (s *CommissionService) ListReps(ctx context.Context, status string) ([]models.SalesRepresentative, error) {
	return s.store.SalesReps().List(ctx, status)
}

// SuspendRep stops a representative's earnings from becoming or being paid out.
func (s *CommissionService) SuspendRep(ctx context.Context, id primitive.ObjectID, reason string) (*models.SalesRepresentative, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, validationError("reason is required")
	}
	rep, err := s.GetRep(ctx, id)
	if err != nil {
		return nil, err
	}
	if rep.Status != models.RepActive {
		return nil, fmt.Errorf("sales representative is %s: %w", rep.Status, ErrInvalidTransition)
	}

	now := s.now()
	rep.Status = models.RepSuspended
	rep.SuspendedAt = &now
	rep.SuspensionReason = utils.SanitizeText(reason)
	rep.UpdatedAt = now
	if err := s.store.SalesReps().Update(ctx, rep); err != nil {
		return nil, notFound("sales representative", err)
	}

	s.log.WithFields(logrus.Fields{"salesRepId": id.Hex(), "reason": reason}).Warn("sales representative suspended")
	return rep, nil
}

func (s *CommissionService) ReactivateRep(ctx context.Context, id primitive.ObjectID) (*models.SalesRepresentative, error) {
	rep, err := s.GetRep(ctx, id)
	if err != nil {
		return nil, err
	}
	if rep.Status != models.RepSuspended {
		return nil, fmt.Errorf("sales representative is %s: %w", rep.Status, ErrInvalidTransition)
	}

	rep.Status = models.RepActive
	rep.SuspendedAt = nil
	rep.SuspensionReason = ""
	rep.UpdatedAt = s.now()
	if err := s.store.SalesReps().Update(ctx, rep); err != nil {
		return nil, notFound("sales representative", err)
	}

	s.log.WithField("salesRepId", id.Hex()).Info("sales representative reactivated")
	return rep, nil
}

// RecordEarning books the commission owed for one source. The amount is
// either given or computed as base × rate / 100, rate defaulting to the
// representative's commission percent.
func (s *CommissionService) RecordEarning(ctx context.Context, req models.RecordEarningRequest) (*models.CommissionEarning, error) {
	repID, err := primitive.ObjectIDFromHex(req.SalesRepID)
	if err != nil {
		return nil, validationError("invalid salesRepId")
	}
	if !isSourceType(req.SourceType) {
		return nil, validationError("unknown sourceType %q", req.SourceType)
	}
	if strings.TrimSpace(req.SourceID) == "" {
		return nil, validationError("sourceId is required")
	}
	if req.BaseAmount.IsNegative() {
		return nil, validationError("baseAmount must not be negative")
	}

	rep, err := s.GetRep(ctx, repID)
	if err != nil {
		return nil, err
	}

	rate := rep.CommissionPercent
	if req.RatePercent != nil {
		rate = *req.RatePercent
	}
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return nil, validationError("ratePercent must be between 0 and 100")
	}

	var amount decimal.Decimal
	if req.Amount != nil {
		amount = RoundAmount(*req.Amount)
	} else {
		amount = RoundAmount(req.BaseAmount.Mul(rate).Div(hundred))
	}
	if !amount.IsPositive() {
		return nil, validationError("commission amount must be positive")
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = s.opts.Currency
	}

	now := s.now()
	earning := &models.CommissionEarning{
		ID:          primitive.NewObjectID(),
		SalesRepID:  rep.ID,
		SourceType:  req.SourceType,
		SourceID:    req.SourceID,
		Description: utils.SanitizeText(req.Description),
		BaseAmount:  req.BaseAmount,
		RatePercent: rate,
		Amount:      amount,
		Currency:    currency,
		Status:      models.EarningPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Earned {
		earning.Status = models.EarningEarned
		earning.EarnedAt = &now
	}

	if err := s.store.Earnings().Insert(ctx, earning); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("%s %s: %w", req.SourceType, req.SourceID, ErrDuplicateEarning)
		}
		return nil, err
	}

	metrics.EarningsRecorded.WithLabelValues(earning.SourceType).Inc()
	s.log.WithFields(logrus.Fields{
		"earningId":  earning.ID.Hex(),
		"salesRepId": rep.ID.Hex(),
		"source":     earning.SourceType + ":" + earning.SourceID,
		"amount":     earning.Amount.String(),
		"status":     earning.Status,
	}).Info("commission earning recorded")
	return earning, nil
}

func isSourceType(t string) bool {
	for _, st := range models.SourceTypes {
		if st == t {
			return true
		}
	}
	return false
}

func (s *CommissionService) GetEarning(ctx context.Context, id primitive.ObjectID) (*models.CommissionEarning, error) {
	e, err := s.store.Earnings().FindByID(ctx, id)
	if err != nil {
		return nil, notFound("earning", err)
	}
	return e, nil
}

func (s *CommissionService) ListEarnings(ctx context.Context, f repositories.EarningFilter) ([]models.CommissionEarning, error) {
	return s.store.Earnings().Find(ctx, f)
}

// transition runs an unlocked status change and explains a refusal.
func (s *CommissionService) transition(ctx context.Context, id primitive.ObjectID, from []string, to, reason string) (*models.CommissionEarning, error) {
	e, err := s.store.Earnings().Transition(ctx, id, from, to, s.now(), reason)
	switch {
	case err == nil:
		metrics.EarningTransitions.WithLabelValues(to).Inc()
		return e, nil
	case errors.Is(err, repositories.ErrNotFound):
		return nil, fmt.Errorf("earning: %w", ErrNotFound)
	case errors.Is(err, repositories.ErrConflict):
		current, findErr := s.store.Earnings().FindByID(ctx, id)
		if findErr != nil {
			return nil, notFound("earning", findErr)
		}
		if current.Locked() {
			return nil, fmt.Errorf("earning in payout %s: %w", current.PayoutID.Hex(), ErrEarningLocked)
		}
		return nil, fmt.Errorf("earning is %s, cannot become %s: %w", current.Status, to, ErrInvalidTransition)
	}
	return nil, err
}

// MarkEarned confirms a pending earning, e.g. once its invoice is settled.
func (s *CommissionService) MarkEarned(ctx context.Context, id primitive.ObjectID) (*models.CommissionEarning, error) {
	return s.transition(ctx, id, []string{models.EarningPending}, models.EarningEarned, "")
}

// MarkPayable releases an earned earning for payout ahead of the hold period.
func (s *CommissionService) MarkPayable(ctx context.Context, id primitive.ObjectID) (*models.CommissionEarning, error) {
	e, err := s.GetEarning(ctx, id)
	if err != nil {
		return nil, err
	}
	rep, err := s.GetRep(ctx, e.SalesRepID)
	if err != nil {
		return nil, err
	}
	if !rep.Active() {
		return nil, fmt.Errorf("sales representative is %s: %w", rep.Status, ErrRepNotPayable)
	}
	return s.transition(ctx, id, []string{models.EarningEarned}, models.EarningPayable, "")
}

// PromoteDue makes payable every earned earning whose hold period has passed,
// skipping representatives that are not active.
func (s *CommissionService) PromoteDue(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.opts.HoldPeriod)
	due, err := s.store.Earnings().Find(ctx, repositories.EarningFilter{
		Statuses:     []string{models.EarningEarned},
		EarnedBefore: &cutoff,
		UnlockedOnly: true,
	})
	if err != nil {
		return 0, err
	}

	active := map[primitive.ObjectID]bool{}
	promoted := 0
	for _, e := range due {
		ok, seen := active[e.SalesRepID]
		if !seen {
			rep, err := s.store.SalesReps().FindByID(ctx, e.SalesRepID)
			if err != nil && !errors.Is(err, repositories.ErrNotFound) {
				return promoted, err
			}
			ok = err == nil && rep.Active()
			active[e.SalesRepID] = ok
		}
		if !ok {
			continue
		}

		_, err := s.store.Earnings().Transition(ctx, e.ID, []string{models.EarningEarned}, models.EarningPayable, s.now(), "")
		if errors.Is(err, repositories.ErrConflict) || errors.Is(err, repositories.ErrNotFound) {
			continue
		}
		if err != nil {
			return promoted, err
		}
		metrics.EarningTransitions.WithLabelValues(models.EarningPayable).Inc()
		promoted++
	}

	if promoted > 0 {
		s.log.WithFields(logrus.Fields{"promoted": promoted, "cutoff": cutoff}).Info("earnings promoted to payable")
	}
	return promoted, nil
}

// ReverseEarning cancels an earning that is not attached to a payout.
func (s *CommissionService) ReverseEarning(ctx context.Context, id primitive.ObjectID, reason string) (*models.CommissionEarning, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, validationError("reason is required")
	}
	e, err := s.transition(ctx, id,
		[]string{models.EarningPending, models.EarningEarned, models.EarningPayable},
		models.EarningReversed, reason)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"earningId": id.Hex(), "reason": reason}).Info("commission earning reversed")
	return e, nil
}

// SourceReversal reports what reversing a source did.
type SourceReversal struct {
	Reversed []models.CommissionEarning `json:"reversed"`
	Skipped  []models.CommissionEarning `json:"skipped"`
}

// ReverseSource reverses every earning booked for a refunded or cancelled
// source. Earnings held by a payout, or already paid, are reported as skipped.
func (s *CommissionService) ReverseSource(ctx context.Context, sourceType, sourceID, reason string) (*SourceReversal, error) {
	if !isSourceType(sourceType) {
		return nil, validationError("unknown sourceType %q", sourceType)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, validationError("reason is required")
	}

	earnings, err := s.store.Earnings().Find(ctx, repositories.EarningFilter{SourceType: sourceType, SourceID: sourceID})
	if err != nil {
		return nil, err
	}
	if len(earnings) == 0 {
		return nil, fmt.Errorf("earnings for %s %s: %w", sourceType, sourceID, ErrNotFound)
	}

	result := &SourceReversal{Reversed: []models.CommissionEarning{}, Skipped: []models.CommissionEarning{}}
	for _, e := range earnings {
		if e.Status == models.EarningReversed {
			continue
		}
		reversed, err := s.ReverseEarning(ctx, e.ID, reason)
		if errors.Is(err, ErrEarningLocked) || errors.Is(err, ErrInvalidTransition) {
			result.Skipped = append(result.Skipped, e)
			continue
		}
		if err != nil {
			return nil, err
		}
		result.Reversed = append(result.Reversed, *reversed)
	}
	return result, nil
}

// Balance reconciles one representative: gross payable is the payable amount
// not yet in a payout, net payable deducts outstanding advances from it. A
// suspended representative has nothing payable; the gross is reported on hold.
func (s *CommissionService) Balance(ctx context.Context, repID primitive.ObjectID) (*models.RepBalance, error) {
	rep, err := s.GetRep(ctx, repID)
	if err != nil {
		return nil, err
	}
	return s.balanceFor(ctx, rep)
}

func (s *CommissionService) balanceFor(ctx context.Context, rep *models.SalesRepresentative) (*models.RepBalance, error) {
	totals, err := s.store.Earnings().Totals(ctx, &rep.ID)
	if err != nil {
		return nil, err
	}
	outstanding, err := s.store.Advances().OutstandingTotal(ctx, &rep.ID)
	if err != nil {
		return nil, err
	}

	balance := &models.RepBalance{
		SalesRepID:          rep.ID,
		FullName:            rep.FullName,
		Status:              rep.Status,
		Currency:            s.opts.Currency,
		Totals:              totals,
		AdvancesOutstanding: outstanding,
		GrossPayable:        totals.Payable,
		NetPayable:          decimal.Zero,
		OnHold:              decimal.Zero,
	}
	if rep.Active() {
		balance.NetPayable = decimal.Max(decimal.Zero, totals.Payable.Sub(outstanding))
	} else {
		balance.OnHold = totals.Payable
	}
	return balance, nil
}

// Balances returns the balance of every representative.
func (s *CommissionService) Balances(ctx context.Context) ([]models.RepBalance, error) {
	reps, err := s.store.SalesReps().List(ctx, "")
	if err != nil {
		return nil, err
	}
	balances := make([]models.RepBalance, 0, len(reps))
	for i := range reps {
		b, err := s.balanceFor(ctx, &reps[i])
		if err != nil {
			return nil, err
		}
		balances = append(balances, *b)
	}
	return balances, nil
}
