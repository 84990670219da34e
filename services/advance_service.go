package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HSouheill/barrim_ledger/models"
	"github.com/HSouheill/barrim_ledger/repositories"
	"github.com/HSouheill/barrim_ledger/utils"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AdvanceService issues pre-payments that later payouts recover.
type AdvanceService struct {
	store repositories.Store
	opts  Options
	log   *logrus.Entry
}

func NewAdvanceService(store repositories.Store, opts Options) *AdvanceService {
	opts = opts.withDefaults()
	return &AdvanceService{
		store: store,
		opts:  opts,
		log:   opts.Logger.WithField("component", "advance"),
	}
}

func (s *AdvanceService) Issue(ctx context.Context, req models.IssueAdvanceRequest, issuedBy string) (*models.CommissionAdvance, error) {
	repID, err := primitive.ObjectIDFromHex(req.SalesRepID)
	if err != nil {
		return nil, validationError("invalid salesRepId")
	}
	amount := RoundAmount(req.Amount)
	if !amount.IsPositive() {
		return nil, validationError("amount must be positive")
	}

	rep, err := s.store.SalesReps().FindByID(ctx, repID)
	if err != nil {
		return nil, notFound("sales representative", err)
	}
	if !rep.Active() {
		return nil, fmt.Errorf("sales representative is %s: %w", rep.Status, ErrRepNotPayable)
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = s.opts.Currency
	}

	advance := &models.CommissionAdvance{
		ID:         primitive.NewObjectID(),
		SalesRepID: rep.ID,
		Amount:     amount,
		Currency:   currency,
		Status:     models.AdvanceOutstanding,
		Note:       utils.SanitizeText(req.Note),
		IssuedAt:   s.opts.Now().UTC(),
		IssuedBy:   issuedBy,
	}
	if err := s.store.Advances().Insert(ctx, advance); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"advanceId":  advance.ID.Hex(),
		"salesRepId": rep.ID.Hex(),
		"amount":     amount.String(),
	}).Info("advance issued")
	return advance, nil
}

// Cancel voids an advance nothing has been recovered from yet.
func (s *AdvanceService) Cancel(ctx context.Context, id primitive.ObjectID) (*models.CommissionAdvance, error) {
	advance, err := s.store.Advances().FindByID(ctx, id)
	if err != nil {
		return nil, notFound("advance", err)
	}
	if advance.Status != models.AdvanceOutstanding || !advance.RecoveredAmount.IsZero() {
		return nil, fmt.Errorf("advance is %s with %s recovered: %w", advance.Status, advance.RecoveredAmount, ErrInvalidTransition)
	}

	advance.Status = models.AdvanceCancelled
	if err := s.store.Advances().Save(ctx, advance); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return nil, fmt.Errorf("advance changed concurrently: %w", ErrInvalidTransition)
		}
		return nil, notFound("advance", err)
	}

	s.log.WithField("advanceId", id.Hex()).Info("advance cancelled")
	return advance, nil
}

func (s *AdvanceService) List(ctx context.Context, repID primitive.ObjectID, outstandingOnly bool) ([]models.CommissionAdvance, error) {
	return s.store.Advances().FindByRep(ctx, repID, outstandingOnly)
}
