package services

import (
	"context"

	"github.com/HSouheill/barrim_ledger/models"
	"github.com/HSouheill/barrim_ledger/repositories"
)

// FinanceService reports the ledger-wide commission position.
type FinanceService struct {
	store repositories.Store
	opts  Options
}

func NewFinanceService(store repositories.Store, opts Options) *FinanceService {
	return &FinanceService{store: store, opts: opts.withDefaults()}
}

// Summary aggregates every earning, advance and payout. NetLiability is what
// the company still owes once outstanding advances are offset.
func (s *FinanceService) Summary(ctx context.Context) (*models.FinanceSummary, error) {
	totals, err := s.store.Earnings().Totals(ctx, nil)
	if err != nil {
		return nil, err
	}
	outstanding, err := s.store.Advances().OutstandingTotal(ctx, nil)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.Payouts().Stats(ctx)
	if err != nil {
		return nil, err
	}

	liability := totals.Payable.Add(totals.InDraft).Sub(outstanding)
	return &models.FinanceSummary{
		Currency:            s.opts.Currency,
		Totals:              totals,
		AdvancesOutstanding: outstanding,
		PaidPayoutsNet:      stats.PaidNet,
		PaidPayoutCount:     stats.Counts[models.PayoutPaid],
		DraftPayoutCount:    stats.Counts[models.PayoutDraft],
		ReversedPayoutCount: stats.Counts[models.PayoutReversed],
		NetLiability:        liability,
		LastUpdated:         s.opts.Now().UTC(),
	}, nil
}
