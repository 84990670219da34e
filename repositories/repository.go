package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/HSouheill/barrim_ledger/models"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrConflict  = errors.New("document was modified concurrently")
	ErrDuplicate = errors.New("duplicate document")
)

// TxRunner runs fn inside a storage transaction. Repository calls made with
// the ctx handed to fn take part in the transaction; any error rolls it back.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store bundles the ledger repositories behind one transaction boundary.
type Store interface {
	TxRunner
	SalesReps() SalesRepRepository
	Earnings() EarningRepository
	Advances() AdvanceRepository
	Payouts() PayoutRepository
}

type SalesRepRepository interface {
	Create(ctx context.Context, rep *models.SalesRepresentative) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.SalesRepresentative, error)
	List(ctx context.Context, status string) ([]models.SalesRepresentative, error)
	Update(ctx context.Context, rep *models.SalesRepresentative) error
}

// EarningFilter selects earnings. Zero fields are ignored.
type EarningFilter struct {
	SalesRepID   *primitive.ObjectID
	Statuses     []string
	SourceType   string
	SourceID     string
	PayoutID     *primitive.ObjectID
	IDs          []primitive.ObjectID
	UnlockedOnly bool
	EarnedBefore *time.Time
	Limit        int64
}

type EarningRepository interface {
	Insert(ctx context.Context, e *models.CommissionEarning) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.CommissionEarning, error)
	Find(ctx context.Context, f EarningFilter) ([]models.CommissionEarning, error)

	// Transition moves an unlocked earning whose status is one of from to
	// status to, stamping the matching timestamp with at. It returns
	// ErrConflict when the earning is locked or not in an accepted status.
	Transition(ctx context.Context, id primitive.ObjectID, from []string, to string, at time.Time, reason string) (*models.CommissionEarning, error)

	// LockForPayout attaches the given payable, unlocked earnings of rep to
	// payoutID and returns how many were attached.
	LockForPayout(ctx context.Context, repID, payoutID primitive.ObjectID, ids []primitive.ObjectID, at time.Time) (int64, error)
	MarkPaid(ctx context.Context, payoutID primitive.ObjectID, at time.Time) (int64, error)
	// ReleasePayout detaches every earning of payoutID and makes it payable again.
	ReleasePayout(ctx context.Context, payoutID primitive.ObjectID, at time.Time) (int64, error)

	Totals(ctx context.Context, repID *primitive.ObjectID) (models.EarningTotals, error)
}

type AdvanceRepository interface {
	Insert(ctx context.Context, a *models.CommissionAdvance) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.CommissionAdvance, error)
	FindByRep(ctx context.Context, repID primitive.ObjectID, outstandingOnly bool) ([]models.CommissionAdvance, error)
	FindByRecoveryPayout(ctx context.Context, payoutID primitive.ObjectID) ([]models.CommissionAdvance, error)
	// Save replaces the advance if its stored version still equals a.Version
	// and bumps the version.
	Save(ctx context.Context, a *models.CommissionAdvance) error
	OutstandingTotal(ctx context.Context, repID *primitive.ObjectID) (decimal.Decimal, error)
}

type PayoutFilter struct {
	SalesRepID *primitive.ObjectID
	Status     string
	Limit      int64
}

type PayoutStats struct {
	Counts  map[string]int
	PaidNet decimal.Decimal
}

type PayoutRepository interface {
	Insert(ctx context.Context, p *models.CommissionPayout) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.CommissionPayout, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.CommissionPayout, error)
	Find(ctx context.Context, f PayoutFilter) ([]models.CommissionPayout, error)
	// Save replaces the payout if its stored status still equals expectedStatus.
	Save(ctx context.Context, p *models.CommissionPayout, expectedStatus string) error
	Stats(ctx context.Context) (PayoutStats, error)
}

// timestampFor applies the lifecycle timestamp that goes with status.
func timestampFor(e *models.CommissionEarning, status string, at time.Time, reason string) {
	t := at
	switch status {
	case models.EarningEarned:
		e.EarnedAt = &t
	case models.EarningPayable:
		e.PayableAt = &t
	case models.EarningPaid:
		e.PaidAt = &t
	case models.EarningReversed:
		e.ReversedAt = &t
		e.ReversalReason = reason
	}
	e.Status = status
	e.UpdatedAt = at
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
