package services

import (
	"errors"
	"fmt"

	"github.com/HSouheill/barrim_ledger/repositories"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrDuplicateRep       = errors.New("sales representative already exists")
	ErrRepNotPayable      = errors.New("sales representative is not payable")
	ErrDuplicateEarning   = errors.New("earning already recorded for this source")
	ErrEarningLocked      = errors.New("earning is attached to a payout")
	ErrEarningUnavailable = errors.New("earning is not available for payout")
	ErrNothingToPay       = errors.New("no payable earnings")
	ErrInsufficientFunds  = errors.New("treasury balance is too low")
	ErrPayoutInProgress   = errors.New("another payout operation is running for this sales representative")
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// notFound converts a repository miss into ErrNotFound naming what was looked up.
func notFound(what string, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}
