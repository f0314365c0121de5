package game

import (
	"errors"
	"fmt"

	"github.com/robalobadob/potguess/internal/ledger"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrTransferFailed      = errors.New("transfer failed")
	ErrPayoutInconsistency = errors.New("payout inconsistency")
	ErrPotOverflow         = errors.New("pot overflow")
	ErrGameNotFound        = errors.New("game not found")
	ErrPayoutPending       = errors.New("game has an unsettled payout")
)

// Stage names the step at which value was left in limbo.
type Stage string

const (
	StageJournal   Stage = "journal"    // payout record could not be opened
	StageDebit     Stage = "debit"      // custody debit failed, winner owed
	StageCredit    Stage = "credit"     // custody debited, winner not credited
	StageFeeRefund Stage = "fee_refund" // fee collected, record not saved, refund failed
)

// InconsistencyError is the fatal class: value moved (or is owed) without
// the matching record update. It is never retried or rolled back here; an
// operator reconciles it from the payout journal.
type InconsistencyError struct {
	Stage    Stage
	GameID   string
	PayoutID string
	Account  ledger.Account
	Amount   uint64
	Err      error
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("payout inconsistency at %s: game=%s payout=%s account=%s amount=%d: %v",
		e.Stage, e.GameID, e.PayoutID, e.Account, e.Amount, e.Err)
}

func (e *InconsistencyError) Unwrap() []error {
	return []error{ErrPayoutInconsistency, e.Err}
}

// ParseNumber converts a caller-supplied integer into the 0–255 domain of
// secrets and guesses.
func ParseNumber(n int) (uint8, error) {
	if n < 0 || n > 255 {
		return 0, fmt.Errorf("%w: %d outside 0-255", ErrInvalidInput, n)
	}
	return uint8(n), nil
}
