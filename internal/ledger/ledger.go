// internal/ledger/ledger.go
//
// Value ledger consumed by the game engine.
// The ledger is the system of record for balances: the engine only asks it to
// move value (player → custody on a fee, custody → player on a payout).
//
// Contract:
//   - Every call is atomic on its own: the amount moves or it does not.
//   - Nothing is atomic across two calls; Debit followed by Credit can fail
//     half way and callers must journal that (see internal/payout).
//   - Balances never go negative.
//
// Accounts are plain string identifiers. Helpers build the two kinds the
// server uses: "user:<id>" for players and "game:<id>" for pot custody.

package ledger

import (
	"context"
	"errors"
)

// Account identifies a balance in the ledger.
type Account string

// UserAccount returns the account holding a player's funds.
func UserAccount(userID string) Account { return Account("user:" + userID) }

// GameAccount returns the custody account holding a game's pot.
func GameAccount(gameID string) Account { return Account("game:" + gameID) }

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAmountTooLarge      = errors.New("amount too large")
	ErrSameAccount         = errors.New("transfer to same account")
)

// Ledger moves value between accounts.
// Unknown accounts report a zero balance; crediting creates them.
type Ledger interface {
	// BalanceOf returns the current balance of acct.
	BalanceOf(ctx context.Context, acct Account) (uint64, error)

	// Transfer moves amount from one account to another in a single step.
	Transfer(ctx context.Context, from, to Account, amount uint64) error

	// Debit removes amount from a custodial account.
	Debit(ctx context.Context, acct Account, amount uint64) error

	// Credit adds amount to an account.
	Credit(ctx context.Context, acct Account, amount uint64) error
}

// Minter funds accounts from outside the ledger (operator deposits).
type Minter interface {
	Mint(ctx context.Context, acct Account, amount uint64) error
}
