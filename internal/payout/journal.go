// internal/payout/journal.go
//
// Payout journal: the reconciliation log for the two-step pot payout.
//
// A payout is a Debit of the game's custody account followed by a Credit to
// the winner. The two ledger calls are not atomic together, so the engine
// opens a record before moving anything and marks it after each step:
//
//   pending ──debit fails──▶ failed        (funds still in custody, winner owed)
//      │
//      ├──credit fails──▶ inconsistent     (funds left custody, winner not paid)
//      │
//      └──both succeed──▶ completed
//
// failed and inconsistent records stay visible through Unresolved. A failed
// payout still has its funds in custody and is settled by retrying it
// (game.Engine.RetryPayout); an inconsistent one is reconciled by hand and
// closed with Resolve.

package payout

import (
	"context"
	"errors"
	"time"

	"github.com/robalobadob/potguess/internal/ledger"
)

// Status is the lifecycle state of a payout record.
type Status string

const (
	StatusPending      Status = "pending"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusInconsistent Status = "inconsistent"
	StatusResolved     Status = "resolved"
)

var (
	ErrNotFound      = errors.New("payout not found")
	ErrNotResolvable = errors.New("payout not resolvable")
)

// Record is one payout attempt.
type Record struct {
	ID        string         `json:"id"`
	GameID    string         `json:"gameId"`
	Account   ledger.Account `json:"account"`
	Amount    uint64         `json:"amount"`
	Status    Status         `json:"status"`
	Stage     string         `json:"stage,omitempty"` // step that failed
	Error     string         `json:"error,omitempty"`
	Note      string         `json:"note,omitempty"` // operator reconciliation note
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Journal persists payout records.
type Journal interface {
	// Open records a new pending payout.
	Open(ctx context.Context, gameID string, acct ledger.Account, amount uint64) (Record, error)

	// Mark moves a record to status, noting the failing stage and error if any.
	Mark(ctx context.Context, id string, status Status, stage, errMsg string) error

	// Get loads a record by ID.
	Get(ctx context.Context, id string) (Record, error)

	// ByGame lists a game's records, newest first.
	ByGame(ctx context.Context, gameID string, limit int) ([]Record, error)

	// Unresolved lists pending, failed and inconsistent records, oldest first.
	Unresolved(ctx context.Context, limit int) ([]Record, error)

	// Resolve closes an inconsistent record after manual reconciliation.
	Resolve(ctx context.Context, id, note string) (Record, error)
}

func resolvable(s Status) bool {
	return s == StatusInconsistent
}

func unresolved(s Status) bool {
	return s == StatusPending || s == StatusFailed || s == StatusInconsistent
}

const defaultLimit = 50

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}
