// internal/game/types.go
//
// Core type definitions for the pot-guessing game.
// Defines:
//   - Outcome: result of a single guess (won / too low / too high).
//   - GameState: the one mutable record per game (secret + pot).
//   - Snapshot / Reveal: read-only views handed to callers.

package game

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/robalobadob/potguess/internal/commit"
	"github.com/robalobadob/potguess/internal/ledger"
)

// Outcome is the evaluation of a guess against the secret.
type Outcome string

const (
	OutcomeWon     Outcome = "won"
	OutcomeTooLow  Outcome = "too_low"
	OutcomeTooHigh Outcome = "too_high"
)

// Result is returned by Engine.Guess.
type Result struct {
	Outcome  Outcome `json:"outcome"`
	Fee      uint64  `json:"fee"`                // fee collected for this guess
	Payout   uint64  `json:"payout"`             // amount paid on a win, else 0
	Pot      uint64  `json:"pot"`                // pot after the call
	PayoutID string  `json:"payoutId,omitempty"` // journal record of the win
}

// GameState is the single persisted record of a game.
//
// secret is fixed at construction. pot changes only through the engine,
// which holds the record's lock for every read and write.
type GameState struct {
	id         string
	secret     uint8
	pot        uint64
	custodian  ledger.Account
	nonce      []byte
	commitment string
	owed       string // payout id whose custody debit failed; guesses wait for it
	createdAt  time.Time
}

func newGameState(id string, secret uint8, nonce []byte, now time.Time) *GameState {
	return &GameState{
		id:         id,
		secret:     secret,
		custodian:  ledger.GameAccount(id),
		nonce:      nonce,
		commitment: commit.Commit(nonce, secret),
		createdAt:  now.UTC(),
	}
}

func (g *GameState) ID() string                { return g.id }
func (g *GameState) Pot() uint64               { return g.pot }
func (g *GameState) Custodian() ledger.Account { return g.custodian }
func (g *GameState) Commitment() string        { return g.commitment }
func (g *GameState) CreatedAt() time.Time      { return g.createdAt }
func (g *GameState) OwedPayout() string        { return g.owed }

func (g *GameState) addFee(fee uint64)    { g.pot += fee }
func (g *GameState) removeFee(fee uint64) { g.pot -= fee }
func (g *GameState) drain()               { g.pot = 0 }
func (g *GameState) restore(pot uint64)   { g.pot = pot }
func (g *GameState) owe(payoutID string)  { g.owed = payoutID }
func (g *GameState) settle()              { g.owed = "" }

// Snapshot is the public view of a game. It never carries the secret.
type Snapshot struct {
	ID         string         `json:"id"`
	Pot        uint64         `json:"pot"`
	Custodian  ledger.Account `json:"custodian"`
	Commitment string         `json:"commitment"`
	OwedPayout string         `json:"owedPayout,omitempty"` // set while a failed payout blocks guesses
	CreatedAt  time.Time      `json:"createdAt"`
}

// Snapshot copies the public fields.
func (g *GameState) Snapshot() Snapshot {
	return Snapshot{
		ID:         g.id,
		Pot:        g.pot,
		Custodian:  g.custodian,
		Commitment: g.commitment,
		OwedPayout: g.owed,
		CreatedAt:  g.createdAt,
	}
}

// Record is the storage form of a GameState, secret included. Only stores
// should handle it.
type Record struct {
	ID         string
	Secret     uint8
	Pot        uint64
	Nonce      []byte
	Commitment string
	OwedPayout string
	CreatedAt  time.Time
}

// Record returns the storage form of g.
func (g *GameState) Record() Record {
	return Record{
		ID:         g.id,
		Secret:     g.secret,
		Pot:        g.pot,
		Nonce:      append([]byte(nil), g.nonce...),
		Commitment: g.commitment,
		OwedPayout: g.owed,
		CreatedAt:  g.createdAt,
	}
}

// FromRecord rebuilds a GameState loaded from storage. The stored secret and
// nonce must still open the stored commitment.
func FromRecord(r Record) (*GameState, error) {
	if r.ID == "" {
		return nil, fmt.Errorf("%w: empty game id", ErrInvalidInput)
	}
	if !commit.Verify(r.Commitment, r.Nonce, r.Secret) {
		return nil, fmt.Errorf("%w: game %s: secret does not match commitment", ErrInvalidInput, r.ID)
	}
	return &GameState{
		id:         r.ID,
		secret:     r.Secret,
		pot:        r.Pot,
		custodian:  ledger.GameAccount(r.ID),
		nonce:      append([]byte(nil), r.Nonce...),
		commitment: r.Commitment,
		owed:       r.OwedPayout,
		createdAt:  r.CreatedAt.UTC(),
	}, nil
}

// Reveal opens the commitment for audit.
type Reveal struct {
	GameID     string `json:"gameId"`
	Secret     uint8  `json:"secret"`
	Nonce      string `json:"nonce"` // hex
	Commitment string `json:"commitment"`
}

func (g *GameState) reveal() Reveal {
	return Reveal{
		GameID:     g.id,
		Secret:     g.secret,
		Nonce:      hex.EncodeToString(g.nonce),
		Commitment: g.commitment,
	}
}
