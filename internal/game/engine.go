// internal/game/engine.go
//
// Game engine: custody and payout of the pot.
// Responsibilities:
//   - Create games with a committed secret and an empty pot (Initialize).
//   - Collect the entry fee, compare the guess, and pay out the whole pot on
//     a match (Guess).
//
// Each Guess is one transaction against a single GameState, run under that
// record's exclusive lock, so guesses on one game are totally ordered while
// different games proceed in parallel. Every step between reading and
// writing the pot happens inside the lock. Once the fee has been collected
// the protocol no longer observes caller cancellation.
//
// Fund accounting:
//   - pot always equals fees collected since the last payout.
//   - a failed solvency check or fee transfer has no side effects.
//   - a payout is journaled before value moves; a half-completed payout
//     surfaces as *InconsistencyError and stays in the journal.

package game

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/robalobadob/potguess/internal/commit"
	"github.com/robalobadob/potguess/internal/ledger"
	"github.com/robalobadob/potguess/internal/payout"
)

// DefaultFee is the entry fee in ledger base units.
const DefaultFee uint64 = 100

// Repository stores game records. internal/store provides the in-memory one.
type Repository interface {
	Save(ctx context.Context, g *GameState) error
	Get(ctx context.Context, id string) (*GameState, error)
}

// Config holds engine-wide settings.
type Config struct {
	Fee uint64
}

// Option customizes an Engine.
type Option func(*Engine)

// WithConfig overrides the engine configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine implements Initialize and Guess.
type Engine struct {
	cfg     Config
	ledger  ledger.Ledger
	games   Repository
	journal payout.Journal
	logger  zerolog.Logger
	now     func() time.Time

	mu    sync.Mutex             // guards locks
	locks map[string]*sync.Mutex // one per known game id
}

// NewEngine wires the engine to its ledger, record store and payout journal.
func NewEngine(logger zerolog.Logger, l ledger.Ledger, games Repository, journal payout.Journal, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:     Config{Fee: DefaultFee},
		ledger:  l,
		games:   games,
		journal: journal,
		logger:  logger,
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.Fee == 0 {
		return nil, fmt.Errorf("%w: fee must be positive", ErrInvalidInput)
	}
	return e, nil
}

// Fee returns the entry fee charged per guess.
func (e *Engine) Fee() uint64 { return e.cfg.Fee }

// Initialize creates a new game with the given secret and an empty pot.
func (e *Engine) Initialize(ctx context.Context, secret uint8) (Snapshot, error) {
	nonce, err := commit.NewNonce()
	if err != nil {
		return Snapshot{}, err
	}
	g := newGameState(uuid.NewString(), secret, nonce, e.now())

	if err := e.games.Save(ctx, g); err != nil {
		return Snapshot{}, fmt.Errorf("save game: %w", err)
	}
	e.register(g.id)
	e.logger.Info().
		Str("game_id", g.id).
		Str("commitment", g.commitment).
		Msg("game initialized")
	return g.Snapshot(), nil
}

// Snapshot returns the public view of a game.
func (e *Engine) Snapshot(ctx context.Context, gameID string) (Snapshot, error) {
	unlock, err := e.lock(ctx, gameID)
	if err != nil {
		return Snapshot{}, err
	}
	defer unlock()

	g, err := e.games.Get(ctx, gameID)
	if err != nil {
		return Snapshot{}, err
	}
	return g.Snapshot(), nil
}

// Reveal opens a game's commitment (operator audit).
func (e *Engine) Reveal(ctx context.Context, gameID string) (Reveal, error) {
	unlock, err := e.lock(ctx, gameID)
	if err != nil {
		return Reveal{}, err
	}
	defer unlock()

	g, err := e.games.Get(ctx, gameID)
	if err != nil {
		return Reveal{}, err
	}
	return g.reveal(), nil
}

// Guess charges the fee, compares guess with the secret, and pays the whole
// pot to player on a match.
func (e *Engine) Guess(ctx context.Context, gameID string, player ledger.Account, guess uint8) (Result, error) {
	unlock, err := e.lock(ctx, gameID)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	g, err := e.games.Get(ctx, gameID)
	if err != nil {
		return Result{}, err
	}
	if g.owed != "" {
		return Result{}, fmt.Errorf("%w: payout %s", ErrPayoutPending, g.owed)
	}
	fee := e.cfg.Fee
	log := e.logger.With().Str("game_id", g.id).Str("player", string(player)).Logger()

	// Solvency check. Not atomic with outside balance changes; the transfer
	// below is the authority.
	bal, err := e.ledger.BalanceOf(ctx, player)
	if err != nil {
		return Result{}, fmt.Errorf("balance of %s: %w: %w", player, ErrTransferFailed, err)
	}
	if bal < fee {
		return Result{}, fmt.Errorf("%w: balance %d below fee %d", ErrInsufficientFunds, bal, fee)
	}
	if g.pot > math.MaxUint64-fee {
		return Result{}, ErrPotOverflow
	}

	if err := e.ledger.Transfer(ctx, player, g.custodian, fee); err != nil {
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			return Result{}, fmt.Errorf("collect fee: %w: %w", ErrInsufficientFunds, err)
		}
		return Result{}, fmt.Errorf("collect fee: %w: %w", ErrTransferFailed, err)
	}

	// The fee has moved: the rest of the protocol runs to completion even if
	// the caller goes away.
	ctx = context.WithoutCancel(ctx)

	g.addFee(fee)
	if err := e.games.Save(ctx, g); err != nil {
		g.removeFee(fee)
		return Result{}, e.refundFee(ctx, g, player, fee, err, log)
	}

	switch {
	case guess == g.secret:
		return e.payout(ctx, g, player, fee, log)
	case guess < g.secret:
		log.Info().Uint64("pot", g.pot).Msg("guess too low")
		return Result{Outcome: OutcomeTooLow, Fee: fee, Pot: g.pot}, nil
	default:
		log.Info().Uint64("pot", g.pot).Msg("guess too high")
		return Result{Outcome: OutcomeTooHigh, Fee: fee, Pot: g.pot}, nil
	}
}

// RetryPayout runs the custody debit and winner credit again for a payout
// whose debit failed. Until it succeeds the game accepts no guesses.
func (e *Engine) RetryPayout(ctx context.Context, payoutID string) (Result, error) {
	rec, err := e.journal.Get(ctx, payoutID)
	if err != nil {
		return Result{}, err
	}
	if rec.Status != payout.StatusFailed {
		return Result{}, fmt.Errorf("%w: payout %s is %s", payout.ErrNotResolvable, rec.ID, rec.Status)
	}

	unlock, err := e.lock(ctx, rec.GameID)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	g, err := e.games.Get(ctx, rec.GameID)
	if err != nil {
		return Result{}, err
	}
	if g.owed != rec.ID {
		return Result{}, fmt.Errorf("%w: game %s does not owe payout %s", payout.ErrNotResolvable, g.id, rec.ID)
	}
	if g.pot != rec.Amount {
		return Result{}, fmt.Errorf("%w: pot %d differs from payout amount %d", ErrPayoutInconsistency, g.pot, rec.Amount)
	}

	ctx = context.WithoutCancel(ctx)
	log := e.logger.With().
		Str("game_id", g.id).
		Str("player", string(rec.Account)).
		Str("payout_id", rec.ID).
		Uint64("amount", rec.Amount).
		Logger()
	log.Info().Msg("payout retried")
	return e.settle(ctx, g, rec, 0, log)
}

// refundFee returns a collected fee after the record could not be saved.
func (e *Engine) refundFee(ctx context.Context, g *GameState, player ledger.Account, fee uint64, cause error, log zerolog.Logger) error {
	if err := e.ledger.Transfer(ctx, g.custodian, player, fee); err != nil {
		ierr := &InconsistencyError{
			Stage:   StageFeeRefund,
			GameID:  g.id,
			Account: player,
			Amount:  fee,
			Err:     errors.Join(cause, err),
		}
		log.Error().Err(ierr).Uint64("amount", fee).Msg("fee collected but not recorded")
		return ierr
	}
	log.Warn().Err(cause).Msg("game save failed, fee refunded")
	return fmt.Errorf("save game: %w", cause)
}

// payout journals a win and drains the pot to player.
func (e *Engine) payout(ctx context.Context, g *GameState, player ledger.Account, fee uint64, log zerolog.Logger) (Result, error) {
	captured := g.pot

	rec, err := e.journal.Open(ctx, g.id, player, captured)
	if err != nil {
		ierr := &InconsistencyError{Stage: StageJournal, GameID: g.id, Account: player, Amount: captured, Err: err}
		log.Error().Err(ierr).Msg("winning guess but payout journal unavailable")
		return Result{}, ierr
	}
	log = log.With().Str("payout_id", rec.ID).Uint64("amount", captured).Logger()
	log.Info().Msg("payout started")
	return e.settle(ctx, g, rec, fee, log)
}

// settle moves rec.Amount from custody to the winner in two steps.
//
// Debit failure: funds stay in custody, the pot is restored and the game is
// frozen on the payout (status failed) until RetryPayout succeeds.
// Credit failure: funds have left custody, the pot stays 0 and the record is
// marked inconsistent for manual reconciliation.
func (e *Engine) settle(ctx context.Context, g *GameState, rec payout.Record, fee uint64, log zerolog.Logger) (Result, error) {
	captured := rec.Amount
	g.drain()

	if err := e.ledger.Debit(ctx, g.custodian, captured); err != nil {
		g.restore(captured)
		g.owe(rec.ID)
		e.mark(ctx, rec.ID, payout.StatusFailed, StageDebit, err, log)
		e.save(ctx, g, log)
		ierr := &InconsistencyError{Stage: StageDebit, GameID: g.id, PayoutID: rec.ID, Account: rec.Account, Amount: captured, Err: err}
		log.Error().Err(ierr).Msg("custody debit failed, winner owed")
		return Result{}, ierr
	}
	g.settle()

	if err := e.ledger.Credit(ctx, rec.Account, captured); err != nil {
		e.mark(ctx, rec.ID, payout.StatusInconsistent, StageCredit, err, log)
		e.save(ctx, g, log)
		ierr := &InconsistencyError{Stage: StageCredit, GameID: g.id, PayoutID: rec.ID, Account: rec.Account, Amount: captured, Err: err}
		log.Error().Err(ierr).Msg("custody debited but winner not credited")
		return Result{}, ierr
	}

	e.mark(ctx, rec.ID, payout.StatusCompleted, "", nil, log)
	e.save(ctx, g, log)
	log.Info().Msg("correct guess, pot paid out")
	return Result{Outcome: OutcomeWon, Fee: fee, Payout: captured, Pot: 0, PayoutID: rec.ID}, nil
}

// mark updates the journal; a failure leaves the record visible as unresolved.
func (e *Engine) mark(ctx context.Context, id string, status payout.Status, stage Stage, cause error, log zerolog.Logger) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := e.journal.Mark(ctx, id, status, string(stage), msg); err != nil {
		log.Error().Err(err).Str("status", string(status)).Msg("payout journal update failed")
	}
}

// save persists the record after a payout step. The ledger already reflects
// the step, so a failure is logged rather than returned.
func (e *Engine) save(ctx context.Context, g *GameState, log zerolog.Logger) {
	if err := e.games.Save(ctx, g); err != nil {
		log.Error().Err(err).Uint64("pot", g.pot).Str("owed_payout", g.owed).Msg("save game after payout")
	}
}

// lock acquires the exclusive lock of one game. Locks exist only for games
// the repository knows; unknown ids fail with ErrGameNotFound.
func (e *Engine) lock(ctx context.Context, id string) (func(), error) {
	e.mu.Lock()
	l, ok := e.locks[id]
	e.mu.Unlock()
	if !ok {
		// Games saved by an earlier process are registered on first use.
		if _, err := e.games.Get(ctx, id); err != nil {
			return nil, err
		}
		l = e.register(id)
	}
	l.Lock()
	return l.Unlock, nil
}

// register returns the lock of id, creating it if needed.
func (e *Engine) register(id string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}
