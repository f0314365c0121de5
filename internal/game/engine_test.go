package game_test

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/potguess/internal/commit"
	"github.com/robalobadob/potguess/internal/game"
	"github.com/robalobadob/potguess/internal/ledger"
	"github.com/robalobadob/potguess/internal/payout"
	"github.com/robalobadob/potguess/internal/store"
)

var errLedgerDown = errors.New("ledger down")

// faultyLedger wraps the memory ledger and fails selected calls.
type faultyLedger struct {
	*ledger.Memory
	failBalance  bool
	failTransfer bool
	failDebit    bool
	failCredit   bool
}

func (f *faultyLedger) BalanceOf(ctx context.Context, acct ledger.Account) (uint64, error) {
	if f.failBalance {
		return 0, errLedgerDown
	}
	return f.Memory.BalanceOf(ctx, acct)
}

func (f *faultyLedger) Transfer(ctx context.Context, from, to ledger.Account, amount uint64) error {
	if f.failTransfer {
		return errLedgerDown
	}
	return f.Memory.Transfer(ctx, from, to, amount)
}

func (f *faultyLedger) Debit(ctx context.Context, acct ledger.Account, amount uint64) error {
	if f.failDebit {
		return errLedgerDown
	}
	return f.Memory.Debit(ctx, acct, amount)
}

func (f *faultyLedger) Credit(ctx context.Context, acct ledger.Account, amount uint64) error {
	if f.failCredit {
		return errLedgerDown
	}
	return f.Memory.Credit(ctx, acct, amount)
}

// failingJournal refuses to open records.
type failingJournal struct{ payout.Journal }

func (failingJournal) Open(ctx context.Context, gameID string, acct ledger.Account, amount uint64) (payout.Record, error) {
	return payout.Record{}, errors.New("journal full")
}

// flakyRepo fails Save once armed.
type flakyRepo struct {
	store.Store
	failSave bool
}

func (r *flakyRepo) Save(ctx context.Context, g *game.GameState) error {
	if r.failSave {
		return errors.New("disk full")
	}
	return r.Store.Save(ctx, g)
}

type fixture struct {
	engine  *game.Engine
	ledger  *faultyLedger
	journal payout.Journal
	repo    *flakyRepo
}

func newFixture(t *testing.T, fee uint64) *fixture {
	t.Helper()
	f := &fixture{
		ledger:  &faultyLedger{Memory: ledger.NewMemory()},
		journal: payout.NewMemoryJournal(),
		repo:    &flakyRepo{Store: store.NewMemoryStore()},
	}
	eng, err := game.NewEngine(zerolog.New(io.Discard), f.ledger, f.repo, f.journal,
		game.WithConfig(game.Config{Fee: fee}))
	require.NoError(t, err)
	f.engine = eng
	return f
}

func (f *fixture) fund(t *testing.T, acct ledger.Account, amount uint64) {
	t.Helper()
	require.NoError(t, f.ledger.Mint(context.Background(), acct, amount))
}

func (f *fixture) balance(t *testing.T, acct ledger.Account) uint64 {
	t.Helper()
	b, err := f.ledger.Memory.BalanceOf(context.Background(), acct)
	require.NoError(t, err)
	return b
}

func (f *fixture) pot(t *testing.T, id string) uint64 {
	t.Helper()
	s, err := f.engine.Snapshot(context.Background(), id)
	require.NoError(t, err)
	return s.Pot
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100)

	s, err := f.engine.Initialize(ctx, 7)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Zero(t, s.Pot)
	assert.Equal(t, ledger.GameAccount(s.ID), s.Custodian)
	assert.Len(t, s.Commitment, 64)

	other, err := f.engine.Initialize(ctx, 7)
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, other.ID, "each call creates its own record")
	assert.NotEqual(t, s.Commitment, other.Commitment, "nonce differs per game")

	rev, err := f.engine.Reveal(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, uint8(7), rev.Secret)
	nonce, err := hex.DecodeString(rev.Nonce)
	require.NoError(t, err)
	assert.True(t, commit.Verify(s.Commitment, nonce, rev.Secret))
}

func TestNewEngineRejectsZeroFee(t *testing.T) {
	_, err := game.NewEngine(zerolog.New(io.Discard), ledger.NewMemory(), store.NewMemoryStore(),
		payout.NewMemoryJournal(), game.WithConfig(game.Config{Fee: 0}))
	assert.ErrorIs(t, err, game.ErrInvalidInput)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in      int
		want    uint8
		wantErr bool
	}{
		{0, 0, false},
		{128, 128, false},
		{255, 255, false},
		{-1, 0, true},
		{256, 0, true},
	}
	for _, tt := range tests {
		got, err := game.ParseNumber(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, game.ErrInvalidInput, "input %d", tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestGuessUnknownGame(t *testing.T) {
	f := newFixture(t, 100)
	p := ledger.UserAccount("p")
	f.fund(t, p, 1000)

	_, err := f.engine.Guess(context.Background(), "nope", p, 1)
	assert.ErrorIs(t, err, game.ErrGameNotFound)
	assert.Equal(t, uint64(1000), f.balance(t, p))
}

func TestScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100)
	p := ledger.UserAccount("p")
	f.fund(t, p, 1000)

	s, err := f.engine.Initialize(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, s.Pot)

	res, err := f.engine.Guess(ctx, s.ID, p, 5)
	require.NoError(t, err)
	assert.Equal(t, game.OutcomeTooLow, res.Outcome)
	assert.Equal(t, uint64(100), res.Pot)
	assert.Equal(t, uint64(100), f.pot(t, s.ID))
	assert.Equal(t, uint64(900), f.balance(t, p))

	res, err = f.engine.Guess(ctx, s.ID, p, 7)
	require.NoError(t, err)
	assert.Equal(t, game.OutcomeWon, res.Outcome)
	assert.Equal(t, uint64(200), res.Payout)
	assert.Zero(t, res.Pot)
	assert.Zero(t, f.pot(t, s.ID))
	assert.Equal(t, uint64(1000), f.balance(t, p))
	assert.Zero(t, f.balance(t, s.Custodian))

	rec, err := f.journal.Get(ctx, res.PayoutID)
	require.NoError(t, err)
	assert.Equal(t, payout.StatusCompleted, rec.Status)
	assert.Equal(t, uint64(200), rec.Amount)

	res, err = f.engine.Guess(ctx, s.ID, p, 5)
	require.NoError(t, err)
	assert.Equal(t, game.OutcomeTooLow, res.Outcome)
	assert.Equal(t, uint64(100), res.Pot, "game restarts from an empty pot")
}

func TestDirectionalHints(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100)
	p := ledger.UserAccount("p")
	f.fund(t, p, 10_000)

	s, err := f.engine.Initialize(ctx, 128)
	require.NoError(t, err)

	tests := []struct {
		guess uint8
		want  game.Outcome
	}{
		{50, game.OutcomeTooLow},
		{200, game.OutcomeTooHigh},
		{0, game.OutcomeTooLow},
		{255, game.OutcomeTooHigh},
		{127, game.OutcomeTooLow},
		{129, game.OutcomeTooHigh},
		{128, game.OutcomeWon},
	}
	for _, tt := range tests {
		res, err := f.engine.Guess(ctx, s.ID, p, tt.guess)
		require.NoError(t, err)
		assert.Equal(t, tt.want, res.Outcome, "guess %d", tt.guess)
	}
}

func TestInsufficientFundsHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	for _, fee := range []uint64{1, 100, 5000} {
		f := newFixture(t, fee)
		p := ledger.UserAccount("poor")
		f.fund(t, p, fee-1)

		s, err := f.engine.Initialize(ctx, 9)
		require.NoError(t, err)

		_, err = f.engine.Guess(ctx, s.ID, p, 9)
		assert.ErrorIs(t, err, game.ErrInsufficientFunds)
		assert.Equal(t, fee-1, f.balance(t, p))
		assert.Zero(t, f.balance(t, s.Custodian))
		assert.Zero(t, f.pot(t, s.ID))
	}
}

func TestPotConservation(t *testing.T) {
	ctx := context.Background()
	for _, fee := range []uint64{1, 100, 250} {
		f := newFixture(t, fee)
		players := []ledger.Account{ledger.UserAccount("a"), ledger.UserAccount("b"), ledger.UserAccount("c")}
		for _, p := range players {
			f.fund(t, p, 100*fee)
		}
		s, err := f.engine.Initialize(ctx, 200)
		require.NoError(t, err)

		before := f.ledger.Total()
		const n = 30
		for i := 0; i < n; i++ {
			res, err := f.engine.Guess(ctx, s.ID, players[i%len(players)], uint8(i))
			require.NoError(t, err)
			assert.NotEqual(t, game.OutcomeWon, res.Outcome)
		}
		assert.Equal(t, n*fee, f.pot(t, s.ID))
		assert.Equal(t, n*fee, f.balance(t, s.Custodian))
		assert.Equal(t, before, f.ledger.Total(), "value only moves")
	}
}

func TestWinDrainsExactlyCapturedPot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100)
	loser, winner := ledger.UserAccount("loser"), ledger.UserAccount("winner")
	f.fund(t, loser, 1000)
	f.fund(t, winner, 1000)

	s, err := f.engine.Initialize(ctx, 42)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := f.engine.Guess(ctx, s.ID, loser, 1)
		require.NoError(t, err)
	}

	res, err := f.engine.Guess(ctx, s.ID, winner, 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), res.Payout, "three losing fees plus the winner's own")
	assert.Equal(t, uint64(1000-100+400), f.balance(t, winner))
	assert.Zero(t, f.pot(t, s.ID))
	assert.Zero(t, f.balance(t, s.Custodian))
}

func TestNoDoublePayout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100)
	a, b := ledger.UserAccount("a"), ledger.UserAccount("b")
	f.fund(t, a, 1000)
	f.fund(t, b, 1000)

	s, err := f.engine.Initialize(ctx, 3)
	require.NoError(t, err)

	_, err = f.engine.Guess(ctx, s.ID, a, 1)
	require.NoError(t, err)
	first, err := f.engine.Guess(ctx, s.ID, a, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), first.Payout)

	_, err = f.engine.Guess(ctx, s.ID, b, 9)
	require.NoError(t, err)
	second, err := f.engine.Guess(ctx, s.ID, b, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), second.Payout, "only fees collected after the first win")

	recs, err := f.journal.ByGame(ctx, s.ID, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, second.PayoutID, recs[0].ID)
}

func TestTransferFailureHasNoSideEffects(t *testing.T) {
	ctx := context.Background()

	t.Run("fee transfer rejected", func(t *testing.T) {
		f := newFixture(t, 100)
		p := ledger.UserAccount("p")
		f.fund(t, p, 1000)
		s, err := f.engine.Initialize(ctx, 1)
		require.NoError(t, err)

		f.ledger.failTransfer = true
		_, err = f.engine.Guess(ctx, s.ID, p, 1)
		assert.ErrorIs(t, err, game.ErrTransferFailed)
		assert.Equal(t, uint64(1000), f.balance(t, p))
		assert.Zero(t, f.pot(t, s.ID))
	})

	t.Run("balance lookup fails", func(t *testing.T) {
		f := newFixture(t, 100)
		p := ledger.UserAccount("p")
		f.fund(t, p, 1000)
		s, err := f.engine.Initialize(ctx, 1)
		require.NoError(t, err)

		f.ledger.failBalance = true
		_, err = f.engine.Guess(ctx, s.ID, p, 1)
		assert.ErrorIs(t, err, game.ErrTransferFailed)
		assert.ErrorIs(t, err, errLedgerDown)
		assert.Zero(t, f.pot(t, s.ID))
	})
}

func TestSaveFailureRefundsFee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100)
	p := ledger.UserAccount("p")
	f.fund(t, p, 1000)
	s, err := f.engine.Initialize(ctx, 1)
	require.NoError(t, err)

	f.repo.failSave = true
	_, err = f.engine.Guess(ctx, s.ID, p, 2)
	require.Error(t, err)
	assert.NotErrorIs(t, err, game.ErrPayoutInconsistency)
	f.repo.failSave = false

	assert.Equal(t, uint64(1000), f.balance(t, p))
	assert.Zero(t, f.balance(t, s.Custodian))
	assert.Zero(t, f.pot(t, s.ID))
}

func TestPayoutInconsistency(t *testing.T) {
	ctx := context.Background()

	t.Run("credit fails after debit", func(t *testing.T) {
		f := newFixture(t, 100)
		p := ledger.UserAccount("p")
		f.fund(t, p, 1000)
		s, err := f.engine.Initialize(ctx, 5)
		require.NoError(t, err)
		_, err = f.engine.Guess(ctx, s.ID, p, 4)
		require.NoError(t, err)

		f.ledger.failCredit = true
		_, err = f.engine.Guess(ctx, s.ID, p, 5)
		require.ErrorIs(t, err, game.ErrPayoutInconsistency)

		var ierr *game.InconsistencyError
		require.ErrorAs(t, err, &ierr)
		assert.Equal(t, game.StageCredit, ierr.Stage)
		assert.Equal(t, uint64(200), ierr.Amount)
		assert.Equal(t, p, ierr.Account)
		assert.ErrorIs(t, err, errLedgerDown)

		assert.Zero(t, f.pot(t, s.ID), "custody no longer holds the funds")
		assert.Zero(t, f.balance(t, s.Custodian))
		assert.Equal(t, uint64(800), f.balance(t, p))

		rec, err := f.journal.Get(ctx, ierr.PayoutID)
		require.NoError(t, err)
		assert.Equal(t, payout.StatusInconsistent, rec.Status)
		assert.Equal(t, string(game.StageCredit), rec.Stage)

		open, err := f.journal.Unresolved(ctx, 0)
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, ierr.PayoutID, open[0].ID)
	})

	t.Run("debit fails", func(t *testing.T) {
		f := newFixture(t, 100)
		p := ledger.UserAccount("p")
		f.fund(t, p, 1000)
		s, err := f.engine.Initialize(ctx, 5)
		require.NoError(t, err)

		f.ledger.failDebit = true
		_, err = f.engine.Guess(ctx, s.ID, p, 5)
		var ierr *game.InconsistencyError
		require.ErrorAs(t, err, &ierr)
		assert.Equal(t, game.StageDebit, ierr.Stage)

		assert.Equal(t, uint64(100), f.pot(t, s.ID), "pot mirrors custody")
		assert.Equal(t, uint64(100), f.balance(t, s.Custodian))

		rec, err := f.journal.Get(ctx, ierr.PayoutID)
		require.NoError(t, err)
		assert.Equal(t, payout.StatusFailed, rec.Status)

		snap, err := f.engine.Snapshot(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, ierr.PayoutID, snap.OwedPayout)
	})

	t.Run("journal unavailable", func(t *testing.T) {
		l := &faultyLedger{Memory: ledger.NewMemory()}
		eng, err := game.NewEngine(zerolog.New(io.Discard), l, store.NewMemoryStore(),
			failingJournal{payout.NewMemoryJournal()})
		require.NoError(t, err)
		p := ledger.UserAccount("p")
		require.NoError(t, l.Mint(ctx, p, 1000))

		s, err := eng.Initialize(ctx, 5)
		require.NoError(t, err)
		_, err = eng.Guess(ctx, s.ID, p, 5)
		var ierr *game.InconsistencyError
		require.ErrorAs(t, err, &ierr)
		assert.Equal(t, game.StageJournal, ierr.Stage)

		snap, err := eng.Snapshot(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), snap.Pot)
	})
}

func TestFailedDebitFreezesGameUntilRetried(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100)
	winner, other := ledger.UserAccount("winner"), ledger.UserAccount("other")
	f.fund(t, winner, 1000)
	f.fund(t, other, 1000)
	s, err := f.engine.Initialize(ctx, 5)
	require.NoError(t, err)
	_, err = f.engine.Guess(ctx, s.ID, other, 1)
	require.NoError(t, err)

	f.ledger.failDebit = true
	_, err = f.engine.Guess(ctx, s.ID, winner, 5)
	var ierr *game.InconsistencyError
	require.ErrorAs(t, err, &ierr)
	require.Equal(t, game.StageDebit, ierr.Stage)
	f.ledger.failDebit = false

	// The restored pot belongs to the owed winner; nobody else can win it.
	_, err = f.engine.Guess(ctx, s.ID, other, 5)
	assert.ErrorIs(t, err, game.ErrPayoutPending)
	assert.Equal(t, uint64(900), f.balance(t, other), "no fee charged while frozen")
	assert.Equal(t, uint64(200), f.pot(t, s.ID))

	_, err = f.journal.Resolve(ctx, ierr.PayoutID, "paid by hand")
	assert.ErrorIs(t, err, payout.ErrNotResolvable)

	t.Run("retry fails again", func(t *testing.T) {
		f.ledger.failDebit = true
		defer func() { f.ledger.failDebit = false }()
		_, err := f.engine.RetryPayout(ctx, ierr.PayoutID)
		var again *game.InconsistencyError
		require.ErrorAs(t, err, &again)
		assert.Equal(t, game.StageDebit, again.Stage)
		assert.Equal(t, uint64(200), f.pot(t, s.ID))
	})

	res, err := f.engine.RetryPayout(ctx, ierr.PayoutID)
	require.NoError(t, err)
	assert.Equal(t, game.OutcomeWon, res.Outcome)
	assert.Equal(t, uint64(200), res.Payout)
	assert.Equal(t, uint64(1100), f.balance(t, winner))
	assert.Zero(t, f.balance(t, s.Custodian))

	snap, err := f.engine.Snapshot(ctx, s.ID)
	require.NoError(t, err)
	assert.Zero(t, snap.Pot)
	assert.Empty(t, snap.OwedPayout)

	rec, err := f.journal.Get(ctx, ierr.PayoutID)
	require.NoError(t, err)
	assert.Equal(t, payout.StatusCompleted, rec.Status)

	_, err = f.engine.RetryPayout(ctx, ierr.PayoutID)
	assert.ErrorIs(t, err, payout.ErrNotResolvable, "completed payouts are not paid twice")

	res, err = f.engine.Guess(ctx, s.ID, other, 4)
	require.NoError(t, err)
	assert.Equal(t, game.OutcomeTooLow, res.Outcome)
}

// cancellingLedger cancels the caller's context as soon as the custody debit
// succeeds and, like a network-backed ledger, refuses work on a dead context.
type cancellingLedger struct {
	*ledger.Memory
	cancel context.CancelFunc
}

func (c *cancellingLedger) Debit(ctx context.Context, acct ledger.Account, amount uint64) error {
	err := c.Memory.Debit(ctx, acct, amount)
	c.cancel()
	return err
}

func (c *cancellingLedger) Credit(ctx context.Context, acct ledger.Account, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Memory.Credit(ctx, acct, amount)
}

// ctxJournal refuses updates on a dead context.
type ctxJournal struct{ payout.Journal }

func (j ctxJournal) Mark(ctx context.Context, id string, status payout.Status, stage, errMsg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return j.Journal.Mark(ctx, id, status, stage, errMsg)
}

func TestPayoutCompletesAfterCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := &cancellingLedger{Memory: ledger.NewMemory(), cancel: cancel}
	j := ctxJournal{payout.NewMemoryJournal()}
	eng, err := game.NewEngine(zerolog.New(io.Discard), l, store.NewMemoryStore(), j)
	require.NoError(t, err)

	p := ledger.UserAccount("p")
	require.NoError(t, l.Mint(context.Background(), p, 1000))
	s, err := eng.Initialize(context.Background(), 7)
	require.NoError(t, err)
	_, err = eng.Guess(context.Background(), s.ID, p, 1)
	require.NoError(t, err)

	res, err := eng.Guess(ctx, s.ID, p, 7)
	require.NoError(t, err)
	require.Error(t, ctx.Err(), "caller context was cancelled mid-payout")
	assert.Equal(t, game.OutcomeWon, res.Outcome)
	assert.Equal(t, uint64(200), res.Payout)

	bal, err := l.BalanceOf(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), bal)
	custody, err := l.BalanceOf(context.Background(), s.Custodian)
	require.NoError(t, err)
	assert.Zero(t, custody)

	rec, err := j.Get(context.Background(), res.PayoutID)
	require.NoError(t, err)
	assert.Equal(t, payout.StatusCompleted, rec.Status)
}

func TestGuessOnCancelledContextCollectsNothing(t *testing.T) {
	f := newFixture(t, 100)
	p := ledger.UserAccount("p")
	f.fund(t, p, 1000)
	s, err := f.engine.Initialize(context.Background(), 7)
	require.NoError(t, err)

	// A lookup that fails before the fee moves leaves everything untouched.
	f.ledger.failBalance = true
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.engine.Guess(ctx, s.ID, p, 7)
	assert.ErrorIs(t, err, game.ErrTransferFailed)
	assert.Equal(t, uint64(1000), f.balance(t, p))
	assert.Zero(t, f.pot(t, s.ID))
}

func TestUnknownGamesDoNotAllocateLocks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100)
	s, err := f.engine.Initialize(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, game.LockCount(f.engine))

	for i := 0; i < 1000; i++ {
		id := fmt.Sprintf("missing-%d", i)
		_, err := f.engine.Snapshot(ctx, id)
		require.ErrorIs(t, err, game.ErrGameNotFound)
		_, err = f.engine.Guess(ctx, id, ledger.UserAccount("p"), 1)
		require.ErrorIs(t, err, game.ErrGameNotFound)
		_, err = f.engine.Reveal(ctx, id)
		require.ErrorIs(t, err, game.ErrGameNotFound)
	}
	assert.Equal(t, 1, game.LockCount(f.engine))

	_, err = f.engine.Snapshot(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, game.LockCount(f.engine))
}

func TestConcurrentGuessesAreSerialized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	s, err := f.engine.Initialize(ctx, 77)
	require.NoError(t, err)

	const players, rounds = 8, 25
	accts := make([]ledger.Account, players)
	for i := range accts {
		accts[i] = ledger.UserAccount(string(rune('a' + i)))
		f.fund(t, accts[i], 10*rounds)
	}
	before := f.ledger.Total()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		paid uint64
	)
	for i := 0; i < players; i++ {
		wg.Add(1)
		go func(p ledger.Account, offset int) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				res, err := f.engine.Guess(ctx, s.ID, p, uint8(70+(offset+r)%10))
				if !assert.NoError(t, err) {
					return
				}
				if res.Outcome == game.OutcomeWon {
					mu.Lock()
					paid += res.Payout
					mu.Unlock()
				}
			}
		}(accts[i], i)
	}
	wg.Wait()

	collected := uint64(players * rounds * 10)
	assert.Equal(t, collected, paid+f.pot(t, s.ID), "every fee is either paid out or still in the pot")
	assert.Equal(t, f.pot(t, s.ID), f.balance(t, s.Custodian))
	assert.Equal(t, before, f.ledger.Total())
}
