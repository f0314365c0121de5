package store_test

import (
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/potguess/internal/database"
	"github.com/robalobadob/potguess/internal/game"
	"github.com/robalobadob/potguess/internal/ledger"
	"github.com/robalobadob/potguess/internal/payout"
	"github.com/robalobadob/potguess/internal/store"
)

func stores() map[string]func(t *testing.T) store.Store {
	return map[string]func(t *testing.T) store.Store{
		"memory": func(t *testing.T) store.Store { return store.NewMemoryStore() },
		"sqlite": func(t *testing.T) store.Store {
			db, err := database.OpenMigrated(context.Background(), database.Memory)
			require.NoError(t, err)
			t.Cleanup(func() { _ = db.Close() })
			return store.NewSQLite(db)
		},
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			st := newStore(t)

			_, err := st.Get(ctx, "missing")
			assert.ErrorIs(t, err, game.ErrGameNotFound)

			l := ledger.NewMemory()
			eng, err := game.NewEngine(zerolog.New(io.Discard), l, st, payout.NewMemoryJournal())
			require.NoError(t, err)

			a, err := eng.Initialize(ctx, 1)
			require.NoError(t, err)
			b, err := eng.Initialize(ctx, 2)
			require.NoError(t, err)

			got, err := st.Get(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, a.ID, got.ID())
			assert.Equal(t, a.Commitment, got.Commitment())
			assert.True(t, a.CreatedAt.Equal(got.CreatedAt()))

			p := ledger.UserAccount("p")
			require.NoError(t, l.Mint(ctx, p, 1000))
			_, err = eng.Guess(ctx, a.ID, p, 9)
			require.NoError(t, err)
			got, err = st.Get(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, uint64(100), got.Pot())

			ids, err := st.IDs(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)
		})
	}
}

func TestSQLiteRoundTripsRecord(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenMigrated(ctx, database.Memory)
	require.NoError(t, err)
	defer db.Close()
	st := store.NewSQLite(db)

	eng, err := game.NewEngine(zerolog.New(io.Discard), ledger.NewMemory(), st, payout.NewMemoryJournal())
	require.NoError(t, err)
	snap, err := eng.Initialize(ctx, 200)
	require.NoError(t, err)

	g, err := st.Get(ctx, snap.ID)
	require.NoError(t, err)
	rec := g.Record()
	assert.Equal(t, uint8(200), rec.Secret)
	assert.Len(t, rec.Nonce, 32)

	rec.OwedPayout = "p-1"
	rec.Pot = 500
	owed, err := game.FromRecord(rec)
	require.NoError(t, err)
	require.NoError(t, st.Save(ctx, owed))

	g, err = st.Get(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), g.Pot())
	assert.Equal(t, "p-1", g.OwedPayout())
	assert.Equal(t, snap.Commitment, g.Commitment(), "commitment is immutable")
}

func TestSQLiteRejectsTamperedSecret(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenMigrated(ctx, database.Memory)
	require.NoError(t, err)
	defer db.Close()
	st := store.NewSQLite(db)

	eng, err := game.NewEngine(zerolog.New(io.Discard), ledger.NewMemory(), st, payout.NewMemoryJournal())
	require.NoError(t, err)
	snap, err := eng.Initialize(ctx, 10)
	require.NoError(t, err)

	_, err = db.Exec(`UPDATE games SET secret = 11 WHERE id = ?`, snap.ID)
	require.NoError(t, err)
	_, err = st.Get(ctx, snap.ID)
	assert.ErrorIs(t, err, game.ErrInvalidInput)
}

// A restarted server rebuilds its engine over the same database: the pot and
// its custody balance still belong to the game and can be won.
func TestGamesSurviveRestart(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/pot.db"

	db, err := database.OpenMigrated(ctx, path)
	require.NoError(t, err)
	l := ledger.NewSQLite(db)
	p := ledger.UserAccount("p")
	require.NoError(t, l.Mint(ctx, p, 1000))

	eng, err := game.NewEngine(zerolog.New(io.Discard), l, store.NewSQLite(db), payout.NewSQLiteJournal(db))
	require.NoError(t, err)
	snap, err := eng.Initialize(ctx, 42)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := eng.Guess(ctx, snap.ID, p, 1)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	db, err = database.OpenMigrated(ctx, path)
	require.NoError(t, err)
	defer db.Close()
	l = ledger.NewSQLite(db)
	st := store.NewSQLite(db)
	eng, err = game.NewEngine(zerolog.New(io.Discard), l, st, payout.NewSQLiteJournal(db))
	require.NoError(t, err)

	ids, err := st.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{snap.ID}, ids)

	got, err := eng.Snapshot(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), got.Pot)

	res, err := eng.Guess(ctx, snap.ID, p, 42)
	require.NoError(t, err)
	assert.Equal(t, game.OutcomeWon, res.Outcome)
	assert.Equal(t, uint64(400), res.Payout)

	bal, err := l.BalanceOf(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), bal)
	custody, err := l.BalanceOf(ctx, snap.Custodian)
	require.NoError(t, err)
	assert.Zero(t, custody)
}
