// internal/store/sqlite.go
//
// SQLite-backed game.Repository. Game records survive restarts, so every
// game:<id> custody balance in the ledger keeps an owning record.
//
// Get returns a fresh *game.GameState per call; the engine's per-game lock
// serialises the read-modify-Save cycle.

package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/robalobadob/potguess/internal/game"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type sqliteStore struct {
	db *sql.DB
}

// NewSQLite wraps a migrated database handle.
func NewSQLite(db *sql.DB) Store {
	return &sqliteStore{db: db}
}

// Save inserts the game or updates its mutable fields.
func (s *sqliteStore) Save(ctx context.Context, g *game.GameState) error {
	r := g.Record()
	if r.Pot > math.MaxInt64 {
		return fmt.Errorf("save game %s: pot %d exceeds storage range", r.ID, r.Pot)
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO games (id, secret, pot, nonce, commitment, owed_payout, created_at)
        VALUES (?,?,?,?,?,?,?)
        ON CONFLICT(id) DO UPDATE SET pot = excluded.pot, owed_payout = excluded.owed_payout`,
		r.ID, int(r.Secret), int64(r.Pot), hex.EncodeToString(r.Nonce), r.Commitment,
		r.OwedPayout, r.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save game %s: %w", r.ID, err)
	}
	return nil
}

// Get loads a game by ID.
func (s *sqliteStore) Get(ctx context.Context, id string) (*game.GameState, error) {
	var (
		r              game.Record
		secret         int
		pot            int64
		nonce, created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, secret, pot, nonce, commitment, owed_payout, created_at FROM games WHERE id=?`, id,
	).Scan(&r.ID, &secret, &pot, &nonce, &r.Commitment, &r.OwedPayout, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", game.ErrGameNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load game %s: %w", id, err)
	}

	r.Secret = uint8(secret)
	r.Pot = uint64(pot)
	if r.Nonce, err = hex.DecodeString(nonce); err != nil {
		return nil, fmt.Errorf("load game %s: nonce: %w", id, err)
	}
	if r.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("load game %s: created_at: %w", id, err)
	}
	return game.FromRecord(r)
}

// IDs returns all game IDs ordered by creation time.
func (s *sqliteStore) IDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM games ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
