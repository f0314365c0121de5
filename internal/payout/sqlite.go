// internal/payout/sqlite.go
//
// SQLite Journal over the payouts table.

package payout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/robalobadob/potguess/internal/ledger"
)

// SQLiteJournal persists payout records in SQLite.
type SQLiteJournal struct{ db *sql.DB }

// NewSQLiteJournal wraps a migrated database handle.
func NewSQLiteJournal(db *sql.DB) *SQLiteJournal { return &SQLiteJournal{db: db} }

const recordColumns = `id, game_id, account, amount, status, stage, error, note, created_at, updated_at`

func (s *SQLiteJournal) Open(ctx context.Context, gameID string, acct ledger.Account, amount uint64) (Record, error) {
	if amount > 1<<63-1 {
		return Record{}, ledger.ErrAmountTooLarge
	}
	now := time.Now().UTC()
	rec := Record{
		ID:        uuid.NewString(),
		GameID:    gameID,
		Account:   acct,
		Amount:    amount,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO payouts (id, game_id, account, amount, status, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.GameID, string(rec.Account), int64(rec.Amount), string(rec.Status),
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert payout: %w", err)
	}
	return rec, nil
}

func (s *SQLiteJournal) Mark(ctx context.Context, id string, status Status, stage, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payouts SET status=?, stage=?, error=?, updated_at=? WHERE id=?`,
		string(status), stage, errMsg, formatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("update payout: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteJournal) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM payouts WHERE id=?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (s *SQLiteJournal) ByGame(ctx context.Context, gameID string, limit int) ([]Record, error) {
	return s.query(ctx, `
        SELECT `+recordColumns+`
        FROM payouts
        WHERE game_id=?
        ORDER BY created_at DESC, rowid DESC
        LIMIT ?`, gameID, clampLimit(limit))
}

func (s *SQLiteJournal) Unresolved(ctx context.Context, limit int) ([]Record, error) {
	return s.query(ctx, `
        SELECT `+recordColumns+`
        FROM payouts
        WHERE status IN (?, ?, ?)
        ORDER BY created_at ASC, rowid ASC
        LIMIT ?`,
		string(StatusPending), string(StatusFailed), string(StatusInconsistent), clampLimit(limit))
}

func (s *SQLiteJournal) Resolve(ctx context.Context, id, note string) (Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := scanRecord(tx.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM payouts WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	if !resolvable(rec.Status) {
		return Record{}, ErrNotResolvable
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE payouts SET status=?, note=?, updated_at=? WHERE id=?`,
		string(StatusResolved), note, formatTime(now), id,
	); err != nil {
		return Record{}, fmt.Errorf("resolve payout: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Record{}, err
	}
	rec.Status = StatusResolved
	rec.Note = note
	rec.UpdatedAt = now
	return rec, nil
}

func (s *SQLiteJournal) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec              Record
		acct, status     string
		amount           int64
		created, updated string
	)
	if err := row.Scan(&rec.ID, &rec.GameID, &acct, &amount, &status,
		&rec.Stage, &rec.Error, &rec.Note, &created, &updated); err != nil {
		return Record{}, err
	}
	rec.Account = ledger.Account(acct)
	rec.Amount = uint64(amount)
	rec.Status = Status(status)
	rec.CreatedAt = parseTime(created)
	rec.UpdatedAt = parseTime(updated)
	return rec, nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

// parseTime parses stored timestamps; on error returns zero time.
func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
