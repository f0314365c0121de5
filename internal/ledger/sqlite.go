// internal/ledger/sqlite.go
//
// SQLite-backed Ledger. Each call runs in its own SQL transaction, so a
// single Transfer/Debit/Credit either commits fully or not at all.
// Balances are stored as INTEGER; amounts above math.MaxInt64 are rejected.

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
)

// SQLite is a Ledger over the accounts table.
type SQLite struct {
	db *sql.DB
}

// NewSQLite wraps a migrated database handle.
func NewSQLite(db *sql.DB) *SQLite { return &SQLite{db: db} }

// BalanceOf returns the balance of acct (zero if the row does not exist).
func (s *SQLite) BalanceOf(ctx context.Context, acct Account) (uint64, error) {
	return balance(ctx, s.db, acct)
}

// Transfer debits from and credits to inside one transaction.
func (s *SQLite) Transfer(ctx context.Context, from, to Account, amount uint64) error {
	if from == to {
		return ErrSameAccount
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := debit(ctx, tx, from, amount); err != nil {
			return fmt.Errorf("transfer from %s: %w", from, err)
		}
		if err := credit(ctx, tx, to, amount); err != nil {
			return fmt.Errorf("transfer to %s: %w", to, err)
		}
		return nil
	})
}

// Debit removes amount from acct.
func (s *SQLite) Debit(ctx context.Context, acct Account, amount uint64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := debit(ctx, tx, acct, amount); err != nil {
			return fmt.Errorf("debit %s: %w", acct, err)
		}
		return nil
	})
}

// Credit adds amount to acct, creating the row if needed.
func (s *SQLite) Credit(ctx context.Context, acct Account, amount uint64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := credit(ctx, tx, acct, amount); err != nil {
			return fmt.Errorf("credit %s: %w", acct, err)
		}
		return nil
	})
}

// Mint funds acct from outside the ledger.
func (s *SQLite) Mint(ctx context.Context, acct Account, amount uint64) error {
	return s.Credit(ctx, acct, amount)
}

func (s *SQLite) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func balance(ctx context.Context, q queryer, acct Account) (uint64, error) {
	var b int64
	err := q.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id=?`, string(acct)).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(b), nil
}

func debit(ctx context.Context, tx *sql.Tx, acct Account, amount uint64) error {
	n, err := toSQL(amount)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance - ? WHERE id=? AND balance >= ?`,
		n, string(acct), n)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

func credit(ctx context.Context, tx *sql.Tx, acct Account, amount uint64) error {
	n, err := toSQL(amount)
	if err != nil {
		return err
	}
	cur, err := balance(ctx, tx, acct)
	if err != nil {
		return err
	}
	if cur > uint64(math.MaxInt64)-amount {
		return ErrAmountTooLarge
	}
	_, err = tx.ExecContext(ctx, `
        INSERT INTO accounts (id, balance) VALUES (?, ?)
        ON CONFLICT(id) DO UPDATE SET balance = balance + excluded.balance`,
		string(acct), n)
	return err
}

func toSQL(amount uint64) (int64, error) {
	if amount > math.MaxInt64 {
		return 0, ErrAmountTooLarge
	}
	return int64(amount), nil
}
