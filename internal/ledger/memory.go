// internal/ledger/memory.go
//
// In-memory Ledger used by tests and single-process deployments.
// Concurrency-safe via a single mutex; state is lost on restart.

package ledger

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// Memory is a map-backed Ledger.
type Memory struct {
	mu       sync.Mutex
	balances map[Account]uint64
}

// NewMemory constructs an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{balances: make(map[Account]uint64)}
}

// BalanceOf returns the balance of acct (zero if unknown).
func (m *Memory) BalanceOf(ctx context.Context, acct Account) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[acct], nil
}

// Transfer moves amount between two accounts.
func (m *Memory) Transfer(ctx context.Context, from, to Account, amount uint64) error {
	if from == to {
		return ErrSameAccount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[from] < amount {
		return fmt.Errorf("transfer from %s: %w", from, ErrInsufficientBalance)
	}
	if m.balances[to] > math.MaxUint64-amount {
		return fmt.Errorf("transfer to %s: %w", to, ErrAmountTooLarge)
	}
	m.balances[from] -= amount
	m.balances[to] += amount
	return nil
}

// Debit removes amount from acct.
func (m *Memory) Debit(ctx context.Context, acct Account, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[acct] < amount {
		return fmt.Errorf("debit %s: %w", acct, ErrInsufficientBalance)
	}
	m.balances[acct] -= amount
	return nil
}

// Credit adds amount to acct.
func (m *Memory) Credit(ctx context.Context, acct Account, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[acct] > math.MaxUint64-amount {
		return fmt.Errorf("credit %s: %w", acct, ErrAmountTooLarge)
	}
	m.balances[acct] += amount
	return nil
}

// Mint funds acct from outside the ledger.
func (m *Memory) Mint(ctx context.Context, acct Account, amount uint64) error {
	return m.Credit(ctx, acct, amount)
}

// Total returns the sum of all balances (test helper for conservation checks).
func (m *Memory) Total() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum uint64
	for _, b := range m.balances {
		sum += b
	}
	return sum
}
