// internal/payout/memory.go
//
// In-memory Journal. Concurrency-safe via RWMutex; lost on restart.

package payout

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/robalobadob/potguess/internal/ledger"
)

type memoryEntry struct {
	seq int
	rec Record
}

type memory struct {
	mu      sync.RWMutex
	seq     int
	records map[string]*memoryEntry
}

// NewMemoryJournal constructs an empty in-memory Journal.
func NewMemoryJournal() Journal {
	return &memory{records: make(map[string]*memoryEntry)}
}

func (m *memory) Open(ctx context.Context, gameID string, acct ledger.Account, amount uint64) (Record, error) {
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
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.records[rec.ID] = &memoryEntry{seq: m.seq, rec: rec}
	return rec, nil
}

func (m *memory) Mark(ctx context.Context, id string, status Status, stage, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	e.rec.Status = status
	e.rec.Stage = stage
	e.rec.Error = errMsg
	e.rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memory) Get(ctx context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return e.rec, nil
}

func (m *memory) ByGame(ctx context.Context, gameID string, limit int) ([]Record, error) {
	out := m.collect(func(r Record) bool { return r.GameID == gameID }, true)
	return truncate(out, clampLimit(limit)), nil
}

func (m *memory) Unresolved(ctx context.Context, limit int) ([]Record, error) {
	out := m.collect(func(r Record) bool { return unresolved(r.Status) }, false)
	return truncate(out, clampLimit(limit)), nil
}

func (m *memory) Resolve(ctx context.Context, id, note string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	if !resolvable(e.rec.Status) {
		return Record{}, ErrNotResolvable
	}
	e.rec.Status = StatusResolved
	e.rec.Note = note
	e.rec.UpdatedAt = time.Now().UTC()
	return e.rec, nil
}

// collect filters records ordered by insertion (newest first when desc).
func (m *memory) collect(keep func(Record) bool, desc bool) []Record {
	m.mu.RLock()
	entries := make([]memoryEntry, 0, len(m.records))
	for _, e := range m.records {
		if keep(e.rec) {
			entries = append(entries, *e)
		}
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if desc {
			return entries[i].seq > entries[j].seq
		}
		return entries[i].seq < entries[j].seq
	})
	out := make([]Record, len(entries))
	for i, e := range entries {
		out[i] = e.rec
	}
	return out
}

func truncate(rs []Record, limit int) []Record {
	if len(rs) > limit {
		return rs[:limit]
	}
	return rs
}
