// internal/store/memory.go
//
// In-memory implementation of game.Repository, used by tests and ephemeral
// runs. The server stores games in SQLite (sqlite.go).
//
// Characteristics:
//   - Stores *game.GameState objects keyed by ID in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - The map guards membership only; the engine's per-game lock guards
//     the record's fields.
//   - Get returns game.ErrGameNotFound for unknown IDs.

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/robalobadob/potguess/internal/game"
)

// Store defines the persistence interface for game records.
type Store interface {
	game.Repository

	// IDs lists stored game IDs, oldest first.
	IDs(ctx context.Context) ([]string, error)
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu    sync.RWMutex               // guards games map
	games map[string]*game.GameState // keyed by GameState.ID()
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{games: make(map[string]*game.GameState)}
}

// Save adds or updates the game in the map.
func (m *memory) Save(ctx context.Context, g *game.GameState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[g.ID()] = g
	return nil
}

// Get looks up a game by ID.
func (m *memory) Get(ctx context.Context, id string) (*game.GameState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.games[id]; ok {
		return g, nil
	}
	return nil, fmt.Errorf("%w: %s", game.ErrGameNotFound, id)
}

// IDs returns all game IDs ordered by creation time.
func (m *memory) IDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	gs := make([]*game.GameState, 0, len(m.games))
	for _, g := range m.games {
		gs = append(gs, g)
	}
	m.mu.RUnlock()

	sort.Slice(gs, func(i, j int) bool {
		if gs[i].CreatedAt().Equal(gs[j].CreatedAt()) {
			return gs[i].ID() < gs[j].ID()
		}
		return gs[i].CreatedAt().Before(gs[j].CreatedAt())
	})
	ids := make([]string, len(gs))
	for i, g := range gs {
		ids[i] = g.ID()
	}
	return ids, nil
}
