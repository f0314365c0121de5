package game

// LockCount reports how many per-game locks the engine holds.
func LockCount(e *Engine) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.locks)
}
