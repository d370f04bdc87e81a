package engine

import (
	"sync"
	"sync/atomic"
)

// PolicyManager holds the engine currently used for dispatching.
// Readers never block; Update swaps in a new engine atomically.
type PolicyManager struct {
	currentEngine atomic.Pointer[Engine]
	mu            sync.Mutex
}

func NewManager(initial *Engine) *PolicyManager {
	m := &PolicyManager{}
	if initial != nil {
		m.currentEngine.Store(initial)
	}
	return m
}

// GetEngine returns the active engine, or nil before Update was called.
func (m *PolicyManager) GetEngine() *Engine {
	return m.currentEngine.Load()
}

func (m *PolicyManager) Update(candidate *Engine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentEngine.Store(candidate)
}

// Release drops the active engine. Subsequent GetEngine calls return nil.
func (m *PolicyManager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentEngine.Store(nil)
}
