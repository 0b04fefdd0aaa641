package state

import "sync"

type memoryManager struct {
	mu    sync.RWMutex
	slots map[int64]State
}

// NewMemoryManager constructs the in-memory Manager.
func NewMemoryManager() Manager {
	return &memoryManager{
		slots: make(map[int64]State),
	}
}

func (m *memoryManager) Open(userID int64, st State) {
	if st == StateIdle || st == "" {
		m.Close(userID)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[userID] = st
}

func (m *memoryManager) Peek(userID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if st, ok := m.slots[userID]; ok {
		return st
	}
	return StateIdle
}

func (m *memoryManager) Take(userID int64) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.slots[userID]
	if !ok {
		return StateIdle
	}
	delete(m.slots, userID)
	return st
}

func (m *memoryManager) Close(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, userID)
}

func (m *memoryManager) InProgress(userID int64) bool {
	return m.Peek(userID) != StateIdle
}

func (m *memoryManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.slots)
}
