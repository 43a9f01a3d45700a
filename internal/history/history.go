// Package history implements bounded undo/redo over snapshots for the open project.
package history

import (
	"sync"

	"github.com/kidcolor/colorbook/internal/snapshot"
)

// DefaultLimit is the undo depth used when none is configured.
const DefaultLimit = 20

// Manager owns the current snapshot of the open project together with its
// undo and redo stacks. Both stacks are most-recent-last. The undo stack
// never exceeds the limit; pushing past it evicts the oldest entry.
//
// A Manager is not persisted. Begin starts a fresh session.
type Manager struct {
	mu      sync.Mutex
	limit   int
	current snapshot.Snapshot
	undo    []snapshot.Snapshot
	redo    []snapshot.Snapshot
}

// New creates a Manager with the given undo limit. Non-positive limits use DefaultLimit.
func New(limit int) *Manager {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Manager{limit: limit}
}

// Begin resets both stacks and makes initial the current snapshot.
func (m *Manager) Begin(initial snapshot.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = initial
	m.undo = nil
	m.redo = nil
}

// RecordAndApply pushes the current snapshot onto the undo stack, clears the
// redo stack and makes next current. It returns the prior snapshot.
func (m *Manager) RecordAndApply(next snapshot.Snapshot) snapshot.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	prior := m.current
	m.pushUndo(prior)
	m.redo = nil
	m.current = next
	return prior
}

func (m *Manager) pushUndo(s snapshot.Snapshot) {
	if len(m.undo) >= m.limit {
		// evict oldest
		n := copy(m.undo, m.undo[len(m.undo)-m.limit+1:])
		m.undo = m.undo[:n]
	}
	m.undo = append(m.undo, s)
}

// Undo moves the current snapshot to the redo stack and restores the most
// recent undo entry. ok is false, with no state change, when there is nothing to undo.
func (m *Manager) Undo() (snapshot.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.undo) == 0 {
		return m.current, false
	}

	top := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]
	m.redo = append(m.redo, m.current)
	m.current = top
	return top, true
}

// Redo is the inverse of Undo. ok is false when there is nothing to redo.
func (m *Manager) Redo() (snapshot.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.redo) == 0 {
		return m.current, false
	}

	top := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	m.pushUndo(m.current)
	m.current = top
	return top, true
}

// Current returns the canonical current snapshot.
func (m *Manager) Current() snapshot.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// CanUndo reports whether Undo would change state.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo) > 0
}

// CanRedo reports whether Redo would change state.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo) > 0
}

// UndoDepth returns the undo stack length.
func (m *Manager) UndoDepth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo)
}

// RedoDepth returns the redo stack length.
func (m *Manager) RedoDepth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo)
}

// Limit returns the undo bound.
func (m *Manager) Limit() int {
	return m.limit
}
