// Package connectivity tracks whether the host reports network access.
package connectivity

import (
	"sync"
	"sync/atomic"

	"github.com/kidcolor/colorbook/internal/event"
	"github.com/kidcolor/colorbook/internal/logging"
)

// Monitor holds the current online flag. It never probes the network; the
// flag changes only when the host signal calls Set.
type Monitor struct {
	bus *event.Bus

	// dispatch serializes Set so observers see transitions in the order the
	// flag took them. Observers must not call Set.
	dispatch sync.Mutex

	mu     sync.RWMutex
	online bool

	nextID    uint64
	listeners map[uint64]func(online bool)
}

// New creates a Monitor with the given initial status. bus may be nil.
func New(bus *event.Bus, initialOnline bool) *Monitor {
	return &Monitor{
		bus:       bus,
		online:    initialOnline,
		listeners: make(map[uint64]func(bool)),
	}
}

// Online returns the current status.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Set records the host's status. Listeners and the bus are notified only
// when the status actually changes; the return value reports whether it did.
func (m *Monitor) Set(online bool) bool {
	m.dispatch.Lock()
	defer m.dispatch.Unlock()

	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return false
	}
	m.online = online

	listeners := make([]func(bool), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	logging.Info().Bool("online", online).Msg("connectivity changed")

	if m.bus != nil {
		m.bus.PublishSync(event.Event{
			Type: event.ConnectivityChanged,
			Data: event.ConnectivityChangedData{Online: online},
		})
	}
	for _, fn := range listeners {
		fn(online)
	}
	return true
}

// OnTransition registers fn to be called after every status change.
// Returns an unsubscribe function.
func (m *Monitor) OnTransition(fn func(online bool)) func() {
	id := atomic.AddUint64(&m.nextID, 1)

	m.mu.Lock()
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}
