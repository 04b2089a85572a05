package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/ringcore/internal/bus"
)

// Table lists, for each state, the states it may move to.
type Table[S ~string] map[S][]S

// Allows reports whether from may move to to.
func (t Table[S]) Allows(from, to S) bool {
	return slices.Contains(t[from], to)
}

// Machine tracks and enforces state transitions, publishing each change
// as a retained bus event.
type Machine[S ~string] struct {
	mu      sync.RWMutex
	current S
	table   Table[S]
	bus     *bus.Bus
	kind    string
	key     string
}

// NewMachine creates a machine in the initial state. Changes are published
// under kind, retained per key.
func NewMachine[S ~string](initial S, table Table[S], b *bus.Bus, kind, key string) *Machine[S] {
	return &Machine[S]{
		current: initial,
		table:   table,
		bus:     b,
		kind:    kind,
		key:     key,
	}
}

// Current returns the current state.
func (m *Machine[S]) Current() S {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine[S]) Transition(to S) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.table.Allows(m.current, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      m.kind,
			Key:       m.key,
			Retain:    true,
			Timestamp: time.Now(),
			Payload: Change[S]{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// Change is the payload for status change events.
type Change[S ~string] struct {
	From S
	To   S
}
