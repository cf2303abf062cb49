// Package status tracks the daemon's run phase.
package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/outreach/internal/bus"
)

// State represents a daemon run phase.
type State string

const (
	Booting    State = "BOOTING"
	Recovering State = "RECOVERING"
	Running    State = "RUNNING"
	Draining   State = "DRAINING"
	Stopped    State = "STOPPED"
	Error      State = "ERROR"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting:    {Recovering, Error},
	Recovering: {Running, Error},
	Running:    {Draining, Error},
	Draining:   {Stopped, Error},
	Stopped:    {Booting},
	Error:      {Booting, Stopped},
}

// Machine tracks and enforces daemon phase transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	since   time.Time
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Booting,
		since:   time.Now(),
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Since returns when the current state was entered.
func (m *Machine) Since() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.since
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.since = time.Now()
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindDaemonStatusChanged,
			Timestamp: m.since,
			Payload:   StatusChange{From: from, To: to},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State `json:"from"`
	To   State `json:"to"`
}
