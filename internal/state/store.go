// Package state holds accounts, campaigns, messages, templates and prompts
// behind a single container that publishes immutable snapshots.
package state

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/outreach/internal/bus"
	"github.com/matheus3301/outreach/internal/clock"
)

// EligibilityFunc decides whether an account may send at now.
type EligibilityFunc func(acc Account, now time.Time) bool

// Store owns every collection. Readers get the current Snapshot without
// locking; writers serialize on mu, build a new snapshot and swap it in.
type Store struct {
	mu    sync.Mutex
	snap  atomic.Pointer[Snapshot]
	bus   *bus.Bus
	clock clock.Clock
}

// New returns a store seeded with initial. A nil bus disables notifications.
func New(initial Snapshot, b *bus.Bus, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.Real{}
	}
	s := &Store{bus: b, clock: clk}
	s.snap.Store(&initial)
	return s
}

// Snapshot returns the current state. The returned slices must not be modified.
func (s *Store) Snapshot() Snapshot {
	return *s.snap.Load()
}

// Replace swaps in a whole snapshot, e.g. after loading from disk.
func (s *Store) Replace(next Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commit(&next, "replace")
}

// commit publishes next and notifies subscribers. s.mu must be held so that
// notifications are emitted in commit order.
func (s *Store) commit(next *Snapshot, reason string, events ...bus.Event) {
	s.snap.Store(next)
	if s.bus == nil {
		return
	}
	now := s.clock.Now()
	for _, evt := range events {
		if evt.Timestamp.IsZero() {
			evt.Timestamp = now
		}
		s.bus.Publish(evt)
	}
	s.bus.Publish(bus.Event{Kind: bus.KindStateChanged, Timestamp: now, Payload: reason})
}

func (s *Store) current() *Snapshot {
	return s.snap.Load()
}

func newID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func indexOf[T any](items []T, match func(T) bool) int {
	for i, it := range items {
		if match(it) {
			return i
		}
	}
	return -1
}
