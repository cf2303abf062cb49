package scheduler

import (
	"sync"
	"time"

	"github.com/matheus3301/outreach/internal/clock"
	"github.com/matheus3301/outreach/internal/state"
	"go.uber.org/zap"
)

// NextMidnight returns the start of the local day following now.
func NextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}

// Rollover zeroes every account's daily counter at each local midnight.
type Rollover struct {
	store  *state.Store
	clock  clock.Clock
	logger *zap.Logger

	mu    sync.Mutex
	timer clock.Timer
}

// NewRollover creates a rollover job. A nil clock uses the wall clock.
func NewRollover(st *state.Store, clk clock.Clock, logger *zap.Logger) *Rollover {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rollover{store: st, clock: clk, logger: logger}
}

// Start arms the timer for the next midnight.
func (r *Rollover) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		return
	}
	r.arm()
}

// Stop disarms the timer.
func (r *Rollover) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// arm schedules the next reset. r.mu must be held.
func (r *Rollover) arm() {
	now := r.clock.Now()
	r.timer = r.clock.AfterFunc(NextMidnight(now).Sub(now), r.fire)
}

func (r *Rollover) fire() {
	n := r.store.ResetSentToday()
	r.logger.Info("daily counters reset", zap.Int("accounts", n))

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer == nil {
		return
	}
	r.arm()
}
