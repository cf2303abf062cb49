package store

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/outreach/internal/bus"
	"github.com/matheus3301/outreach/internal/state"
	"go.uber.org/zap"
)

// Persister writes the latest snapshot to the database after every
// state.changed notification.
type Persister struct {
	db     *DB
	store  *state.Store
	bus    *bus.Bus
	logger *zap.Logger

	mu     sync.Mutex // serializes saves
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPersister creates a persister for st.
func NewPersister(db *DB, st *state.Store, b *bus.Bus, logger *zap.Logger) *Persister {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persister{db: db, store: st, bus: b, logger: logger}
}

// Start subscribes to the bus and saves in the background.
func (p *Persister) Start(ctx context.Context) {
	// A one-slot buffer coalesces bursts: while a signal is pending, further
	// notifications are dropped and the next save still sees the newest snapshot.
	events, unsubscribe := p.bus.Subscribe(bus.KindStateChanged, 1)
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		defer unsubscribe()
		p.loop(ctx, events)
	}()
}

// Stop ends the loop and writes a final snapshot.
func (p *Persister) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
	return p.Flush(ctx)
}

// Flush saves the current snapshot synchronously.
func (p *Persister) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	start := time.Now()
	snap := p.store.Snapshot()
	if err := p.db.SaveSnapshot(ctx, snap); err != nil {
		return err
	}
	p.logger.Debug("snapshot saved",
		zap.Int("messages", len(snap.Messages)),
		zap.Duration("took", time.Since(start)))
	return nil
}

func (p *Persister) loop(ctx context.Context, events <-chan bus.Event) {
	for {
		select {
		case <-events:
			if err := p.Flush(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("failed to save snapshot", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}
