package scheduler

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"

	"github.com/matheus3301/outreach/internal/state"
)

// Transport delivers a reserved message. A non-nil error marks it failed
// with the error text as the reason.
type Transport interface {
	Deliver(ctx context.Context, m state.Message) error
}

// SimulatedTransport fails deliveries at random with a fixed probability.
type SimulatedTransport struct {
	mu          sync.Mutex
	rng         *rand.Rand
	probability float64
	reason      string
}

// NewSimulatedTransport returns a transport failing with probability p.
// A nil rng uses a randomly seeded generator.
func NewSimulatedTransport(p float64, reason string, rng *rand.Rand) *SimulatedTransport {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if reason == "" {
		reason = "send failed"
	}
	return &SimulatedTransport{rng: rng, probability: p, reason: reason}
}

func (t *SimulatedTransport) Deliver(ctx context.Context, _ state.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	failed := t.rng.Float64() < t.probability
	t.mu.Unlock()
	if failed {
		return errors.New(t.reason)
	}
	return nil
}
