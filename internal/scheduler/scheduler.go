// Package scheduler drains queued outreach messages through the send
// lifecycle on a fixed tick.
package scheduler

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/matheus3301/outreach/internal/clock"
	"github.com/matheus3301/outreach/internal/rules"
	"github.com/matheus3301/outreach/internal/state"
	"go.uber.org/zap"
)

// InterruptedReason is recorded on messages found sending at startup.
const InterruptedReason = "interrupted"

// Scheduler reserves eligible messages each tick and resolves them after a
// simulated network delay.
type Scheduler struct {
	store     *state.Store
	transport Transport
	clock     clock.Clock
	cfg       Config
	logger    *zap.Logger
	metrics   *Metrics

	rngMu sync.Mutex
	rng   *rand.Rand

	tickMu sync.Mutex // one tick at a time

	mu       sync.Mutex
	timers   map[string]clock.Timer
	cancel   context.CancelFunc
	done     chan struct{}
	inflight sync.WaitGroup
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option { return func(s *Scheduler) { s.clock = c } }

// WithRand sets the source used to draw send delays.
func WithRand(r *rand.Rand) Option { return func(s *Scheduler) { s.rng = r } }

// WithTransport replaces the simulated transport.
func WithTransport(t Transport) Option { return func(s *Scheduler) { s.transport = t } }

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) Option { return func(s *Scheduler) { s.metrics = m } }

// New creates a scheduler over st. Unless overridden, it uses the wall
// clock, a random seed and a SimulatedTransport configured from cfg.
func New(st *state.Store, cfg Config, logger *zap.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		store:  st,
		cfg:    cfg,
		logger: logger,
		clock:  clock.Real{},
		timers: make(map[string]clock.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if s.transport == nil {
		s.transport = NewSimulatedTransport(cfg.FailureProbability, cfg.FailureReason, nil)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	return s
}

// Start runs the tick loop until Stop is called or ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
	s.logger.Info("scheduler started", zap.Duration("tick", s.cfg.TickInterval))
}

// Stop cancels the tick loop and waits for in-flight sends to resolve. If
// ctx expires first, the remaining resolution timers are dropped and their
// messages stay sending until the next Recover.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}

	drained := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		n := s.abandon()
		<-drained
		s.logger.Warn("scheduler stopped with sends in flight", zap.Int("abandoned", n))
		return ctx.Err()
	}
}

func (s *Scheduler) abandon() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, t := range s.timers {
		if t.Stop() {
			n++
			s.metrics.InFlight.Dec()
			s.inflight.Done()
		}
		delete(s.timers, id)
	}
	return n
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := s.clock.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			s.Tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Tick runs one scan over running campaigns and returns how many messages
// it moved to sending.
func (s *Scheduler) Tick(ctx context.Context) int {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	s.metrics.Ticks.Inc()

	snap := s.store.Snapshot()
	running := snap.RunningCampaigns()
	if len(running) == 0 {
		return 0
	}

	now := s.clock.Now()
	reserved := 0
	for _, c := range running {
		for _, accountID := range c.AccountIDs {
			acc, ok := snap.Account(accountID)
			if !ok {
				continue
			}
			if reason := rules.Check(acc, now); reason != rules.Eligible {
				s.metrics.Skipped.WithLabelValues(string(reason)).Inc()
				continue
			}
			m, ok := s.store.Reserve(c.ID, accountID, now, rules.CanSend)
			if !ok {
				continue
			}
			reserved++
			s.metrics.Reservations.WithLabelValues("tick").Inc()
			s.dispatch(ctx, m)
		}
	}
	if reserved > 0 {
		s.logger.Debug("tick reserved messages", zap.Int("count", reserved))
	}
	return reserved
}

// SendNow sends one extra message for the campaign immediately, through the
// same eligibility rules and commit path as the tick.
func (s *Scheduler) SendNow(ctx context.Context, campaignID string, r state.Recipient) (state.Message, error) {
	if r.Name == "" {
		r.Name = "Manual Recipient"
	}
	if r.Company == "" {
		r.Company = "Manual Company"
	}
	m, err := s.store.ReserveNew(campaignID, r, s.clock.Now(), rules.CanSend)
	if err != nil {
		return state.Message{}, err
	}
	s.metrics.Reservations.WithLabelValues("manual").Inc()
	s.logger.Info("manual send reserved",
		zap.String("message_id", m.ID),
		zap.String("campaign_id", campaignID),
		zap.String("account_id", m.AccountID))
	s.dispatch(ctx, m)
	return m, nil
}

// Recover fails every message left sending by a previous process. It must
// run before Start.
func (s *Scheduler) Recover() int {
	snap := s.store.Snapshot()
	now := s.clock.Now()
	n := 0
	for _, m := range snap.InFlight() {
		if s.store.FailSend(m.ID, InterruptedReason, now) {
			n++
		}
	}
	if n > 0 {
		s.logger.Warn("recovered interrupted sends", zap.Int("count", n))
	}
	return n
}

func (s *Scheduler) dispatch(ctx context.Context, m state.Message) {
	ctx = context.WithoutCancel(ctx)
	delay := s.sendDelay()
	s.metrics.InFlight.Inc()
	s.metrics.SendLatency.Observe(delay.Seconds())
	s.inflight.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[m.ID] = s.clock.AfterFunc(delay, func() { s.resolve(ctx, m) })
}

func (s *Scheduler) resolve(ctx context.Context, m state.Message) {
	defer s.inflight.Done()
	s.mu.Lock()
	delete(s.timers, m.ID)
	s.mu.Unlock()
	s.metrics.InFlight.Dec()

	err := s.transport.Deliver(ctx, m)
	at := s.clock.Now()
	fields := []zap.Field{
		zap.String("message_id", m.ID),
		zap.String("campaign_id", m.CampaignID),
		zap.String("account_id", m.AccountID),
	}
	if err != nil {
		if s.store.FailSend(m.ID, err.Error(), at) {
			s.metrics.Resolutions.WithLabelValues("failed").Inc()
			s.logger.Warn("message failed", append(fields, zap.Error(err))...)
			return
		}
	} else if s.store.CompleteSend(m.ID, at) {
		s.metrics.Resolutions.WithLabelValues("sent").Inc()
		s.logger.Info("message sent", fields...)
		return
	}
	s.metrics.Resolutions.WithLabelValues("dropped").Inc()
	s.logger.Debug("resolution dropped, message no longer sending", fields...)
}

// sendDelay draws uniformly from [MinSendDelay, MaxSendDelay].
func (s *Scheduler) sendDelay() time.Duration {
	span := s.cfg.MaxSendDelay - s.cfg.MinSendDelay
	if span <= 0 {
		return s.cfg.MinSendDelay
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.cfg.MinSendDelay + time.Duration(s.rng.Int64N(int64(span)+1))
}

// InFlight returns the number of resolutions still pending.
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
