package scheduler

import (
	"fmt"
	"time"
)

// Config tunes the tick loop and the simulated delivery.
type Config struct {
	TickInterval       time.Duration
	MinSendDelay       time.Duration
	MaxSendDelay       time.Duration
	FailureProbability float64
	FailureReason      string
}

// DefaultConfig mirrors the dashboard's queue processor: a 1s tick,
// 400-1200ms of simulated latency and a 10% failure rate.
func DefaultConfig() Config {
	return Config{
		TickInterval:       time.Second,
		MinSendDelay:       400 * time.Millisecond,
		MaxSendDelay:       1200 * time.Millisecond,
		FailureProbability: 0.10,
		FailureReason:      "Rate limit exceeded",
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	}
	if c.MinSendDelay < 0 || c.MaxSendDelay < c.MinSendDelay {
		return fmt.Errorf("send delay bounds [%s, %s] are invalid", c.MinSendDelay, c.MaxSendDelay)
	}
	if c.FailureProbability < 0 || c.FailureProbability > 1 {
		return fmt.Errorf("failure probability %v outside [0, 1]", c.FailureProbability)
	}
	return nil
}
