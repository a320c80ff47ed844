package controller

import (
	"math/rand"
	"time"
)

// BackoffConfig defines retry backoff behavior between delivery attempts.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// WithDefaults fills zero fields with the protocol defaults: 100ms initial
// delay doubling per attempt, capped at 5s, no jitter.
func (c BackoffConfig) WithDefaults() BackoffConfig {
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.Multiplier < 1.0 {
		c.Multiplier = 2.0
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	return c
}

// NextBackoffDelay returns the retry delay for attempt N (1-based): the
// initial delay grown by the multiplier per prior attempt, capped at
// MaxDelay. With Jitter set and a non-nil rng the delay is spread uniformly
// over [delay/2, 3*delay/2).
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	cfg = cfg.WithDefaults()
	delay := cfg.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay >= cfg.MaxDelay {
			delay = cfg.MaxDelay
			break
		}
	}
	if cfg.Jitter && rng != nil {
		delay = delay/2 + time.Duration(rng.Int63n(int64(delay)))
	}
	return delay
}
