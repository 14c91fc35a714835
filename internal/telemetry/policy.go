package telemetry

import (
	"sync"
	"time"

	"mtmon/internal/config"
)

// Backoff tracks reconnection attempts and the growing retry delay.
// The run loop derives at most one retry timer from it at a time.
type Backoff struct {
	mu       sync.Mutex
	cfg      config.ReconnectConfig
	attempts int
	delay    time.Duration
}

func NewBackoff(cfg config.ReconnectConfig) *Backoff {
	b := &Backoff{cfg: cfg}
	b.resetLocked()

	return b
}

// Next consumes one attempt and returns the delay to wait before it.
// It returns false once the attempt budget is exhausted; no further
// retries may be scheduled until Reset.
func (b *Backoff) Next() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attempts >= b.cfg.MaxAttempts {
		return 0, false
	}
	b.attempts++

	delay := b.delay
	grown := time.Duration(float64(b.delay) * b.cfg.GrowthFactor)
	if cap := time.Duration(b.cfg.MaxDelayMS) * time.Millisecond; grown > cap {
		grown = cap
	}
	b.delay = grown

	return delay, true
}

// Reset restores the initial delay and zeroes the attempt counter.
// Called on every successful connect and on manual connects.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
}

func (b *Backoff) resetLocked() {
	b.attempts = 0
	b.delay = time.Duration(b.cfg.InitialDelayMS) * time.Millisecond
}

func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.attempts
}

// Exhausted reports whether the attempt budget has been used up.
func (b *Backoff) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.attempts >= b.cfg.MaxAttempts
}
