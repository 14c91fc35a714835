package telemetry

import (
	"testing"
	"time"

	"mtmon/internal/config"
)

func testReconnectConfig() config.ReconnectConfig {
	return config.ReconnectConfig{
		InitialDelayMS: 5000,
		GrowthFactor:   1.5,
		MaxDelayMS:     30000,
		MaxAttempts:    5,
	}
}

func TestBackoffDelaySequence(t *testing.T) {
	b := NewBackoff(testReconnectConfig())

	want := []time.Duration{
		5000 * time.Millisecond,
		7500 * time.Millisecond,
		11250 * time.Millisecond,
		16875 * time.Millisecond,
		time.Duration(25312.5 * float64(time.Millisecond)),
	}

	for i, expected := range want {
		delay, ok := b.Next()
		if !ok {
			t.Fatalf("attempt %d: expected a retry, got exhausted", i+1)
		}
		if delay != expected {
			t.Fatalf("attempt %d: delay = %v, want %v", i+1, delay, expected)
		}
	}

	if _, ok := b.Next(); ok {
		t.Fatal("expected exhaustion after max attempts")
	}
	if !b.Exhausted() {
		t.Fatal("Exhausted() = false after budget was spent")
	}
}

func TestBackoffDelayCapped(t *testing.T) {
	cfg := testReconnectConfig()
	cfg.MaxAttempts = 20
	b := NewBackoff(cfg)

	cap := time.Duration(cfg.MaxDelayMS) * time.Millisecond
	var last time.Duration
	for i := 0; i < cfg.MaxAttempts; i++ {
		delay, ok := b.Next()
		if !ok {
			t.Fatalf("attempt %d: unexpected exhaustion", i+1)
		}
		if delay > cap {
			t.Fatalf("attempt %d: delay %v exceeds cap %v", i+1, delay, cap)
		}
		last = delay
	}
	if last != cap {
		t.Fatalf("final delay = %v, want cap %v", last, cap)
	}
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoff(testReconnectConfig())

	for {
		if _, ok := b.Next(); !ok {
			break
		}
	}
	if b.Attempts() != 5 {
		t.Fatalf("Attempts() = %d, want 5", b.Attempts())
	}

	b.Reset()

	if b.Attempts() != 0 {
		t.Fatalf("Attempts() after reset = %d, want 0", b.Attempts())
	}
	delay, ok := b.Next()
	if !ok {
		t.Fatal("expected a retry after reset")
	}
	if delay != 5000*time.Millisecond {
		t.Fatalf("delay after reset = %v, want 5s", delay)
	}
}
