package clock

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestNowMSMonotonic(t *testing.T) {
	c := New()
	a := c.NowMS()
	time.Sleep(5 * time.Millisecond)
	b := c.NowMS()
	if b < a {
		t.Fatalf("NowMS went backwards: %d -> %d", a, b)
	}
}

func TestTimerFiresPeriodically(t *testing.T) {
	c := New()
	var n int64
	timer := c.RegisterPeriodic(5, func() { atomic.AddInt64(&n, 1) })

	if timer.IsRunning() {
		t.Fatalf("expected timer to start stopped")
	}

	timer.Start()
	if !timer.IsRunning() {
		t.Fatalf("expected timer to be running after Start")
	}
	time.Sleep(30 * time.Millisecond)
	timer.Stop()
	if timer.IsRunning() {
		t.Fatalf("expected timer to stop")
	}

	fired := atomic.LoadInt64(&n)
	if fired < 2 {
		t.Fatalf("expected timer to fire at least twice in 30ms at 5ms period, got %d", fired)
	}

	// No further firings after Stop.
	time.Sleep(20 * time.Millisecond)
	if got := atomic.LoadInt64(&n); got != fired {
		t.Fatalf("timer fired after Stop: %d -> %d", fired, got)
	}
}

func TestStopIdempotentAndSafeBeforeStart(t *testing.T) {
	c := New()
	timer := c.RegisterPeriodic(10, func() {})
	timer.Stop() // never started
	timer.Start()
	timer.Stop()
	timer.Stop() // already stopped
}
