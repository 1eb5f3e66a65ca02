package trigger

import (
	"sort"
	"sync"
	"time"
)

// ManualClock is a Scheduler driven by Advance instead of wall time.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	clock   *ManualClock
	at      time.Duration
	seq     int
	fn      func()
	stopped bool
}

// NewManualClock returns a clock starting at zero.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// Schedule implements Scheduler.
func (c *ManualClock) Schedule(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &manualTimer{clock: c, at: c.now + d, seq: c.seq, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Now returns the elapsed virtual time.
func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Pending returns the number of armed timers.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Advance moves time forward by d, running due callbacks in deadline order on the
// calling goroutine.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		sort.SliceStable(c.timers, func(i, j int) bool {
			if c.timers[i].at == c.timers[j].at {
				return c.timers[i].seq < c.timers[j].seq
			}
			return c.timers[i].at < c.timers[j].at
		})
		if len(c.timers) == 0 || c.timers[0].at > target {
			c.now = target
			c.mu.Unlock()
			return
		}
		next := c.timers[0]
		c.timers = c.timers[1:]
		c.now = next.at
		c.mu.Unlock()

		next.fn()
	}
}

// AdvanceTo moves time to the absolute virtual instant at.
func (c *ManualClock) AdvanceTo(at time.Duration) {
	c.Advance(at - c.Now())
}

func (t *manualTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	for i, other := range c.timers {
		if other == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}
