// Package trigger turns a stream of text edits into debounced classification requests.
package trigger

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	DefaultDelay     = 1000 * time.Millisecond
	DefaultMinLength = 5
	// NoMinLength disables the length guard; any non-blank text fires.
	NoMinLength = -1
)

// Timer is the cancellable handle returned by a Scheduler.
type Timer interface {
	Stop() bool
}

// Scheduler runs fn once after d. time.AfterFunc satisfies it through AfterFunc.
type Scheduler func(d time.Duration, fn func()) Timer

// AfterFunc schedules fn on the runtime timer.
func AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Options configures a Trigger.
type Options struct {
	// Delay is the quiet period after the last edit (default 1s).
	Delay time.Duration
	// MinLength is the guard: text must be strictly longer than this many characters.
	// Zero selects DefaultMinLength; NoMinLength (any negative value) turns it off.
	MinLength int
	// Fire receives the text present when the quiet period elapses.
	Fire func(text string)
	// Clear is called when the text becomes blank.
	Clear func()
	// Schedule overrides the timer source, mostly for tests.
	Schedule Scheduler
}

// Trigger debounces edits: only the last edit of a burst fires.
type Trigger struct {
	delay     time.Duration
	minLength int
	fire      func(string)
	clear     func()
	schedule  Scheduler

	mu      sync.Mutex
	timer   Timer
	pending string
	gen     uint64
	closed  bool
}

// New constructs a Trigger, filling defaults for unset options.
func New(opts Options) *Trigger {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	opts.MinLength = ResolveMinLength(opts.MinLength)
	if opts.Schedule == nil {
		opts.Schedule = AfterFunc
	}
	return &Trigger{
		delay:     opts.Delay,
		minLength: opts.MinLength,
		fire:      opts.Fire,
		clear:     opts.Clear,
		schedule:  opts.Schedule,
	}
}

// ResolveMinLength returns the effective guard for a configured MinLength.
func ResolveMinLength(n int) int {
	switch {
	case n == 0:
		return DefaultMinLength
	case n < 0:
		return 0
	default:
		return n
	}
}

// Update records a new full text. Any pending fire is cancelled; a new one is armed when
// the text passes the length guard. Blank text clears immediately.
func (t *Trigger) Update(text string) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.stopLocked()

	if strings.TrimSpace(text) == "" {
		t.mu.Unlock()
		if t.clear != nil {
			t.clear()
		}
		return
	}

	if utf8.RuneCountInString(text) <= t.minLength {
		t.mu.Unlock()
		return
	}

	t.pending = text
	gen := t.gen
	t.timer = t.schedule(t.delay, func() { t.elapsed(gen) })
	t.mu.Unlock()
}

// Pending reports whether a fire is armed.
func (t *Trigger) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

// Close cancels any pending fire. Later updates are ignored.
func (t *Trigger) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.closed = true
}

// stopLocked cancels the armed timer. Bumping gen makes a callback that already lost the
// Stop race a no-op.
func (t *Trigger) stopLocked() {
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.pending = ""
}

func (t *Trigger) elapsed(gen uint64) {
	t.mu.Lock()
	if t.closed || gen != t.gen {
		t.mu.Unlock()
		return
	}
	text := t.pending
	t.timer = nil
	t.pending = ""
	t.mu.Unlock()

	if t.fire != nil {
		t.fire(text)
	}
}
