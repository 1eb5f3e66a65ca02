// Package detector holds the interactive state of one live moderation session.
package detector

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/KhubaibAhamed/SentinelAI/internal/ai"
	"github.com/KhubaibAhamed/SentinelAI/internal/moderation"
	"github.com/KhubaibAhamed/SentinelAI/internal/trigger"
)

// FailureMessage is shown when a classification call fails.
const FailureMessage = "Analysis failed. Please try again."

// State is a snapshot of what the detector displays.
type State struct {
	Text      string
	Analyzing bool
	Result    *moderation.ClassificationResult
	Action    moderation.Action
	Segments  []moderation.Segment
	Error     string
	// Seq is the sequence number of the latest issued request.
	Seq uint64
	// Version increases with every visible change.
	Version uint64
}

// Outcome describes one finished classification request.
type Outcome struct {
	Seq        uint64
	Text       string
	Result     moderation.ClassificationResult
	Action     moderation.Action
	Err        error
	Superseded bool
	Duration   time.Duration
}

// Options configures a Session.
type Options struct {
	Classifier ai.Classifier
	Delay      time.Duration
	// MinLength follows trigger.Options.MinLength: zero selects the default guard.
	MinLength  int
	Schedule   trigger.Scheduler
	// OnChange receives every state change in order.
	OnChange func(State)
	// OnOutcome receives every finished request, including superseded ones.
	OnOutcome func(Outcome)
	// OnFire is called when the debounce window elapses.
	OnFire func(text string)
}

// Session owns the debounce trigger and the single current-result slot for one user.
type Session struct {
	classifier ai.Classifier
	onChange   func(State)
	onOutcome  func(Outcome)
	onFire     func(string)
	trigger    *trigger.Trigger
	ctx        context.Context
	cancel     context.CancelFunc

	mu      sync.Mutex
	state   State
	closed  bool
	emitMu  sync.Mutex
	emitted uint64
}

// NewSession builds a Session. Closing ctx or calling Close tears it down.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	if opts.Classifier == nil {
		return nil, errors.New("detector: classifier is required")
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		classifier: opts.Classifier,
		onChange:   opts.OnChange,
		onOutcome:  opts.OnOutcome,
		onFire:     opts.OnFire,
		ctx:        ctx,
		cancel:     cancel,
		state:      State{Action: moderation.ActionUnknown},
	}
	s.trigger = trigger.New(trigger.Options{
		Delay:     opts.Delay,
		MinLength: opts.MinLength,
		Fire:      s.analyze,
		Clear:     s.clear,
		Schedule:  opts.Schedule,
	})
	return s, nil
}

// Update records the full current text of the input.
func (s *Session) Update(text string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state.Text = text
	s.mu.Unlock()
	s.trigger.Update(text)
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Close cancels pending work. Results that arrive afterwards are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.state.Seq++
	s.mu.Unlock()

	s.trigger.Close()
	s.cancel()
}

func (s *Session) clear() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state.Seq++
	s.state.Analyzing = false
	s.state.Result = nil
	s.state.Action = moderation.ActionUnknown
	s.state.Segments = nil
	s.state.Error = ""
	snap := s.changedLocked()
	s.mu.Unlock()
	s.emit(snap)
}

func (s *Session) analyze(text string) {
	if s.onFire != nil {
		s.onFire(text)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state.Seq++
	seq := s.state.Seq
	s.state.Analyzing = true
	s.state.Error = ""
	snap := s.changedLocked()
	s.mu.Unlock()
	s.emit(snap)

	start := time.Now()
	result, err := s.classifier.Classify(s.ctx, text)
	outcome := Outcome{Seq: seq, Text: text, Err: err, Duration: time.Since(start), Action: moderation.ActionUnknown}
	if err == nil {
		outcome.Result = result.Clone()
		outcome.Action = moderation.Decide(result.Scores)
	}

	s.mu.Lock()
	if s.closed || seq != s.state.Seq {
		s.mu.Unlock()
		outcome.Superseded = true
		logrus.WithFields(logrus.Fields{"seq": seq}).Debug("dropping superseded classification")
		s.report(outcome)
		return
	}
	s.state.Analyzing = false
	if err != nil {
		var cerr *ai.ClassificationError
		if !errors.As(err, &cerr) {
			outcome.Err = &ai.ClassificationError{Cause: err}
		}
		s.state.Result = nil
		s.state.Action = moderation.ActionUnknown
		s.state.Segments = nil
		s.state.Error = FailureMessage
		logrus.WithError(err).WithField("seq", seq).Warn("classification failed")
	} else {
		applied := outcome.Result.Clone()
		s.state.Result = &applied
		s.state.Action = outcome.Action
		s.state.Segments = moderation.Render(text, applied.Spans)
		s.state.Error = ""
	}
	snap = s.changedLocked()
	s.mu.Unlock()

	s.emit(snap)
	s.report(outcome)
}

func (s *Session) changedLocked() State {
	s.state.Version++
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() State {
	out := s.state
	if s.state.Result != nil {
		result := s.state.Result.Clone()
		out.Result = &result
	}
	if s.state.Segments != nil {
		out.Segments = append([]moderation.Segment(nil), s.state.Segments...)
	}
	return out
}

// emit delivers state changes in version order; a snapshot older than one already sent
// is skipped.
func (s *Session) emit(state State) {
	if s.onChange == nil {
		return
	}
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if state.Version <= s.emitted {
		return
	}
	s.emitted = state.Version
	s.onChange(state)
}

func (s *Session) report(outcome Outcome) {
	if s.onOutcome != nil {
		s.onOutcome(outcome)
	}
}
