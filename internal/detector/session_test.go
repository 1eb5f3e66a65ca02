package detector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/KhubaibAhamed/SentinelAI/internal/ai"
	"github.com/KhubaibAhamed/SentinelAI/internal/moderation"
	"github.com/KhubaibAhamed/SentinelAI/internal/trigger"
)

type fakeClassifier struct {
	mu    sync.Mutex
	calls []string
	// block, when set for a text, holds that call until the channel is closed.
	block   map[string]chan struct{}
	started chan string
	err     error
}

func (f *fakeClassifier) Classify(ctx context.Context, text string) (moderation.ClassificationResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	wait := f.block[text]
	err := f.err
	f.mu.Unlock()

	if f.started != nil {
		f.started <- text
	}
	if wait != nil {
		<-wait
	}
	if err != nil {
		return moderation.ClassificationResult{}, err
	}
	return moderation.ClassificationResult{
		Scores: moderation.ScoreSet{
			moderation.Toxic: 0.9, moderation.SevereToxic: 0.1, moderation.Obscene: 0.1,
			moderation.Threat: 0.1, moderation.Insult: 0.85, moderation.IdentityHate: 0.1,
		},
		Spans:        []moderation.Span{{Start: 10, End: 14, Label: "insult", Text: text[10:14]}},
		ModelVersion: "fake-v1",
		LatencyMs:    12,
		Explanation:  "insult for " + text,
	}, nil
}

func (f *fakeClassifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type stateLog struct {
	mu       sync.Mutex
	states   []State
	outcomes []Outcome
}

func (l *stateLog) change(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *stateLog) outcome(o Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outcomes = append(l.outcomes, o)
}

func newTestSession(t *testing.T, classifier ai.Classifier) (*Session, *trigger.ManualClock, *stateLog) {
	t.Helper()
	clock := trigger.NewManualClock()
	log := &stateLog{}
	session, err := NewSession(context.Background(), Options{
		Classifier: classifier,
		Delay:      time.Second,
		MinLength:  trigger.DefaultMinLength,
		Schedule:   clock.Schedule,
		OnChange:   log.change,
		OnOutcome:  log.outcome,
	})
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	t.Cleanup(session.Close)
	return session, clock, log
}

func TestSessionDebouncedClassification(t *testing.T) {
	classifier := &fakeClassifier{}
	session, clock, log := newTestSession(t, classifier)

	session.Update("you are")
	clock.AdvanceTo(300 * time.Millisecond)
	session.Update("you are a")
	clock.AdvanceTo(900 * time.Millisecond)
	session.Update("you are a fool")
	clock.AdvanceTo(1899 * time.Millisecond)
	if classifier.callCount() != 0 {
		t.Fatalf("expected no call before quiet period")
	}
	clock.AdvanceTo(1900 * time.Millisecond)

	if classifier.callCount() != 1 || classifier.calls[0] != "you are a fool" {
		t.Fatalf("expected one call with last text got %v", classifier.calls)
	}
	state := session.Snapshot()
	if state.Analyzing || state.Error != "" {
		t.Fatalf("unexpected state %+v", state)
	}
	if state.Result == nil || state.Result.Explanation != "insult for you are a fool" {
		t.Fatalf("expected result got %+v", state.Result)
	}
	if state.Action != moderation.ActionBlock {
		t.Fatalf("expected BLOCK got %s", state.Action)
	}
	if len(state.Segments) != 2 || state.Segments[1].Kind != moderation.SegmentHighlight || state.Segments[1].Text != "fool" {
		t.Fatalf("unexpected segments %+v", state.Segments)
	}
	if len(log.states) != 2 || !log.states[0].Analyzing || log.states[1].Analyzing {
		t.Fatalf("expected analyzing then result, got %+v", log.states)
	}
	if len(log.outcomes) != 1 || log.outcomes[0].Superseded || log.outcomes[0].Action != moderation.ActionBlock {
		t.Fatalf("unexpected outcomes %+v", log.outcomes)
	}
}

func TestSessionShortTextIgnored(t *testing.T) {
	classifier := &fakeClassifier{}
	session, clock, log := newTestSession(t, classifier)

	session.Update("hey!!")
	clock.Advance(5 * time.Second)
	if classifier.callCount() != 0 || len(log.states) != 0 {
		t.Fatalf("expected no activity for short text")
	}
}

func TestSessionFailureClearsResult(t *testing.T) {
	classifier := &fakeClassifier{}
	session, clock, log := newTestSession(t, classifier)

	session.Update("you are a fool")
	clock.Advance(time.Second)
	if session.Snapshot().Result == nil {
		t.Fatalf("expected first result")
	}

	classifier.mu.Lock()
	classifier.err = &ai.ClassificationError{Cause: errors.New("boom")}
	classifier.mu.Unlock()
	session.Update("you are a fool again")
	clock.Advance(time.Second)

	state := session.Snapshot()
	if state.Analyzing {
		t.Fatalf("expected analyzing to return to false")
	}
	if state.Error != FailureMessage {
		t.Fatalf("expected failure message got %q", state.Error)
	}
	if state.Result != nil || state.Segments != nil || state.Action != moderation.ActionUnknown {
		t.Fatalf("expected cleared result got %+v", state)
	}
	last := log.outcomes[len(log.outcomes)-1]
	var cerr *ai.ClassificationError
	if !errors.As(last.Err, &cerr) {
		t.Fatalf("expected ClassificationError outcome got %v", last.Err)
	}
}

func TestSessionWrapsForeignErrors(t *testing.T) {
	classifier := &fakeClassifier{err: errors.New("plain")}
	session, clock, log := newTestSession(t, classifier)

	session.Update("you are a fool")
	clock.Advance(time.Second)

	var cerr *ai.ClassificationError
	if len(log.outcomes) != 1 || !errors.As(log.outcomes[0].Err, &cerr) {
		t.Fatalf("expected wrapped error got %+v", log.outcomes)
	}
}

func TestSessionBlankClears(t *testing.T) {
	classifier := &fakeClassifier{}
	session, clock, _ := newTestSession(t, classifier)

	session.Update("you are a fool")
	clock.Advance(time.Second)
	session.Update("   ")

	state := session.Snapshot()
	if state.Result != nil || state.Action != moderation.ActionUnknown || state.Error != "" || state.Analyzing {
		t.Fatalf("expected reset state got %+v", state)
	}
	clock.Advance(5 * time.Second)
	if classifier.callCount() != 1 {
		t.Fatalf("expected no call for blank text")
	}
}

func TestSessionLastRequestWins(t *testing.T) {
	first := "you are a slow typist"
	second := "you are a fool indeed"
	release := make(chan struct{})
	classifier := &fakeClassifier{
		block:   map[string]chan struct{}{first: release},
		started: make(chan string, 2),
	}
	session, clock, log := newTestSession(t, classifier)

	session.Update(first)
	done := make(chan struct{})
	go func() {
		clock.Advance(time.Second)
		close(done)
	}()
	if got := <-classifier.started; got != first {
		t.Fatalf("expected first call got %q", got)
	}

	session.Update(second)
	clock.Advance(time.Second)
	<-classifier.started

	state := session.Snapshot()
	if state.Result == nil || state.Result.Explanation != "insult for "+second {
		t.Fatalf("expected second result got %+v", state.Result)
	}

	close(release)
	<-done

	state = session.Snapshot()
	if state.Result.Explanation != "insult for "+second || state.Analyzing {
		t.Fatalf("late result replaced newer one: %+v", state)
	}
	log.mu.Lock()
	defer log.mu.Unlock()
	superseded := 0
	for _, o := range log.outcomes {
		if o.Superseded {
			superseded++
			if o.Text != first {
				t.Fatalf("unexpected superseded text %q", o.Text)
			}
		}
	}
	if superseded != 1 {
		t.Fatalf("expected one superseded outcome got %d", superseded)
	}
}

func TestSessionCloseDropsResults(t *testing.T) {
	classifier := &fakeClassifier{}
	session, clock, log := newTestSession(t, classifier)

	session.Update("you are a fool")
	session.Close()
	clock.Advance(5 * time.Second)
	session.Update("you are a fool again")
	clock.Advance(5 * time.Second)

	if classifier.callCount() != 0 || len(log.states) != 0 {
		t.Fatalf("expected closed session to stay idle")
	}
}

func TestNewSessionRequiresClassifier(t *testing.T) {
	if _, err := NewSession(context.Background(), Options{}); err == nil {
		t.Fatalf("expected error")
	}
}
