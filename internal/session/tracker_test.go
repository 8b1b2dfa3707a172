package session

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// fire runs every scheduled timer that has not been stopped.
func (c *fakeClock) fire() {
	c.mu.Lock()
	timers := c.timers
	c.timers = nil
	c.mu.Unlock()
	for _, t := range timers {
		if !t.stopped {
			t.f()
		}
	}
}

func newTestTracker(clock *fakeClock, copied *[]string) *Tracker {
	return NewTracker(TrackerOptions{
		Clipboard: func(text string) error {
			*copied = append(*copied, text)
			return nil
		},
		AfterFunc: clock.AfterFunc,
	})
}

func TestTrackerCopyFlagResets(t *testing.T) {
	clock := &fakeClock{}
	var copied []string
	tr := newTestTracker(clock, &copied)

	if err := tr.Copy("m1", "hello"); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if !tr.Copied("m1") {
		t.Fatal("copied flag should be set immediately")
	}
	if tr.Copied("m2") {
		t.Fatal("other messages must not be affected")
	}
	if len(copied) != 1 || copied[0] != "hello" {
		t.Fatalf("clipboard got %q", copied)
	}
	if len(clock.timers) != 1 || clock.timers[0].d != DefaultCopyReset {
		t.Fatalf("timers = %+v, want one %s timer", clock.timers, DefaultCopyReset)
	}

	clock.fire()
	if tr.Copied("m1") {
		t.Fatal("copied flag should reset after the delay")
	}
}

func TestTrackerRepeatedCopyDoesNotExtendFlag(t *testing.T) {
	clock := &fakeClock{}
	var copied []string
	tr := newTestTracker(clock, &copied)

	for i := 0; i < 2; i++ {
		if err := tr.Copy("m1", "hello"); err != nil {
			t.Fatalf("Copy() error = %v", err)
		}
	}
	if len(clock.timers) != 2 {
		t.Fatalf("timers = %d, want one per copy", len(clock.timers))
	}

	clock.timers[0].f()
	if tr.Copied("m1") {
		t.Fatal("the first reset should clear the flag")
	}

	clock.timers[1].f()
	if tr.Copied("m1") {
		t.Fatal("a later reset must not raise the flag again")
	}
}

func TestTrackerCopyResetWithRealTimer(t *testing.T) {
	var changed sync.WaitGroup
	changed.Add(1)
	tr := NewTracker(TrackerOptions{
		CopyReset: 20 * time.Millisecond,
		Clipboard: func(string) error { return nil },
		OnChange:  func(string) { changed.Done() },
	})
	if err := tr.Copy("m1", "x"); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	changed.Wait()
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Fatalf("flag reset after %s, too early", elapsed)
	}
	if tr.Copied("m1") {
		t.Fatal("copied flag still set")
	}
}

func TestTrackerCopyErrorLeavesFlag(t *testing.T) {
	boom := errors.New("no clipboard")
	tr := NewTracker(TrackerOptions{Clipboard: func(string) error { return boom }})
	if err := tr.Copy("m1", "x"); !errors.Is(err, boom) {
		t.Fatalf("Copy() error = %v, want %v", err, boom)
	}
	if tr.Copied("m1") {
		t.Fatal("failed copy must not set the flag")
	}
}

func TestTrackerFeedbackIsNotAToggle(t *testing.T) {
	tr := NewTracker(TrackerOptions{Clipboard: func(string) error { return nil }})

	if got := tr.Feedback("m1"); got != FeedbackUnset {
		t.Fatalf("initial Feedback() = %v, want unset", got)
	}
	tr.SetFeedback("m1", FeedbackLiked)
	tr.SetFeedback("m1", FeedbackLiked)
	if got := tr.Feedback("m1"); got != FeedbackLiked {
		t.Fatalf("Feedback() after two likes = %v, want liked", got)
	}
	tr.SetFeedback("m1", FeedbackDisliked)
	if got := tr.Feedback("m1"); got != FeedbackDisliked {
		t.Fatalf("Feedback() = %v, want disliked", got)
	}
}

func TestTrackerBoundedLRU(t *testing.T) {
	tr := NewTracker(TrackerOptions{Capacity: 2, Clipboard: func(string) error { return nil }})
	tr.SetFeedback("a", FeedbackLiked)
	tr.SetFeedback("b", FeedbackLiked)
	tr.SetFeedback("a", FeedbackLiked) // a is now most recent
	tr.SetFeedback("c", FeedbackDisliked)

	if tr.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tr.Len())
	}
	if tr.Feedback("b") != FeedbackUnset {
		t.Fatal("b should have been evicted")
	}
	if tr.Feedback("a") != FeedbackLiked || tr.Feedback("c") != FeedbackDisliked {
		t.Fatal("a and c should be kept")
	}
}

func TestTrackerResetStopsTimers(t *testing.T) {
	clock := &fakeClock{}
	var copied []string
	tr := newTestTracker(clock, &copied)

	_ = tr.Copy("m1", "x")
	tr.SetFeedback("m1", FeedbackLiked)
	timer := clock.timers[0]

	tr.Reset()
	if !timer.stopped {
		t.Fatal("Reset() should stop pending timers")
	}
	if tr.Len() != 0 || tr.Copied("m1") || tr.Feedback("m1") != FeedbackUnset {
		t.Fatal("Reset() should clear all state")
	}

	// A stale callback from the old session is ignored.
	_ = tr.Copy("m1", "y")
	timer.f()
	if !tr.Copied("m1") {
		t.Fatal("stale timer cleared a new copy flag")
	}
}
