package session

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/samsaffron/seek-chat/internal/clipboard"
)

const (
	DefaultTrackerCapacity = 1024
	DefaultCopyReset       = 2 * time.Second
)

// Timer is the part of *time.Timer the tracker needs.
type Timer interface {
	Stop() bool
}

// TrackerOptions configures a Tracker. Zero values pick the defaults.
type TrackerOptions struct {
	Capacity  int
	CopyReset time.Duration
	// Clipboard writes text to the system clipboard.
	Clipboard func(string) error
	// AfterFunc schedules the copy-flag reset.
	AfterFunc func(time.Duration, func()) Timer
	// OnChange is called after a copy flag resets on its own.
	OnChange func(id string)
}

// Tracker holds ephemeral per-message UI state: feedback and the "copied"
// flag. It is bounded by an LRU and scoped to one session.
type Tracker struct {
	mu        sync.Mutex
	capacity  int
	copyReset time.Duration
	clipboard func(string) error
	afterFunc func(time.Duration, func()) Timer
	onChange  func(string)

	items   map[string]*list.Element
	lruList *list.List
	gen     uint64
}

type trackerEntry struct {
	id       string
	feedback Feedback
	copied   bool
	timers   []Timer
}

// NewTracker creates a tracker.
func NewTracker(opts TrackerOptions) *Tracker {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultTrackerCapacity
	}
	if opts.CopyReset <= 0 {
		opts.CopyReset = DefaultCopyReset
	}
	if opts.Clipboard == nil {
		opts.Clipboard = clipboard.CopyText
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	return &Tracker{
		capacity:  opts.Capacity,
		copyReset: opts.CopyReset,
		clipboard: opts.Clipboard,
		afterFunc: opts.AfterFunc,
		onChange:  opts.OnChange,
		items:     make(map[string]*list.Element),
		lruList:   list.New(),
	}
}

// entry returns the entry for id, creating it if needed.
// Must be called with t.mu held.
func (t *Tracker) entry(id string) *trackerEntry {
	if elem, ok := t.items[id]; ok {
		t.lruList.MoveToFront(elem)
		return elem.Value.(*trackerEntry)
	}
	if t.lruList.Len() >= t.capacity {
		if oldest := t.lruList.Back(); oldest != nil {
			e := oldest.Value.(*trackerEntry)
			stopAll(e.timers)
			delete(t.items, e.id)
			t.lruList.Remove(oldest)
		}
	}
	e := &trackerEntry{id: id}
	t.items[id] = t.lruList.PushFront(e)
	return e
}

func (t *Tracker) lookup(id string) *trackerEntry {
	if elem, ok := t.items[id]; ok {
		return elem.Value.(*trackerEntry)
	}
	return nil
}

// Copy writes text to the clipboard and raises the copied flag for id. Each
// copy schedules its own reset, so the flag drops one reset delay after the
// earliest copy still pending; a repeated copy does not extend it.
func (t *Tracker) Copy(id, text string) error {
	if err := t.clipboard(text); err != nil {
		return fmt.Errorf("copy message %s: %w", id, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entry(id)
	e.copied = true
	gen := t.gen
	e.timers = append(e.timers, t.afterFunc(t.copyReset, func() {
		t.expireCopy(id, gen)
	}))
	return nil
}

func (t *Tracker) expireCopy(id string, gen uint64) {
	t.mu.Lock()
	e := t.lookup(id)
	if e == nil || gen != t.gen {
		t.mu.Unlock()
		return
	}
	if len(e.timers) > 0 {
		e.timers = e.timers[1:]
	}
	if !e.copied {
		t.mu.Unlock()
		return
	}
	e.copied = false
	onChange := t.onChange
	t.mu.Unlock()

	if onChange != nil {
		onChange(id)
	}
}

// Copied reports the copied flag for id.
func (t *Tracker) Copied(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e := t.lookup(id); e != nil {
		return e.copied
	}
	return false
}

// SetFeedback records f for id. Setting the same value twice keeps it; this
// is a last-write-wins flag, not a toggle.
func (t *Tracker) SetFeedback(id string, f Feedback) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(id).feedback = f
}

// Feedback returns the feedback for id.
func (t *Tracker) Feedback(id string) Feedback {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e := t.lookup(id); e != nil {
		return e.feedback
	}
	return FeedbackUnset
}

// Len reports how many messages have state.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// Reset clears all state and stops pending timers.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, elem := range t.items {
		stopAll(elem.Value.(*trackerEntry).timers)
	}
	t.items = make(map[string]*list.Element)
	t.lruList.Init()
	t.gen++
}

func stopAll(timers []Timer) {
	for _, tm := range timers {
		tm.Stop()
	}
}
