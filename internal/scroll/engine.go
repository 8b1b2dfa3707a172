// Package scroll decides when a chat transcript should follow new content
// and when the reader has taken over the scroll position.
//
// The rules are kept in a pure Decide function so they can be tested without
// a terminal. Engine wraps Decide with the little bit of state a live view
// needs: the last observed offset and the in-flight programmatic scroll.
package scroll

import "time"

const (
	// DefaultBottomThreshold is how close to the bottom counts as "at the
	// bottom".
	DefaultBottomThreshold = 8
	// DefaultTargetTolerance is how close a programmatic scroll must land to
	// its target before it counts as finished.
	DefaultTargetTolerance = 5
	// DefaultGuardTimeout clears an in-flight scroll that never reported
	// completion.
	DefaultGuardTimeout = 500 * time.Millisecond
)

// Viewport is a snapshot of the scroll geometry. Units are whatever the
// view measures in: pixels in a browser, lines in a terminal.
type Viewport struct {
	Offset        int
	Height        int
	ContentHeight int
}

// MaxOffset is the offset at which the last line of content is visible.
func (v Viewport) MaxOffset() int {
	if n := v.ContentHeight - v.Height; n > 0 {
		return n
	}
	return 0
}

// DistanceToBottom is the amount of content below the visible area.
func (v Viewport) DistanceToBottom() int {
	return v.ContentHeight - v.Offset - v.Height
}

// AtBottom reports whether the viewport is within threshold of the bottom.
func (v Viewport) AtBottom(threshold int) bool {
	return v.DistanceToBottom() <= threshold
}

// Behavior says how a scroll should be performed.
type Behavior int

const (
	None Behavior = iota
	Instant
	Smooth
)

func (b Behavior) String() string {
	switch b {
	case Instant:
		return "instant"
	case Smooth:
		return "smooth"
	default:
		return "none"
	}
}

// Gesture is an explicit user input that expresses intent independent of
// the resulting offset.
type Gesture int

const (
	GestureNone Gesture = iota
	GestureWheelUp
	GestureDragUp
)

// Change describes content growth since the last observation.
type Change struct {
	Delta      int
	NewMessage bool
}

// State is the follow state carried between events.
type State struct {
	Enabled  bool
	InFlight bool
}

// Decision is the outcome of one event.
type Decision struct {
	Enabled bool
	Scroll  Behavior
	Target  int
}

// Decide applies the follow rules to one observation. prev is the offset
// seen on the previous user scroll event, cur the current geometry.
func Decide(s State, prev int, cur Viewport, change Change, g Gesture, threshold int) Decision {
	d := Decision{Enabled: s.Enabled}

	switch g {
	case GestureWheelUp, GestureDragUp:
		d.Enabled = false
		return d
	}

	if s.InFlight {
		return d
	}

	switch {
	case cur.Offset < prev:
		if d.Enabled {
			d.Enabled = false
		}
	case !d.Enabled && cur.AtBottom(threshold):
		d.Enabled = true
	}

	if change.Delta > 0 && d.Enabled {
		d.Scroll = Instant
		if change.NewMessage {
			d.Scroll = Smooth
		}
		d.Target = cur.MaxOffset()
	}
	return d
}

// Options configures an Engine. Zero values use the defaults.
type Options struct {
	BottomThreshold int
	TargetTolerance int
	GuardTimeout    time.Duration
	Now             func() time.Time
}

// Command is a scroll the view should perform.
type Command struct {
	Behavior Behavior
	Target   int
}

// Engine tracks follow state across events for a single transcript.
type Engine struct {
	threshold int
	tolerance int
	timeout   time.Duration
	now       func() time.Time

	enabled    bool
	inFlight   bool
	target     int
	started    time.Time
	lastOffset int
}

// New returns an engine that starts out following the bottom.
func New(opts Options) *Engine {
	e := &Engine{
		threshold: opts.BottomThreshold,
		tolerance: opts.TargetTolerance,
		timeout:   opts.GuardTimeout,
		now:       opts.Now,
		enabled:   true,
	}
	if e.threshold <= 0 {
		e.threshold = DefaultBottomThreshold
	}
	if e.tolerance <= 0 {
		e.tolerance = DefaultTargetTolerance
	}
	if e.timeout <= 0 {
		e.timeout = DefaultGuardTimeout
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Enabled reports whether new content will pull the view to the bottom.
func (e *Engine) Enabled() bool { return e.enabled }

// InFlight reports whether a programmatic scroll is still settling.
func (e *Engine) InFlight() bool { return e.inFlight }

func (e *Engine) state() State {
	return State{Enabled: e.enabled, InFlight: e.inFlight}
}

// Scroll observes a scroll event. While a programmatic scroll is in flight
// the event only serves to detect that it reached its target.
func (e *Engine) Scroll(v Viewport) {
	if e.inFlight {
		if abs(v.Offset-e.target) < e.tolerance {
			e.settle(v.Offset)
		}
		return
	}
	d := Decide(e.state(), e.lastOffset, v, Change{}, GestureNone, e.threshold)
	e.enabled = d.Enabled
	e.lastOffset = v.Offset
}

// Wheel observes a mouse wheel event. Negative deltaY scrolls up.
func (e *Engine) Wheel(deltaY int) {
	if deltaY >= 0 {
		return
	}
	d := Decide(e.state(), e.lastOffset, Viewport{}, Change{}, GestureWheelUp, e.threshold)
	e.enabled = d.Enabled
}

// TouchStart records where a drag began.
func (e *Engine) TouchStart(v Viewport) {
	e.lastOffset = v.Offset
}

// TouchMove disables following as soon as a drag moves the content down.
func (e *Engine) TouchMove(v Viewport) {
	if v.Offset < e.lastOffset {
		d := Decide(e.state(), e.lastOffset, v, Change{}, GestureDragUp, e.threshold)
		e.enabled = d.Enabled
	}
	e.lastOffset = v.Offset
}

// TouchEnd re-enables following when the drag finished at the bottom.
func (e *Engine) TouchEnd(v Viewport) {
	if !e.enabled && v.AtBottom(e.threshold) {
		e.enabled = true
	}
	e.lastOffset = v.Offset
}

// Mutation observes content growth and returns the scroll to perform, if
// any. A returned scroll is in flight until Scroll sees it land, ScrollEnd
// is called or Expire passes the guard timeout.
func (e *Engine) Mutation(v Viewport, change Change) Command {
	d := Decide(e.state(), v.Offset, v, change, GestureNone, e.threshold)
	e.enabled = d.Enabled
	if d.Scroll == None {
		return Command{}
	}
	e.inFlight = true
	e.target = d.Target
	e.started = e.now()
	return Command{Behavior: d.Scroll, Target: d.Target}
}

// ScrollEnd marks the in-flight scroll as finished.
func (e *Engine) ScrollEnd(v Viewport) {
	if e.inFlight {
		e.settle(v.Offset)
	}
}

// Expire clears an in-flight scroll older than the guard timeout. It
// reports whether anything was cleared.
func (e *Engine) Expire(now time.Time) bool {
	if !e.inFlight || now.Sub(e.started) < e.timeout {
		return false
	}
	e.settle(e.target)
	return true
}

// Follow turns following back on, as when the reader sends a message.
func (e *Engine) Follow() {
	e.enabled = true
}

// settle ends an in-flight scroll. The offset it landed on becomes the
// baseline for detecting the next upward scroll.
func (e *Engine) settle(offset int) {
	e.inFlight = false
	e.lastOffset = offset
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
