// Package turn runs one assistant response at a time against a Sender and
// records it in a session store.
package turn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samsaffron/seek-chat/internal/llm"
	"github.com/samsaffron/seek-chat/internal/session"
)

// DefaultStallTimeout is how long a turn may go without new content before
// it is reported as stalled.
const DefaultStallTimeout = 30 * time.Second

var (
	// ErrBusy is returned when a turn is already in progress.
	ErrBusy = errors.New("a response is already in progress")
	// ErrNothingToRetry is returned by Retry when there is no live or
	// failed turn.
	ErrNothingToRetry = errors.New("nothing to retry")
	// ErrEmptyPrompt is returned by Send for blank input.
	ErrEmptyPrompt = errors.New("empty prompt")
)

// State is the lifecycle of one turn.
type State int

const (
	Idle State = iota
	Sending
	Streaming
	Done
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sending:
		return "sending"
	case Streaming:
		return "streaming"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Active reports whether a request is in flight.
func (s State) Active() bool {
	return s == Sending || s == Streaming
}

// Update is a snapshot of the current turn.
type Update struct {
	Turn      uint64
	State     State
	MessageID string
	Content   string
	Stalled   bool
	Err       error
	Usage     *llm.Usage
}

// Options configures a Controller.
type Options struct {
	StallTimeout time.Duration
	AfterFunc    func(time.Duration, func()) session.Timer
	Logger       *slog.Logger
}

// Controller owns the turn state machine. Only one turn runs at a time.
// Updates are coalesced: the channel always holds the newest snapshot.
type Controller struct {
	store     *session.Store
	sender    Sender
	stall     time.Duration
	afterFunc func(time.Duration, func()) session.Timer
	log       *slog.Logger
	updates   chan Update

	mu      sync.Mutex
	turn    uint64
	state   State
	stalled bool
	msgID   string
	history []llm.Message
	cancel  context.CancelFunc
	timer   session.Timer
	err     error
	usage   *llm.Usage
}

// NewController creates a controller writing into store.
func NewController(store *session.Store, sender Sender, opts Options) *Controller {
	if opts.StallTimeout <= 0 {
		opts.StallTimeout = DefaultStallTimeout
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) session.Timer { return time.AfterFunc(d, f) }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		store:     store,
		sender:    sender,
		stall:     opts.StallTimeout,
		afterFunc: opts.AfterFunc,
		log:       opts.Logger,
		updates:   make(chan Update, 1),
	}
}

// Updates delivers turn snapshots.
func (c *Controller) Updates() <-chan Update {
	return c.updates
}

// Snapshot returns the current turn state.
func (c *Controller) Snapshot() Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Update {
	u := Update{
		Turn:      c.turn,
		State:     c.state,
		MessageID: c.msgID,
		Stalled:   c.stalled,
		Err:       c.err,
		Usage:     c.usage,
	}
	if c.msgID != "" {
		if m, ok := c.store.Get(c.msgID); ok {
			u.Content = m.Content
		}
	}
	return u
}

// publishLocked replaces any unread snapshot with the current one.
func (c *Controller) publishLocked() {
	u := c.snapshotLocked()
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- u:
	default:
	}
}

// Send appends a user message and starts a response to it.
func (c *Controller) Send(ctx context.Context, text string) (session.Message, error) {
	if strings.TrimSpace(text) == "" {
		return session.Message{}, ErrEmptyPrompt
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Active() {
		return session.Message{}, ErrBusy
	}
	// A failed turn keeps its partial answer open for Retry. Moving on
	// closes it.
	if c.msgID != "" {
		_ = c.store.Finalize(c.msgID)
	}
	m := c.store.Append(llm.RoleUser, text, true)
	c.startLocked(ctx, c.store.History())
	return m, nil
}

// Retry abandons the current or failed turn, drops its partial answer and
// asks again with the same history.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Active() && c.state != Failed {
		return ErrNothingToRetry
	}
	c.stopLocked()
	if c.msgID != "" {
		if err := c.store.DropTail(c.msgID); err != nil {
			return fmt.Errorf("retry: %w", err)
		}
	}
	c.log.Debug("retrying turn", "turn", c.turn)
	c.startLocked(ctx, c.history)
	return nil
}

// Cancel stops the in-flight request. Content received so far is kept and
// finalized. It reports whether anything was cancelled.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Active() {
		return false
	}
	c.stopLocked()
	if c.msgID != "" {
		_ = c.store.Finalize(c.msgID)
	}
	c.state = Cancelled
	c.stalled = false
	c.publishLocked()
	return true
}

// Reset cancels any turn and returns to Idle. The store is left alone.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.turn++
	c.state = Idle
	c.stalled = false
	c.msgID = ""
	c.history = nil
	c.err = nil
	c.usage = nil
	c.publishLocked()
}

func (c *Controller) startLocked(parent context.Context, history []llm.Message) {
	ctx, cancel := context.WithCancel(parent)
	c.turn++
	c.state = Sending
	c.stalled = false
	c.msgID = ""
	c.history = history
	c.cancel = cancel
	c.err = nil
	c.usage = nil
	c.armLocked()
	c.publishLocked()

	go c.run(ctx, c.turn, history)
}

// stopLocked cancels the request and stall timer of the current turn.
// Callbacks still running for it see a stale turn number and do nothing.
func (c *Controller) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.turn++
}

func (c *Controller) armLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	turn := c.turn
	c.timer = c.afterFunc(c.stall, func() { c.onStall(turn) })
}

func (c *Controller) onStall(turn uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if turn != c.turn || !c.state.Active() {
		return
	}
	c.log.Debug("turn stalled", "turn", turn, "state", c.state.String())
	c.stalled = true
	c.publishLocked()
}

func (c *Controller) run(ctx context.Context, turn uint64, history []llm.Message) {
	stream, err := c.sender.Send(ctx, history)
	if err != nil {
		c.finish(turn, err)
		return
	}
	defer stream.Close()

	for {
		ev, err := stream.Recv()
		if err == io.EOF {
			c.finish(turn, nil)
			return
		}
		if err != nil {
			c.finish(turn, err)
			return
		}
		switch ev.Type {
		case llm.EventTextDelta:
			if !c.delta(turn, ev.Text) {
				return
			}
		case llm.EventUsage:
			c.setUsage(turn, ev.Use)
		case llm.EventDone:
			c.finish(turn, nil)
			return
		}
	}
}

// delta records new content. It returns false once the turn is stale.
func (c *Controller) delta(turn uint64, text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if turn != c.turn {
		return false
	}
	if text == "" {
		return true
	}
	if c.msgID == "" {
		m := c.store.Append(llm.RoleAssistant, text, false)
		c.msgID = m.ID
	} else if err := c.store.AppendTail(c.msgID, text); err != nil {
		c.log.Warn("dropping streamed text", "message", c.msgID, "error", err)
		return true
	}
	c.state = Streaming
	c.stalled = false
	c.armLocked()
	c.publishLocked()
	return true
}

func (c *Controller) setUsage(turn uint64, use *llm.Usage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if turn == c.turn && use != nil {
		u := *use
		c.usage = &u
	}
}

func (c *Controller) finish(turn uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if turn != c.turn {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.stalled = false
	if err != nil {
		c.log.Warn("turn failed", "turn", turn, "error", err)
		c.state = Failed
		c.err = err
	} else {
		if c.msgID != "" {
			_ = c.store.Finalize(c.msgID)
		}
		c.state = Done
	}
	c.publishLocked()
}
