package llm

import (
	"context"
	"io"
	"sync"
)

// eventStream adapts a producer function to the Stream interface. The
// producer runs in its own goroutine and sends events until it returns; its
// error, if any, is reported by Recv after the buffered events.
type eventStream struct {
	cancel    context.CancelFunc
	events    chan Event
	err       error
	closeOnce sync.Once
}

func newEventStream(ctx context.Context, run func(ctx context.Context, events chan<- Event) error) *eventStream {
	ctx, cancel := context.WithCancel(ctx)
	s := &eventStream{
		cancel: cancel,
		events: make(chan Event, 16),
	}
	go func() {
		s.err = run(ctx, s.events)
		close(s.events)
	}()
	return s
}

func (s *eventStream) Recv() (Event, error) {
	ev, ok := <-s.events
	if !ok {
		if s.err != nil {
			return Event{}, s.err
		}
		return Event{}, io.EOF
	}
	if ev.Type == EventError && ev.Err != nil {
		return Event{}, ev.Err
	}
	return ev, nil
}

// Close cancels the producer and discards anything it still sends.
func (s *eventStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		go func() {
			for range s.events {
			}
		}()
	})
	return nil
}

// send delivers ev unless ctx is done first.
func send(ctx context.Context, events chan<- Event, ev Event) error {
	select {
	case events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
