package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockTurn is one scripted response of a MockProvider.
type MockTurn struct {
	Text string
	// Delay is waited before the first chunk, honoring cancellation.
	Delay time.Duration
	// ChunkDelay is waited between chunks.
	ChunkDelay time.Duration
	// Err fails the turn. With Text set, the error follows the text.
	Err error
	// StreamErr is returned from Stream itself.
	StreamErr error
	Usage     Usage
}

// MockProvider replays scripted turns. It records every request and is safe
// for concurrent use.
type MockProvider struct {
	name      string
	chunkSize int

	mu       sync.Mutex
	turns    []MockTurn
	current  int
	Requests []Request
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{name: name, chunkSize: 4}
}

// WithChunkSize sets how many runes each text delta carries.
func (p *MockProvider) WithChunkSize(n int) *MockProvider {
	if n > 0 {
		p.chunkSize = n
	}
	return p
}

func (p *MockProvider) AddTextResponse(text string) *MockProvider {
	return p.AddTurn(MockTurn{Text: text})
}

func (p *MockProvider) AddError(err error) *MockProvider {
	return p.AddTurn(MockTurn{StreamErr: err})
}

func (p *MockProvider) AddTurn(turn MockTurn) *MockProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.turns = append(p.turns, turn)
	return p
}

func (p *MockProvider) Name() string {
	return p.name
}

func (p *MockProvider) Credential() string {
	return "mock"
}

// CurrentTurn returns how many turns have been consumed.
func (p *MockProvider) CurrentTurn() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// LastRequest returns the most recent request.
func (p *MockProvider) LastRequest() (Request, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Requests) == 0 {
		return Request{}, false
	}
	return p.Requests[len(p.Requests)-1], true
}

// Reset forgets recorded requests and rewinds the script.
func (p *MockProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = 0
	p.Requests = nil
}

func (p *MockProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	p.mu.Lock()
	p.Requests = append(p.Requests, req)
	if p.current >= len(p.turns) {
		p.mu.Unlock()
		return nil, fmt.Errorf("mock provider %s: no scripted turn %d", p.name, p.current+1)
	}
	turn := p.turns[p.current]
	p.current++
	p.mu.Unlock()

	if turn.StreamErr != nil {
		return nil, turn.StreamErr
	}

	chunks := chunkText(turn.Text, p.chunkSize)
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		if err := sleepCtx(ctx, turn.Delay); err != nil {
			return err
		}
		for i, chunk := range chunks {
			if i > 0 {
				if err := sleepCtx(ctx, turn.ChunkDelay); err != nil {
					return err
				}
			}
			if err := send(ctx, events, Event{Type: EventTextDelta, Text: chunk}); err != nil {
				return err
			}
		}
		if turn.Err != nil {
			return turn.Err
		}
		use := turn.Usage
		if use == (Usage{}) {
			use = Usage{InputTokens: len(req.Messages), OutputTokens: len(chunks)}
		}
		if err := send(ctx, events, Event{Type: EventUsage, Use: &use}); err != nil {
			return err
		}
		return send(ctx, events, Event{Type: EventDone})
	}), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// chunkText splits text into pieces of at most size runes.
func chunkText(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}
	runes := []rune(text)
	chunks := make([]string, 0, len(runes)/size+1)
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
