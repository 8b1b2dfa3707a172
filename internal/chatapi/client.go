package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/samsaffron/seek-chat/internal/llm"
)

// ErrStatus wraps every non-200 answer from the chat endpoint.
var ErrStatus = errors.New("unexpected response status")

// StatusError carries the decoded error body of a failed request.
type StatusError struct {
	StatusCode int
	Body       ErrorBody
}

func (e *StatusError) Error() string {
	msg := e.Body.Error
	if e.Body.Message != "" {
		msg += ": " + e.Body.Message
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("chat api: %d %s", e.StatusCode, msg)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// Client talks to a running chat server.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a client for the server at baseURL, for example
// "http://127.0.0.1:8080".
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTPClient: http.DefaultClient}
}

// Send posts the conversation and returns the streamed answer.
func (c *Client) Send(ctx context.Context, messages []llm.Message) (llm.Stream, error) {
	body, err := json.Marshal(Request{Messages: FromLLM(messages)})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat api: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		serr := &StatusError{StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(data, &serr.Body)
		return nil, serr
	}
	return &clientStream{body: resp.Body, dec: NewDecoder(resp.Body)}, nil
}

type clientStream struct {
	body    io.ReadCloser
	dec     *Decoder
	pending []llm.Event
	done    bool
}

func (s *clientStream) Recv() (llm.Event, error) {
	if len(s.pending) > 0 {
		ev := s.pending[0]
		s.pending = s.pending[1:]
		return ev, nil
	}
	if s.done {
		return llm.Event{}, io.EOF
	}
	for {
		p, err := s.dec.Next()
		if err == io.EOF {
			return llm.Event{}, fmt.Errorf("chat api: stream ended without finish: %w", io.ErrUnexpectedEOF)
		}
		if err != nil {
			return llm.Event{}, fmt.Errorf("chat api: %w", err)
		}
		switch p.Type {
		case PartText:
			if p.Text == "" {
				continue
			}
			return llm.Event{Type: llm.EventTextDelta, Text: p.Text}, nil
		case PartError:
			return llm.Event{}, fmt.Errorf("chat api: %s", p.Text)
		case PartFinish:
			s.done = true
			if p.Finish.Usage != nil {
				use := llm.Usage{
					InputTokens:  p.Finish.Usage.PromptTokens,
					OutputTokens: p.Finish.Usage.CompletionTokens,
				}
				s.pending = append(s.pending, llm.Event{Type: llm.EventDone})
				return llm.Event{Type: llm.EventUsage, Use: &use}, nil
			}
			return llm.Event{Type: llm.EventDone}, nil
		}
	}
}

func (s *clientStream) Close() error {
	return s.body.Close()
}
