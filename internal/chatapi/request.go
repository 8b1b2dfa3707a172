package chatapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/samsaffron/seek-chat/internal/llm"
)

var (
	// ErrMessagesRequired means messages was missing, empty or not a list.
	ErrMessagesRequired = errors.New("messages array is required")
	// ErrInvalidRole means a message carried an unknown role.
	ErrInvalidRole = errors.New("invalid message role")
)

// Error strings of the JSON error bodies.
const (
	ErrorInvalidRequest   = "Invalid request"
	ErrorMissingKey       = "DeepSeek API key is not configured"
	ErrorStreaming        = "Streaming error"
	MessageMissingKey     = "Please set the DEEPSEEK_API_KEY environment variable"
	MessageMissingMessage = "Messages array is required"
	MessageStreamFailed   = "Failed to stream response from DeepSeek API"
)

// Message is a chat message as sent by clients. Clients may send more
// fields; they are ignored.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the body of POST /api/chat.
type Request struct {
	Messages []Message `json:"messages"`
}

// ErrorBody is the JSON body of every non-streamed error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// RawRequest holds a decoded body whose messages are not validated yet.
type RawRequest struct {
	RawMessages json.RawMessage `json:"messages"`
}

// DecodeRequest parses a request body. Only JSON syntax is checked; call
// Messages to validate the conversation.
func DecodeRequest(data []byte) (RawRequest, error) {
	var raw RawRequest
	if err := json.Unmarshal(data, &raw); err != nil {
		return RawRequest{}, fmt.Errorf("decode request: %w", err)
	}
	return raw, nil
}

// Messages validates the conversation and converts it for a provider.
func (r RawRequest) Messages() ([]llm.Message, error) {
	raw := bytes.TrimSpace(r.RawMessages)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, ErrMessagesRequired
	}
	var msgs []Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	if len(msgs) == 0 {
		return nil, ErrMessagesRequired
	}
	out := make([]llm.Message, 0, len(msgs))
	for i, m := range msgs {
		role := llm.Role(m.Role)
		if !role.Valid() {
			return nil, fmt.Errorf("message %d: %w %q", i, ErrInvalidRole, m.Role)
		}
		out = append(out, llm.TextMessage(role, m.Content))
	}
	return out, nil
}

// FromLLM converts provider messages to the wire form.
func FromLLM(messages []llm.Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, Message{Role: string(m.Role), Content: m.Text()})
	}
	return out
}
