package turn

import (
	"context"

	"github.com/samsaffron/seek-chat/internal/llm"
)

// Default sampling temperatures. Math questions get a colder setting so
// arithmetic answers stay deterministic.
const (
	DefaultTemperature     = 0.3
	DefaultMathTemperature = 0.1
)

// Sender starts a model response for a conversation.
type Sender interface {
	Send(ctx context.Context, messages []llm.Message) (llm.Stream, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, messages []llm.Message) (llm.Stream, error)

func (f SenderFunc) Send(ctx context.Context, messages []llm.Message) (llm.Stream, error) {
	return f(ctx, messages)
}

// ProviderSender talks to a provider directly.
type ProviderSender struct {
	Provider llm.Provider
	Model    string

	Temperature     float64
	MathTemperature float64
	// MathDetection switches to MathTemperature when the last user message
	// looks like a calculation.
	MathDetection bool
	// SystemPrompt is prepended when the conversation has no system
	// message. Empty disables it.
	SystemPrompt    string
	MaxOutputTokens int
}

// NewProviderSender returns a sender with the default temperatures and
// math detection on.
func NewProviderSender(p llm.Provider) *ProviderSender {
	return &ProviderSender{
		Provider:        p,
		Temperature:     DefaultTemperature,
		MathTemperature: DefaultMathTemperature,
		MathDetection:   true,
	}
}

// Request builds the provider request for messages.
func (s *ProviderSender) Request(messages []llm.Message) llm.Request {
	temp := s.Temperature
	if s.MathDetection && llm.IsMathTurn(messages) {
		temp = s.MathTemperature
	}
	return llm.Request{
		Model:           s.Model,
		Messages:        llm.WithSystemInstruction(messages, s.SystemPrompt),
		MaxOutputTokens: s.MaxOutputTokens,
		Temperature:     temp,
	}
}

func (s *ProviderSender) Send(ctx context.Context, messages []llm.Message) (llm.Stream, error) {
	return s.Provider.Stream(ctx, s.Request(messages))
}
