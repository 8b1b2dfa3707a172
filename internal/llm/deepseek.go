package llm

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultDeepSeekBaseURL = "https://api.deepseek.com/v1"
	DefaultDeepSeekModel   = "deepseek-chat"
	DefaultRequestTimeout  = 30 * time.Second
)

// DeepSeekConfig configures a DeepSeekProvider.
type DeepSeekConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// Timeout bounds the wait for the first response from the API. Once
	// tokens are flowing the stream is only bound by the caller's context.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// DeepSeekProvider streams chat completions from DeepSeek's
// OpenAI-compatible endpoint. It is built once and shared by all requests.
type DeepSeekProvider struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

func NewDeepSeekProvider(cfg DeepSeekConfig) *DeepSeekProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultDeepSeekBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultDeepSeekModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		// Retries are always user initiated.
		option.WithMaxRetries(0),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return &DeepSeekProvider{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
}

func (p *DeepSeekProvider) Name() string {
	return fmt.Sprintf("DeepSeek (%s)", p.model)
}

func (p *DeepSeekProvider) Credential() string {
	return "api_key"
}

func (p *DeepSeekProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("no messages provided")
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(chooseModel(req.Model, p.model)),
		Messages: buildDeepSeekMessages(req.Messages),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxOutputTokens))
	}

	return newEventStream(ctx, func(parent context.Context, events chan<- Event) error {
		ctx, cancel := context.WithCancel(parent)
		defer cancel()
		var timedOut atomic.Bool
		timer := time.AfterFunc(p.timeout, func() {
			timedOut.Store(true)
			cancel()
		})
		defer timer.Stop()

		stream := p.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		var usage *Usage
		for stream.Next() {
			timer.Stop()
			chunk := stream.Current()
			if chunk.Usage.TotalTokens > 0 {
				usage = &Usage{
					InputTokens:  int(chunk.Usage.PromptTokens),
					OutputTokens: int(chunk.Usage.CompletionTokens),
				}
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if err := send(ctx, events, Event{Type: EventTextDelta, Text: choice.Delta.Content}); err != nil {
					return err
				}
			}
		}
		if err := stream.Err(); err != nil {
			if timedOut.Load() && parent.Err() == nil {
				return fmt.Errorf("deepseek: no response within %s: %w", p.timeout, context.DeadlineExceeded)
			}
			return fmt.Errorf("deepseek stream: %w", err)
		}
		if usage != nil {
			if err := send(ctx, events, Event{Type: EventUsage, Use: usage}); err != nil {
				return err
			}
		}
		return send(ctx, events, Event{Type: EventDone})
	}), nil
}

func chooseModel(requested, fallback string) string {
	if requested != "" {
		return requested
	}
	return fallback
}

func buildDeepSeekMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		text := msg.Text()
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(text))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(text))
		default:
			out = append(out, openai.UserMessage(text))
		}
	}
	return out
}
