package llmclient

import (
	"context"
	"errors"
	"time"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog"

	"vicw/internal/message"
)

// OpenAIConfig configures an OpenAI-compatible chat-completions transport:
// base URL swappable for any compatible gateway, t_llm/r_llm tuning
// the timeout and retry budget.
type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration // t_llm, default 60s
	MaxRetries int           // r_llm, default 2
}

// OpenAI is a Provider backed by the openai-go SDK, wiring sdk.Client over a
// configurable base URL (self-hosted-compatible endpoints included).
type OpenAI struct {
	sdk     sdk.Client
	timeout time.Duration
	retries int
	log     zerolog.Logger
}

func NewOpenAI(cfg OpenAIConfig, log zerolog.Logger) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 2
	}
	return &OpenAI{sdk: sdk.NewClient(opts...), timeout: timeout, retries: retries, log: log}
}

// Chat sends messages to model with the provider retry policy: exponential
// backoff on connection error or 5xx, up to MaxRetries retries after the
// first attempt; 4xx errors
// surface immediately without retry.
func (o *OpenAI) Chat(ctx context.Context, messages []message.Message, model string, temperature float64) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	params := sdk.ChatCompletionNewParams{
		Model:       model,
		Messages:    toSDKMessages(messages),
		Temperature: sdk.Float(temperature),
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= o.retries; attempt++ {
		completion, err := o.sdk.Chat.Completions.New(ctx, params)
		if err == nil {
			text := ""
			if len(completion.Choices) > 0 {
				text = completion.Choices[0].Message.Content
			}
			return Response{Text: text, LatencyMS: time.Since(start).Milliseconds()}, nil
		}

		lastErr = err
		if !retryable(err) {
			return Response{}, err
		}
		o.log.Warn().Err(err).Int("attempt", attempt+1).Str("model", model).Msg("llm call failed, retrying")
		if attempt < o.retries {
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}
	}
	return Response{}, lastErr
}

// backoff is the exponential delay before retry attempt n (0-indexed):
// 500ms, 1s, 2s, ...
func backoff(attempt int) time.Duration {
	d := 500 * time.Millisecond
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	return d
}

// retryable reports whether err warrants another attempt: connection errors
// and 5xx responses retry, 4xx responses surface immediately.
func retryable(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return true // network/transport errors: retry
}

func toSDKMessages(messages []message.Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case message.RoleSystem, message.RoleState, message.RoleRAG:
			out = append(out, sdk.SystemMessage(m.Content))
		case message.RoleAssistant:
			out = append(out, sdk.AssistantMessage(m.Content))
		default:
			out = append(out, sdk.UserMessage(m.Content))
		}
	}
	return out
}
