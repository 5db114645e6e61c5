package llmclient

import (
	"context"
	"errors"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"vicw/internal/message"
)

const defaultAnthropicMaxTokens int64 = 1024

// AnthropicConfig configures the second Provider implementation, wiring
// anthropic-sdk-go's Client.
type AnthropicConfig struct {
	BaseURL    string
	APIKey     string
	MaxTokens  int64
	Timeout    time.Duration
	MaxRetries int
}

// Anthropic is a Provider backed by anthropic-sdk-go, offered as an
// alternate backend behind the same interface as OpenAI: the core only ever
// depends on Provider, never on a specific vendor SDK.
type Anthropic struct {
	sdk       anthropic.Client
	maxTokens int64
	timeout   time.Duration
	retries   int
	log       zerolog.Logger
}

func NewAnthropic(cfg AnthropicConfig, log zerolog.Logger) *Anthropic {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 2
	}
	return &Anthropic{sdk: anthropic.NewClient(opts...), maxTokens: maxTokens, timeout: timeout, retries: retries, log: log}
}

func (a *Anthropic) Chat(ctx context.Context, messages []message.Message, model string, temperature float64) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	system, turns := splitSystemAndTurns(messages)
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   a.maxTokens,
		Temperature: anthropic.Float(temperature),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages:    turns,
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= a.retries; attempt++ {
		resp, err := a.sdk.Messages.New(ctx, params)
		if err == nil {
			var text strings.Builder
			for _, block := range resp.Content {
				text.WriteString(block.Text)
			}
			return Response{Text: text.String(), LatencyMS: time.Since(start).Milliseconds()}, nil
		}
		lastErr = err
		if !anthropicRetryable(err) {
			return Response{}, err
		}
		a.log.Warn().Err(err).Int("attempt", attempt+1).Str("model", model).Msg("llm call failed, retrying")
		if attempt < a.retries {
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}
	}
	return Response{}, lastErr
}

func anthropicRetryable(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return true
}

func splitSystemAndTurns(messages []message.Message) (string, []anthropic.MessageParam) {
	var system strings.Builder
	turns := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case message.RoleSystem, message.RoleState, message.RoleRAG:
			if system.Len() > 0 {
				system.WriteString("\n")
			}
			system.WriteString(m.Content)
		case message.RoleAssistant:
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return system.String(), turns
}
