package llmclient

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	genai "google.golang.org/genai"

	"vicw/internal/message"
)

// GeminiConfig configures the third Provider implementation, grounded on the
// teacher's google.Client wiring of genai.Client over a configurable base
// URL and HTTP timeout.
type GeminiConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// Gemini is a Provider backed by google.golang.org/genai.
type Gemini struct {
	client  *genai.Client
	timeout time.Duration
	retries int
	log     zerolog.Logger
}

func NewGemini(ctx context.Context, cfg GeminiConfig, log zerolog.Logger) (*Gemini, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	httpOpts := genai.HTTPOptions{Timeout: &timeout}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		httpOpts.BaseURL = strings.TrimSuffix(base, "/") + "/"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: strings.TrimSpace(cfg.APIKey), HTTPOptions: httpOpts})
	if err != nil {
		return nil, err
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 2
	}
	return &Gemini{client: client, timeout: timeout, retries: retries, log: log}, nil
}

func (gm *Gemini) Chat(ctx context.Context, messages []message.Message, model string, temperature float64) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, gm.timeout)
	defer cancel()

	system, contents := toGeminiContents(messages)
	cfg := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(float32(temperature)),
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= gm.retries; attempt++ {
		resp, err := gm.client.Models.GenerateContent(ctx, model, contents, cfg)
		if err == nil {
			return Response{Text: resp.Text(), LatencyMS: time.Since(start).Milliseconds()}, nil
		}
		lastErr = err
		if !geminiRetryable(err) {
			return Response{}, lastErr
		}
		gm.log.Warn().Err(err).Int("attempt", attempt+1).Str("model", model).Msg("llm call failed, retrying")
		if attempt < gm.retries {
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}
	}
	return Response{}, lastErr
}

// geminiRetryable mirrors retryable/anthropicRetryable: 4xx responses
// surface immediately, 5xx and transport errors retry.
func geminiRetryable(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500
	}
	return true
}

func toGeminiContents(messages []message.Message) (string, []*genai.Content) {
	var system strings.Builder
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case message.RoleSystem, message.RoleState, message.RoleRAG:
			if system.Len() > 0 {
				system.WriteString("\n")
			}
			system.WriteString(m.Content)
		case message.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return system.String(), contents
}
