// Package llmclient implements the LLM client: a thin, provider-backed
// chat-completion transport with a configurable retry/timeout policy.
package llmclient

import (
	"context"

	"vicw/internal/message"
)

// Response is the result of one completion call.
type Response struct {
	Text      string
	LatencyMS int64
}

// Provider is the interface every backend implements. A single method keeps
// every backend (OpenAI-compatible HTTP, Anthropic, Gemini) interchangeable
// behind the orchestrator; streaming is out of scope so Chat always returns
// the complete text.
type Provider interface {
	Chat(ctx context.Context, messages []message.Message, model string, temperature float64) (Response, error)
}
