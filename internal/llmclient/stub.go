package llmclient

import (
	"context"
	"fmt"

	"vicw/internal/message"
)

// Stub is a deterministic Provider used in tests and local development
// without network access: it echoes the last user message, prefixed.
type Stub struct {
	Prefix string
}

func (s *Stub) Chat(_ context.Context, messages []message.Message, _ string, _ float64) (Response, error) {
	last := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == message.RoleUser {
			last = messages[i].Content
			break
		}
	}
	prefix := s.Prefix
	if prefix == "" {
		prefix = "ack"
	}
	return Response{Text: fmt.Sprintf("%s: %s", prefix, last), LatencyMS: 0}, nil
}
