// Package embedder is a pure text→vector function of fixed dimension d. Two
// implementations are provided — a deterministic hashing embedder for tests
// and offline deployments, and an HTTP client against an OpenAI-compatible
// embeddings endpoint.
package embedder

import "context"

// Embedder converts text to fixed-dimension vectors.
type Embedder interface {
	// EmbedBatch returns one vector per input text, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Name identifies the model for logging/metrics.
	Name() string
	// Dimension is the fixed d this embedder always returns. Deployments
	// must pin d at startup and refuse mixed-dimension writes.
	Dimension() int
	// Ping checks reachability of the underlying service (no-op for the
	// deterministic embedder).
	Ping(ctx context.Context) error
}
