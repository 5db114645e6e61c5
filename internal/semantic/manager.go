package semantic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vicw/internal/chunkstore"
	"vicw/internal/embedder"
	"vicw/internal/graphstore"
	"vicw/internal/message"
	"vicw/internal/offloadqueue"
	"vicw/internal/stateextract"
	"vicw/internal/vectorindex"
)

// Config holds the summarization/embedding knobs for the cold-path pipeline.
type Config struct {
	LeadSentences        int
	TailSentences        int
	MaxSummaryTokens     int
	StateTrackingEnabled bool
}

// Manager runs the ordered six-step job pipeline: summarize, embed, persist
// chunk, persist vector, persist graph, extract state. It is called by the
// cold-path worker once per drained job; it never blocks the hot path
// because the worker invokes it from its own goroutine.
type Manager struct {
	cfg      Config
	chunks   chunkstore.Store
	vectors  vectorindex.Store
	graph    graphstore.Graph
	embed    embedder.Embedder
	estimate func(string) int
}

// NewManager wires the cold-path pipeline dependencies.
func NewManager(cfg Config, chunks chunkstore.Store, vectors vectorindex.Store, graph graphstore.Graph, embed embedder.Embedder, estimate func(string) int) *Manager {
	return &Manager{cfg: cfg, chunks: chunks, vectors: vectors, graph: graph, embed: embed, estimate: estimate}
}

// Outcome reports which of the six steps succeeded, for the worker's
// processed/failed counters.
type Outcome struct {
	ChunkID       string
	SummaryFailed bool
	EmbedFailed   bool
	ChunkFailed   bool
	VectorFailed  bool
	GraphFailed   bool
	StateFailed   bool
}

func (o Outcome) AnyFailed() bool {
	return o.SummaryFailed || o.EmbedFailed || o.ChunkFailed || o.VectorFailed || o.GraphFailed || o.StateFailed
}

// Process runs the six-step pipeline for one job. Each step's failure is
// caught, logged, and does not prevent subsequent steps from being
// attempted.
func (m *Manager) Process(ctx context.Context, job offloadqueue.Job, log zerolog.Logger) Outcome {
	out := Outcome{ChunkID: job.ChunkID}
	log = log.With().Str("chunk_id", job.ChunkID).Str("session_id", job.SessionID).Logger()

	fullText := renderFullText(job.Messages)
	tokenCount := 0
	for _, msg := range job.Messages {
		tokenCount += msg.TokenCount
	}

	// 1. Summarize.
	summary := ExtractiveSummary(fullText, m.cfg.LeadSentences, m.cfg.TailSentences, m.cfg.MaxSummaryTokens, m.estimate)
	if strings.TrimSpace(summary) == "" {
		out.SummaryFailed = true
		log.Warn().Msg("extractive summary empty")
		summary = fullText // degrade: fall back to full text rather than losing the chunk
	}

	// 2. Embed the summary.
	var vector []float32
	embeddings, err := m.embed.EmbedBatch(ctx, []string{summary})
	if err != nil || len(embeddings) == 0 {
		out.EmbedFailed = true
		log.Error().Err(err).Msg("embedding failed; skipping vector write")
	} else {
		vector = embeddings[0]
	}

	// 3. Persist chunk.
	if err := m.chunks.Put(ctx, chunkstore.Chunk{
		ChunkID:      job.ChunkID,
		FullText:     fullText,
		Summary:      summary,
		TokenCount:   tokenCount,
		MessageCount: len(job.Messages),
		CreatedAt:    job.CreatedAt,
		SessionID:    job.SessionID,
	}); err != nil {
		out.ChunkFailed = true
		log.Error().Err(err).Msg("chunk persistence failed")
	}

	// 4. Upsert vector.
	if vector != nil {
		if err := m.vectors.Upsert(ctx, job.ChunkID, vector, map[string]string{
			"created_at":  job.CreatedAt.Format(time.RFC3339),
			"token_count": fmt.Sprintf("%d", tokenCount),
			"session_id":  job.SessionID,
		}); err != nil {
			out.VectorFailed = true
			log.Error().Err(err).Msg("vector upsert failed")
		}
	}

	// 5. Upsert graph Chunk node.
	if err := m.graph.UpsertNode(ctx, job.ChunkID, []string{"Chunk"}, map[string]any{
		"summary":    summary,
		"created_at": job.CreatedAt,
	}); err != nil {
		out.GraphFailed = true
		log.Error().Err(err).Msg("graph chunk node upsert failed")
	}

	// 6. State extraction.
	if m.cfg.StateTrackingEnabled {
		// The catalog's patterns are anchored at sentence start, so extract
		// from the message contents rather than the "role: "-prefixed fullText.
		contents := make([]string, 0, len(job.Messages))
		for _, msg := range job.Messages {
			contents = append(contents, msg.Content)
		}
		candidates := stateextract.Extract(strings.Join(contents, "\n"), stateextract.DefaultCatalog)
		for _, c := range candidates {
			_, err := m.graph.UpsertState(ctx, graphstore.State{
				Namespace: job.SessionID, StateType: c.StateType, Description: c.Description, Status: c.Status,
			})
			if err != nil {
				out.StateFailed = true
				log.Error().Err(err).Str("description", c.Description).Msg("state upsert failed")
			}
		}
	}

	return out
}

func renderFullText(messages []message.Message) string {
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(string(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.Content)
	}
	return b.String()
}
