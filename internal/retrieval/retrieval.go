// Package retrieval implements the retrieval coordinator: hybrid
// vector+graph search over a user query, joined and formatted into a single
// synthetic rag-role message.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"vicw/internal/chunkstore"
	"vicw/internal/embedder"
	"vicw/internal/graphstore"
	"vicw/internal/vectorindex"
)

// Config holds the retrieval knobs: k_sem, k_rel, σ_min.
type Config struct {
	KSemantic  int
	KRelational int
	SimMin     float64
}

// SemanticHit is one vector-search result joined with its stored summary.
type SemanticHit struct {
	ChunkID string
	Summary string
	Score   float64
}

// Result is the ranked semantic hits plus formatted relational triples for
// one retrieve() call.
type Result struct {
	Semantic   []SemanticHit
	Relational []string
}

// Coordinator ties the embedder, vector index, chunk store, and graph
// together for one retrieve() call per turn.
type Coordinator struct {
	embed   embedder.Embedder
	vectors vectorindex.Store
	chunks  chunkstore.Store
	graph   graphstore.Graph
	cfg     Config
	cache   EmbeddingCache // optional; nil disables caching
}

func NewCoordinator(embed embedder.Embedder, vectors vectorindex.Store, chunks chunkstore.Store, graph graphstore.Graph, cfg Config) *Coordinator {
	return &Coordinator{embed: embed, vectors: vectors, chunks: chunks, graph: graph, cfg: cfg}
}

// WithEmbeddingCache attaches a query-embedding cache; returns the
// Coordinator for convenient chaining at wiring time.
func (c *Coordinator) WithEmbeddingCache(cache EmbeddingCache) *Coordinator {
	c.cache = cache
	return c
}

// Retrieve runs semantic and relational search concurrently, joins, and
// ranks. A failure in either leg degrades gracefully: it logs nothing
// itself (the caller decides), returning a partial Result rather than an
// error — retrieval failures never fail the turn.
func (c *Coordinator) Retrieve(ctx context.Context, query string) (Result, error) {
	var semantic []SemanticHit
	var relational []string

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hits, err := c.semanticSearch(gctx, query)
		if err != nil {
			return nil // degrade: no semantic hits, not a turn failure
		}
		semantic = hits
		return nil
	})

	g.Go(func() error {
		if c.graph == nil {
			return nil
		}
		triples, err := c.graph.RelationalSearch(gctx, query, c.cfg.KRelational)
		if err != nil {
			return nil
		}
		sort.Slice(triples, func(i, j int) bool { return triples[i].CreatedAt.After(triples[j].CreatedAt) })
		for _, t := range triples {
			relational = append(relational, t.Text)
		}
		return nil
	})

	_ = g.Wait() // both legs already swallow their own errors

	return Result{Semantic: semantic, Relational: relational}, nil
}

func (c *Coordinator) semanticSearch(ctx context.Context, query string) ([]SemanticHit, error) {
	if c.embed == nil || c.vectors == nil {
		return nil, fmt.Errorf("retrieval: embedder or vector store not configured")
	}

	var queryVec []float32
	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, query); ok {
			queryVec = cached
		}
	}
	if queryVec == nil {
		vectors, err := c.embed.EmbedBatch(ctx, []string{query})
		if err != nil || len(vectors) == 0 {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		queryVec = vectors[0]
		if c.cache != nil {
			c.cache.Set(ctx, query, queryVec)
		}
	}

	hits, err := c.vectors.SimilaritySearch(ctx, queryVec, c.cfg.KSemantic, nil)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	var chunkIDs []string
	scores := make(map[string]float64, len(hits))
	createdAt := make(map[string]time.Time, len(hits))
	for _, h := range hits {
		if h.Score < c.cfg.SimMin {
			continue
		}
		chunkIDs = append(chunkIDs, h.ID)
		scores[h.ID] = h.Score
		if ts, err := time.Parse(time.RFC3339, h.Metadata["created_at"]); err == nil {
			createdAt[h.ID] = ts
		}
	}
	if len(chunkIDs) == 0 {
		return nil, nil
	}

	summaries, err := c.chunks.GetSummaries(ctx, chunkIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve summaries: %w", err)
	}

	out := make([]SemanticHit, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		summary, ok := summaries[id]
		if !ok {
			continue
		}
		out = append(out, SemanticHit{ChunkID: id, Summary: summary, Score: scores[id]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return createdAt[out[i].ChunkID].After(createdAt[out[j].ChunkID])
	})
	return out, nil
}

// FormatInjection renders a Result into the rag-role message content.
// Empty results produce an empty string — callers must skip injection.
func FormatInjection(r Result) string {
	if len(r.Semantic) == 0 && len(r.Relational) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("[CONTEXT FROM MEMORY]")
	for _, hit := range r.Semantic {
		b.WriteString("\n- ")
		b.WriteString(hit.Summary)
	}
	for _, triple := range r.Relational {
		b.WriteString("\n- ")
		b.WriteString(triple)
	}
	return b.String()
}
