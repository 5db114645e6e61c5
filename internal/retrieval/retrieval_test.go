package retrieval

import (
	"context"
	"testing"

	"vicw/internal/chunkstore"
	"vicw/internal/embedder"
	"vicw/internal/graphstore"
	"vicw/internal/vectorindex"
)

func TestRetrieveJoinsSemanticAndRelational(t *testing.T) {
	ctx := context.Background()
	chunks := chunkstore.NewMemory()
	vectors := vectorindex.NewMemory(16)
	graph := graphstore.NewMemory()
	emb := embedder.NewDeterministic(16, true, 7)

	vec, err := emb.EmbedBatch(ctx, []string{"hydro plant"})
	if err != nil {
		t.Fatal(err)
	}
	if err := vectors.Upsert(ctx, "chunk-1", vec[0], nil); err != nil {
		t.Fatal(err)
	}
	if err := chunks.Put(ctx, chunkstore.Chunk{ChunkID: "chunk-1", Summary: "Discussed hydro plant maintenance."}); err != nil {
		t.Fatal(err)
	}
	if err := graph.UpsertNode(ctx, "hydro-plant-entity", []string{"Entity"}, map[string]any{"name": "hydro plant"}); err != nil {
		t.Fatal(err)
	}

	coord := NewCoordinator(emb, vectors, chunks, graph, Config{KSemantic: 5, KRelational: 5, SimMin: -1})

	result, err := coord.Retrieve(ctx, "hydro plant")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Semantic) != 1 || result.Semantic[0].ChunkID != "chunk-1" {
		t.Fatalf("expected one semantic hit, got %+v", result.Semantic)
	}
	if len(result.Relational) != 1 {
		t.Fatalf("expected one relational hit, got %+v", result.Relational)
	}

	injection := FormatInjection(result)
	if injection == "" {
		t.Fatal("expected non-empty injection")
	}
}

func TestRetrieveEmptyProducesNoInjection(t *testing.T) {
	ctx := context.Background()
	chunks := chunkstore.NewMemory()
	vectors := vectorindex.NewMemory(16)
	graph := graphstore.NewMemory()
	emb := embedder.NewDeterministic(16, true, 7)

	coord := NewCoordinator(emb, vectors, chunks, graph, Config{KSemantic: 5, KRelational: 5, SimMin: 0.9})

	result, err := coord.Retrieve(ctx, "nothing stored yet")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if FormatInjection(result) != "" {
		t.Fatalf("expected no injection for empty result, got %q", FormatInjection(result))
	}
}

func TestRetrieveSurvivesMissingGraph(t *testing.T) {
	ctx := context.Background()
	chunks := chunkstore.NewMemory()
	vectors := vectorindex.NewMemory(16)
	emb := embedder.NewDeterministic(16, true, 7)

	coord := NewCoordinator(emb, vectors, chunks, nil, Config{KSemantic: 5, KRelational: 5, SimMin: -1})

	if _, err := coord.Retrieve(ctx, "anything"); err != nil {
		t.Fatalf("unexpected error with nil graph: %v", err)
	}
}

type fakeCache struct {
	hits, misses int
	store        map[string][]float32
}

func newFakeCache() *fakeCache { return &fakeCache{store: map[string][]float32{}} }

func (f *fakeCache) Get(_ context.Context, query string) ([]float32, bool) {
	v, ok := f.store[query]
	if ok {
		f.hits++
	} else {
		f.misses++
	}
	return v, ok
}

func (f *fakeCache) Set(_ context.Context, query string, vector []float32) {
	f.store[query] = vector
}

func TestRetrieveUsesEmbeddingCacheOnRepeatedQuery(t *testing.T) {
	ctx := context.Background()
	chunks := chunkstore.NewMemory()
	vectors := vectorindex.NewMemory(16)
	graph := graphstore.NewMemory()
	emb := embedder.NewDeterministic(16, true, 7)

	vec, _ := emb.EmbedBatch(ctx, []string{"hydro plant"})
	_ = vectors.Upsert(ctx, "chunk-1", vec[0], nil)
	_ = chunks.Put(ctx, chunkstore.Chunk{ChunkID: "chunk-1", Summary: "Discussed hydro plant maintenance."})

	cache := newFakeCache()
	coord := NewCoordinator(emb, vectors, chunks, graph, Config{KSemantic: 5, KRelational: 5, SimMin: -1}).
		WithEmbeddingCache(cache)

	if _, err := coord.Retrieve(ctx, "hydro plant"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := coord.Retrieve(ctx, "hydro plant"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.misses != 1 || cache.hits != 1 {
		t.Fatalf("expected one miss then one hit, got misses=%d hits=%d", cache.misses, cache.hits)
	}
}
