package semantic

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vicw/internal/chunkstore"
	"vicw/internal/embedder"
	"vicw/internal/graphstore"
	"vicw/internal/message"
	"vicw/internal/offloadqueue"
	"vicw/internal/vectorindex"
)

func estimate(s string) int {
	if s == "" {
		return 0
	}
	n := len(s) / 4
	if n < 1 {
		n = 1
	}
	return n
}

func TestProcessPersistsChunkVectorAndGraph(t *testing.T) {
	ctx := context.Background()
	chunks := chunkstore.NewMemory()
	vectors := vectorindex.NewMemory(32)
	graph := graphstore.NewMemory()
	emb := embedder.NewDeterministic(32, true, 1)

	mgr := NewManager(Config{LeadSentences: 2, TailSentences: 1, MaxSummaryTokens: 64, StateTrackingEnabled: true},
		chunks, vectors, graph, emb, estimate)

	job := offloadqueue.Job{
		ChunkID:   "chunk-1",
		SessionID: "s1",
		Messages: []message.Message{
			{Role: message.RoleUser, Content: "Let's go to the Hydro-Plant.", TokenCount: 7},
			{Role: message.RoleAssistant, Content: "Understood, heading there now.", TokenCount: 7},
		},
		CreatedAt: time.Now(),
	}

	out := mgr.Process(ctx, job, zerolog.Nop())
	if out.ChunkFailed || out.VectorFailed || out.GraphFailed {
		t.Fatalf("unexpected failures: %+v", out)
	}

	c, ok, err := chunks.Get(ctx, "chunk-1")
	if err != nil || !ok {
		t.Fatalf("chunk not persisted: ok=%v err=%v", ok, err)
	}
	if c.Summary == "" {
		t.Fatal("expected non-empty summary")
	}

	results, err := vectors.SimilaritySearch(ctx, mustEmbed(t, emb, c.Summary), 1, nil)
	if err != nil || len(results) != 1 || results[0].ID != "chunk-1" {
		t.Fatalf("expected vector upsert to be retrievable, got %+v err=%v", results, err)
	}

	states, err := graph.QueryStates(ctx, graphstore.StateFilter{Namespace: "s1", StateType: graphstore.StateGoal, Status: graphstore.StatusActive})
	if err != nil || len(states) != 1 {
		t.Fatalf("expected one extracted active goal, got %+v err=%v", states, err)
	}
}

func mustEmbed(t *testing.T, e *embedder.Deterministic, text string) []float32 {
	t.Helper()
	out, err := e.EmbedBatch(context.Background(), []string{text})
	if err != nil {
		t.Fatal(err)
	}
	return out[0]
}
