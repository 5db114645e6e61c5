package orchestrator

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"vicw/internal/analytics"
	"vicw/internal/chunkstore"
	"vicw/internal/contextmgr"
	"vicw/internal/embedder"
	"vicw/internal/graphstore"
	"vicw/internal/llmclient"
	"vicw/internal/offloadqueue"
	"vicw/internal/retrieval"
	"vicw/internal/session"
	"vicw/internal/tokenizer"
	"vicw/internal/vectorindex"
)

func newTestOrchestrator() (*Orchestrator, *session.Registry) {
	queue := offloadqueue.New(100)
	graph := graphstore.NewMemory()
	reg := session.NewRegistry(session.Factory{
		PinnedHeader: "you are a helpful assistant",
		Config: contextmgr.Config{
			TMax: 10000, ThetaTrigger: 0.8, ThetaTarget: 0.6, ThetaResume: 0.7,
			StateCaps: contextmgr.StateCaps{Goal: 2, Task: 3, Decision: 2, Fact: 3},
		},
		Tokenizer: tokenizer.Default, Queue: queue, Graph: graph, EchoRingSize: 10,
	})

	emb := embedder.NewDeterministic(16, true, 5)
	vectors := vectorindex.NewMemory(16)
	chunks := chunkstore.NewMemory()
	coord := retrieval.NewCoordinator(emb, vectors, chunks, graph, retrieval.Config{KSemantic: 3, KRelational: 3, SimMin: -1})

	orch := New(reg, coord, &llmclient.Stub{Prefix: "reply"}, emb, Config{Model: "test-model", Temperature: 0.7}, zerolog.Nop())
	return orch, reg
}

func TestTurnReturnsResponseAndUpdatesContext(t *testing.T) {
	orch, _ := newTestOrchestrator()
	result, err := orch.Turn(context.Background(), "session-1", "hello there", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Response == "" {
		t.Fatal("expected non-empty response")
	}
	if result.TokensInContext <= 0 {
		t.Fatal("expected positive tokens_in_context")
	}
}

func TestTurnPushesAssistantResponseToEchoRing(t *testing.T) {
	orch, reg := newTestOrchestrator()
	if _, err := orch.Turn(context.Background(), "session-2", "first message", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sess := reg.GetOrCreate("session-2")
	if sess.Echo.Len() != 1 {
		t.Fatalf("expected echo ring to have one entry, got %d", sess.Echo.Len())
	}
}

func TestTurnEchoGuardRegeneratesOnDuplicate(t *testing.T) {
	orch, reg := newTestOrchestrator()
	// The stub always echoes the last user message verbatim; asking the same
	// question twice in a row should trip the echo guard on the second turn
	// and still return a best-effort response rather than erroring.
	if _, err := orch.Turn(context.Background(), "session-3", "same question", false); err != nil {
		t.Fatalf("unexpected error on first turn: %v", err)
	}
	result, err := orch.Turn(context.Background(), "session-3", "same question", false)
	if err != nil {
		t.Fatalf("unexpected error on second turn: %v", err)
	}
	if result.Response == "" {
		t.Fatal("expected a best-effort response even after echo guard exhaustion")
	}
	if got := orch.EchoGuardExhaustedTotal(); got != 1 {
		t.Fatalf("expected the echo guard to exhaust its regenerations once, got %d", got)
	}
	sess := reg.GetOrCreate("session-3")
	if sess.Paused() {
		t.Fatal("pause latch should be cleared after the turn completes")
	}
}

func TestTurnSkipsRAGWhenDisabled(t *testing.T) {
	orch, _ := newTestOrchestrator()
	result, err := orch.Turn(context.Background(), "session-4", "no rag please", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RAGItemsInjected != 0 {
		t.Fatalf("expected zero rag items when use_rag=false, got %d", result.RAGItemsInjected)
	}
}

func TestTurnRecordsAnalyticsEventWhenWired(t *testing.T) {
	orch, _ := newTestOrchestrator()
	ring := analytics.NewRing(10)
	orch.WithAnalytics(ring)

	if _, err := orch.Turn(context.Background(), "session-5", "track me", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	summary := ring.Summarize()
	if summary.SampleCount != 1 {
		t.Fatalf("expected one recorded event, got %d", summary.SampleCount)
	}
}
