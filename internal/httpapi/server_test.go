package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"vicw/internal/chunkstore"
	"vicw/internal/coldworker"
	"vicw/internal/contextmgr"
	"vicw/internal/embedder"
	"vicw/internal/graphstore"
	"vicw/internal/llmclient"
	"vicw/internal/offloadqueue"
	"vicw/internal/orchestrator"
	"vicw/internal/retrieval"
	"vicw/internal/semantic"
	"vicw/internal/session"
	"vicw/internal/tokenizer"
	"vicw/internal/vectorindex"
)

func newTestServer() *Server {
	queue := offloadqueue.New(100)
	graph := graphstore.NewMemory()
	reg := session.NewRegistry(session.Factory{
		PinnedHeader: "you are a helpful assistant",
		Config:       contextmgr.Config{TMax: 10000, ThetaTrigger: 0.8, ThetaTarget: 0.6, ThetaResume: 0.7},
		Tokenizer:    tokenizer.Default, Queue: queue, Graph: graph, EchoRingSize: 10,
	})
	emb := embedder.NewDeterministic(16, true, 9)
	vectors := vectorindex.NewMemory(16)
	chunks := chunkstore.NewMemory()
	coord := retrieval.NewCoordinator(emb, vectors, chunks, graph, retrieval.Config{KSemantic: 3, KRelational: 3, SimMin: -1})
	orch := orchestrator.New(reg, coord, &llmclient.Stub{Prefix: "reply"}, emb, orchestrator.Config{Model: "test-model"}, zerolog.Nop())

	mgr := semantic.NewManager(semantic.Config{LeadSentences: 2, TailSentences: 1, MaxSummaryTokens: 64}, chunks, vectors, graph, emb, tokenizer.Default.Estimate)
	worker := coldworker.New(queue, mgr, nil, 0, 0, zerolog.Nop())

	return NewServer(orch, reg, queue, worker, func() bool { return true }, tokenizer.Default, "test-model", zerolog.Nop())
}

func TestHandleChatReturnsResponse(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(ChatRequest{Message: "hello"})
	req := httptest.NewRequest("POST", "/chat", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Response == "" {
		t.Fatal("expected non-empty response")
	}
}

func TestHandleChatRejectsEmptyMessage(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(ChatRequest{Message: ""})
	req := httptest.NewRequest("POST", "/chat", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != 400 {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Model != "test-model" {
		t.Fatalf("unexpected health response: %+v", resp)
	}
}

func TestHandleStatsAfterChat(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(ChatRequest{Message: "hi"})
	req := httptest.NewRequest("POST", "/chat", bytes.NewReader(body))
	s.ServeHTTP(httptest.NewRecorder(), req)

	statsReq := httptest.NewRequest("GET", "/stats", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, statsReq)
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp StatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Context["message_count"].(float64) < 2 {
		t.Fatalf("expected at least 2 messages (user+assistant), got %+v", resp.Context)
	}
}

func TestHandleResetClearsMessages(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(ChatRequest{Message: "hi"})
	s.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/chat", bytes.NewReader(body)))

	resetReq := httptest.NewRequest("POST", "/reset", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, resetReq)
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	statsReq := httptest.NewRequest("GET", "/stats", nil)
	statsRec := httptest.NewRecorder()
	s.ServeHTTP(statsRec, statsReq)
	var resp StatsResponse
	if err := json.Unmarshal(statsRec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Context["message_count"].(float64) != 0 {
		t.Fatalf("expected message_count 0 after reset, got %+v", resp.Context)
	}
}

func TestHandleIngestEnqueuesJob(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(IngestRequest{Document: "a long document to ingest"})
	req := httptest.NewRequest("POST", "/ingest", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleOpenAIChatCompletions(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(openAIChatRequest{
		Model:    "test-model",
		Messages: []openAIChatMessage{{Role: "user", Content: "hello"}},
	})
	req := httptest.NewRequest("POST", "/v1/chat/completions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
