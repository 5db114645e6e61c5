// Package httpapi exposes the HTTP surface: /chat, /health, /stats,
// /reset, an optional OpenAI-compatible shim, and an optional /ingest
// endpoint, laid out as net/http.ServeMux + handler-per-route.
package httpapi

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"vicw/internal/analytics"
	"vicw/internal/coldworker"
	"vicw/internal/offloadqueue"
	"vicw/internal/orchestrator"
	"vicw/internal/session"
	"vicw/internal/tokenizer"
)

// Server wires the orchestrator and process-wide diagnostics into an
// http.Handler.
type Server struct {
	orch      *orchestrator.Orchestrator
	registry  *session.Registry
	queue     offloadqueue.Backend
	worker    *coldworker.Worker
	workerRun func() bool // reports whether the worker goroutine is currently alive
	tok       tokenizer.Estimator
	model     string
	startedAt time.Time
	log       zerolog.Logger
	mux       *http.ServeMux
	trend     *analytics.Ring // optional; nil disables the trend block in /stats
}

func NewServer(orch *orchestrator.Orchestrator, registry *session.Registry, queue offloadqueue.Backend, worker *coldworker.Worker, workerRun func() bool, tok tokenizer.Estimator, model string, log zerolog.Logger) *Server {
	if tok == nil {
		tok = tokenizer.Default
	}
	s := &Server{
		orch: orch, registry: registry, queue: queue, worker: worker, workerRun: workerRun,
		tok: tok, model: model, startedAt: time.Now(), log: log, mux: http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// WithTrend attaches the in-memory analytics ring so /stats can report
// recent-history aggregates alongside the point-in-time snapshot.
func (s *Server) WithTrend(r *analytics.Ring) *Server {
	s.trend = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	s.mux.HandleFunc("POST /reset", s.handleReset)
	s.mux.HandleFunc("POST /ingest", s.handleIngest)

	s.mux.HandleFunc("GET /v1/models", s.handleOpenAIModels)
	s.mux.HandleFunc("POST /v1/chat/completions", s.handleOpenAIChatCompletions)
}
