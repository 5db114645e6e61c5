package httpapi

import (
	"encoding/json"
	"net/http"
	"time"
)

const defaultSessionID = "default"

// ChatRequest is the POST /chat body. SessionID gives callers an explicit
// handle into the process-wide session registry; it defaults to a single
// shared session when omitted, preserving single-process-single-conversation
// behavior for simple deployments.
type ChatRequest struct {
	Message   string `json:"message"`
	UseRAG    *bool  `json:"use_rag"`
	SessionID string `json:"session_id"`
}

type ChatResponse struct {
	Response         string    `json:"response"`
	Timestamp        time.Time `json:"timestamp"`
	TokensInContext  int       `json:"tokens_in_context"`
	RAGItemsInjected int       `json:"rag_items_injected"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Message == "" {
		respondError(w, http.StatusBadRequest, errMissingMessage)
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = defaultSessionID
	}
	useRAG := true
	if req.UseRAG != nil {
		useRAG = *req.UseRAG
	}

	result, err := s.orch.Turn(r.Context(), sessionID, req.Message, useRAG)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, ChatResponse{
		Response:         result.Response,
		Timestamp:        result.Timestamp,
		TokensInContext:  result.TokensInContext,
		RAGItemsInjected: result.RAGItemsInjected,
	})
}

type HealthResponse struct {
	Status            string `json:"status"`
	ContextInitialized bool   `json:"context_initialized"`
	LLMInitialized     bool   `json:"llm_initialized"`
	Model              string `json:"model"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:             "ok",
		ContextInitialized: s.registry != nil,
		LLMInitialized:     s.orch != nil,
		Model:              s.model,
	})
}

type StatsResponse struct {
	Context map[string]any `json:"context"`
	Queue   map[string]any `json:"queue"`
	Worker  map[string]any `json:"worker"`
	Trend   map[string]any `json:"trend,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	req := sessionFromQuery(r, defaultSessionID)
	sess := s.registry.GetOrCreate(req)
	ctxStats := sess.Context.Stats()
	qStats := s.queue.Stats()
	running := s.workerRun != nil && s.workerRun()
	wStats := s.worker.Stats(running)

	resp := StatsResponse{
		Context: map[string]any{
			"current_tokens":      ctxStats.CurrentTokens,
			"max_tokens":          ctxStats.MaxTokens,
			"message_count":       ctxStats.MessageCount,
			"offload_count":       ctxStats.OffloadCount,
			"pressure_percentage": ctxStats.PressurePercentage,
		},
		Queue: map[string]any{
			"current_size":   qStats.CurrentSize,
			"max_size":       qStats.MaxSize,
			"processed_total": qStats.ProcessedTotal,
			"dropped_total":   qStats.DroppedTotal,
		},
		Worker: map[string]any{
			"is_running":      wStats.IsRunning,
			"processed_count": wStats.ProcessedCount,
			"failed_count":    wStats.FailedCount,
			"success_rate":    wStats.SuccessRate,
		},
	}
	if s.trend != nil {
		trend := s.trend.Summarize()
		resp.Trend = map[string]any{
			"sample_count":       trend.SampleCount,
			"avg_pressure":       trend.AvgPressure,
			"max_pressure":       trend.MaxPressure,
			"max_queue_depth":    trend.MaxQueueDepth,
			"echo_regenerated":   trend.EchoRegenerated,
			"echo_exhausted":     trend.EchoExhausted,
			"rag_items_injected": trend.RAGItemsInjected,
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

type ResetRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // empty body is valid: reset the default session
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = defaultSessionID
	}
	sess := s.registry.GetOrCreate(sessionID)
	sess.Context.Reset()
	respondJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}

func sessionFromQuery(r *http.Request, fallback string) string {
	if id := r.URL.Query().Get("session_id"); id != "" {
		return id
	}
	return fallback
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]any{"error": err.Error()})
}
