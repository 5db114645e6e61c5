// Package orchestrator drives one user turn through the hot path, the
// retrieval coordinator, the LLM client, and the echo guard.
package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"vicw/internal/analytics"
	"vicw/internal/echoguard"
	"vicw/internal/embedder"
	"vicw/internal/llmclient"
	"vicw/internal/message"
	"vicw/internal/retrieval"
	"vicw/internal/session"
)

// Config holds the tunable knobs for generation and the echo guard: model
// name, temperature, echo threshold, and max regeneration attempts.
type Config struct {
	Model            string
	Temperature      float64
	EchoThreshold    float64 // σ_echo, default 0.95
	MaxRegenerate    int     // R_max, default 3
}

// TurnResult is the POST /chat response body.
type TurnResult struct {
	Response         string
	Timestamp        time.Time
	TokensInContext  int
	RAGItemsInjected int
}

// Orchestrator wires the per-session context managers (via the registry),
// the retrieval coordinator, the LLM client, and the echo guard together.
type Orchestrator struct {
	registry  *session.Registry
	retrieve  *retrieval.Coordinator
	llm       llmclient.Provider
	embed     embedder.Embedder
	cfg       Config
	log       zerolog.Logger
	analytics analytics.Sink // optional; nil is a valid no-op

	echoExhaustedTotal uint64
}

func New(registry *session.Registry, retrieve *retrieval.Coordinator, llm llmclient.Provider, embed embedder.Embedder, cfg Config, log zerolog.Logger) *Orchestrator {
	if cfg.EchoThreshold <= 0 {
		cfg.EchoThreshold = 0.95
	}
	if cfg.MaxRegenerate <= 0 {
		cfg.MaxRegenerate = 3
	}
	return &Orchestrator{registry: registry, retrieve: retrieve, llm: llm, embed: embed, cfg: cfg, log: log}
}

// WithAnalytics attaches a Sink that records one Event per completed turn;
// returns the Orchestrator for convenient chaining at wiring time.
func (o *Orchestrator) WithAnalytics(sink analytics.Sink) *Orchestrator {
	o.analytics = sink
	return o
}

// Turn drives the full add-retrieve-generate-guard-resume sequence for one
// user message in sessionID.
func (o *Orchestrator) Turn(ctx context.Context, sessionID, userMessage string, useRAG bool) (TurnResult, error) {
	sess := o.registry.GetOrCreate(sessionID)

	// 1. add_message("user", u) — may trigger a non-blocking shed.
	if _, err := sess.Context.AddMessage(message.RoleUser, userMessage); err != nil {
		return TurnResult{}, fmt.Errorf("add user message: %w", err)
	}

	// 2. Retrieve, if enabled for this turn.
	ragContent := ""
	ragItems := 0
	if useRAG && o.retrieve != nil {
		result, err := o.retrieve.Retrieve(ctx, userMessage)
		if err != nil {
			o.log.Warn().Err(err).Str("session_id", sessionID).Msg("retrieval failed; continuing without RAG")
		} else {
			ragContent = retrieval.FormatInjection(result)
			ragItems = len(result.Semantic) + len(result.Relational)
		}
	}

	// 3. Signal the pause latch so the cold worker yields for this session.
	sess.Pause()
	defer sess.Resume()

	resp, err := o.generateWithEchoGuard(ctx, sess, ragContent)
	if err != nil {
		return TurnResult{}, err
	}

	// 6. On accept: append assistant turn, push to echo ring.
	if _, err := sess.Context.AddMessage(message.RoleAssistant, resp.text); err != nil {
		return TurnResult{}, fmt.Errorf("add assistant message: %w", err)
	}
	sess.Echo.Push(echoguard.Entry{Embedding: resp.embedding, TextHash: echoguard.TextHash(resp.text), Timestamp: time.Now()})

	stats := sess.Context.Stats()
	if o.analytics != nil {
		o.analytics.Record(analytics.Event{
			Timestamp:        time.Now(),
			SessionID:        sessionID,
			PressureRatio:    stats.PressurePercentage / 100,
			TokensInContext:  stats.CurrentTokens,
			EchoRegenerated:  resp.attempts > 1,
			EchoExhausted:    resp.exhausted,
			RAGItemsInjected: ragItems,
		})
	}
	return TurnResult{
		Response:         resp.text,
		Timestamp:        time.Now(),
		TokensInContext:  stats.CurrentTokens,
		RAGItemsInjected: ragItems,
	}, nil
}

type candidateResponse struct {
	text      string
	embedding []float32
	attempts  int  // how many generation attempts this turn took
	exhausted bool // true if accepted only because MaxRegenerate was reached
}

// generateWithEchoGuard generates a candidate response, embeds it, compares
// it against the echo ring, and escalates through up to cfg.MaxRegenerate
// regeneration attempts before accepting a best-effort result.
func (o *Orchestrator) generateWithEchoGuard(ctx context.Context, sess *session.Session, ragContent string) (candidateResponse, error) {
	var last candidateResponse

	for attempt := 1; attempt <= o.cfg.MaxRegenerate+1; attempt++ {
		effectiveRAG := ragContent
		tier := echoguard.TierForAttempt(attempt)
		warning, emergencyOverride := echoguard.Warning(tier)
		if emergencyOverride {
			effectiveRAG = "" // strip RAG; the state message GetPrompt still injects is dropped by stripToHeaderAndLastUser below
		}

		prompt, err := sess.Context.GetPrompt(ctx, effectiveRAG)
		if err != nil {
			return candidateResponse{}, fmt.Errorf("assemble prompt: %w", err)
		}
		if emergencyOverride {
			prompt = stripToHeaderAndLastUser(prompt)
		}
		if warning != "" {
			prompt = append(prompt, message.Message{Role: message.RoleSystem, Content: warning})
		}

		result, err := o.llm.Chat(ctx, prompt, o.cfg.Model, o.cfg.Temperature)
		if err != nil {
			return candidateResponse{}, fmt.Errorf("llm generate: %w", err)
		}

		embeddings, err := o.embed.EmbedBatch(ctx, []string{result.Text})
		var vec []float32
		if err == nil && len(embeddings) > 0 {
			vec = embeddings[0]
		}
		verdict := sess.Echo.Evaluate(vec, o.cfg.EchoThreshold)
		last = candidateResponse{text: result.Text, embedding: vec, attempts: attempt}

		if verdict.Accept || attempt > o.cfg.MaxRegenerate {
			if !verdict.Accept {
				last.exhausted = true
				atomic.AddUint64(&o.echoExhaustedTotal, 1)
				o.log.Warn().Str("session_id", sess.ID).Msg("echo guard exhausted regeneration attempts; accepting best-effort response")
			}
			return last, nil
		}
		o.log.Info().Str("session_id", sess.ID).Int("attempt", attempt).Float64("similarity", verdict.MaxSimilarity).Msg("echo guard rejected response; regenerating")
	}
	return last, nil
}

// stripToHeaderAndLastUser implements the emergency-override prompt shape:
// pinned header + most recent user turn only, dropping RAG/state injections
// and prior turns at the final escalation tier. The escalation warning is
// appended by the caller afterward.
func stripToHeaderAndLastUser(prompt []message.Message) []message.Message {
	if len(prompt) == 0 {
		return prompt
	}
	out := []message.Message{prompt[0]}
	for i := len(prompt) - 1; i >= 1; i-- {
		if prompt[i].Role == message.RoleUser {
			out = append(out, prompt[i])
			break
		}
	}
	return out
}

// EchoGuardExhaustedTotal reports the ECHO_GUARD_EXHAUSTED counter for
// GET /stats.
func (o *Orchestrator) EchoGuardExhaustedTotal() uint64 { return atomic.LoadUint64(&o.echoExhaustedTotal) }
