package contextmgr

import (
	"context"
	"fmt"
	"strings"

	"vicw/internal/graphstore"
	"vicw/internal/message"
)

// GetPrompt assembles the ordered prompt: pinned header → state injection →
// RAG injection → live messages. This order is fixed and never
// parameterized. ragContent, if non-empty, is wrapped as a role=rag Message;
// pass "" when RAG is disabled or returned nothing.
//
// GetPrompt is pure given fixed session state and ragContent, except for one
// side effect: injecting active states bumps their visit_count. Calling it
// twice with an unchanged store and the same ragContent yields the same
// text, unless the first call's visit_count bump brings an active state to
// the boredom threshold, in which case the second call adds a LOOP
// DETECTED line — callers that need a
// pure-text guarantee should call it once per turn, which is the only way
// the orchestrator ever calls it.
func (m *Manager) GetPrompt(ctx context.Context, ragContent string) ([]message.Message, error) {
	m.mu.Lock()
	live := make([]message.Message, len(m.messages))
	copy(live, m.messages)
	m.mu.Unlock()

	stateMsg, err := m.buildStateInjection(ctx)
	if err != nil {
		// Degrade gracefully: a state-store failure drops state injection,
		// never the turn.
		stateMsg = nil
	}

	var ragMsg *message.Message
	if strings.TrimSpace(ragContent) != "" {
		ragMsg = &message.Message{Role: message.RoleRAG, Content: ragContent}
		ragMsg.TokenCount = m.tok.Estimate(ragMsg.Content)
	}

	budget := int(0.9 * float64(m.cfg.TMax))
	fixed := m.pinnedHeader.TokenCount
	for _, msg := range live {
		fixed += msg.TokenCount
	}
	// header+injections must not push fixed usage over budget; truncate RAG
	// first, then state, never header or live messages.
	injectionBudget := budget - fixed
	if injectionBudget < 0 {
		injectionBudget = 0
	}
	stateTokens := 0
	if stateMsg != nil {
		stateTokens = stateMsg.TokenCount
	}
	if ragMsg != nil {
		allowed := injectionBudget - stateTokens
		if ragMsg.TokenCount > allowed {
			if allowed <= 0 {
				ragMsg = nil
			} else {
				truncateMessage(ragMsg, allowed, m.tok)
			}
		}
	}
	if stateMsg != nil {
		ragTokens := 0
		if ragMsg != nil {
			ragTokens = ragMsg.TokenCount
		}
		allowed := injectionBudget - ragTokens
		if stateMsg.TokenCount > allowed {
			if allowed <= 0 {
				stateMsg = nil
			} else {
				truncateMessage(stateMsg, allowed, m.tok)
			}
		}
	}

	out := make([]message.Message, 0, len(live)+3)
	out = append(out, m.pinnedHeader)
	if stateMsg != nil {
		out = append(out, *stateMsg)
	}
	if ragMsg != nil {
		out = append(out, *ragMsg)
	}
	out = append(out, live...)
	return out, nil
}

// truncateMessage shrinks content to fit maxTokens using the tokenizer's own
// estimate as the measuring stick, so the result still satisfies I1 under
// whichever Estimator is configured.
func truncateMessage(m *message.Message, maxTokens int, tok interface{ Estimate(string) int }) {
	if maxTokens <= 0 {
		m.Content = ""
		m.TokenCount = 0
		return
	}
	lo, hi := 0, len(m.Content)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if tok.Estimate(m.Content[:mid]) <= maxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	m.Content = m.Content[:lo]
	m.TokenCount = tok.Estimate(m.Content)
}

func (m *Manager) buildStateInjection(ctx context.Context) (*message.Message, error) {
	if !m.cfg.StateTrackingEnabled || m.graph == nil {
		return nil, nil
	}

	caps := map[graphstore.StateType]int{
		graphstore.StateGoal:     m.cfg.StateCaps.Goal,
		graphstore.StateTask:     m.cfg.StateCaps.Task,
		graphstore.StateDecision: m.cfg.StateCaps.Decision,
		graphstore.StateFact:     m.cfg.StateCaps.Fact,
	}
	labels := map[graphstore.StateType]string{
		graphstore.StateGoal:     "Active goals",
		graphstore.StateTask:     "Active tasks",
		graphstore.StateDecision: "Decisions",
		graphstore.StateFact:     "Known facts",
	}
	order := []graphstore.StateType{graphstore.StateGoal, graphstore.StateTask, graphstore.StateDecision, graphstore.StateFact}

	var lines []string
	var boredomWarnings []string
	for _, t := range order {
		limit := caps[t]
		if limit <= 0 {
			continue
		}
		active, err := m.graph.QueryStates(ctx, graphstore.StateFilter{
			Namespace: m.sessionID, StateType: t, Status: graphstore.StatusActive, Limit: limit,
		})
		if err != nil {
			return nil, err
		}
		if len(active) == 0 {
			continue
		}
		descs := make([]string, len(active))
		for i, s := range active {
			descs[i] = s.Description
			if err := m.graph.IncrementVisit(ctx, s.StateID); err != nil {
				continue
			}
			newCount := s.VisitCount + 1
			if m.cfg.BoredomEnabled && newCount >= m.cfg.BoredomThreshold {
				boredomWarnings = append(boredomWarnings, s.Description)
			}
		}
		lines = append(lines, fmt.Sprintf("%s: %s", labels[t], strings.Join(descs, "; ")))
	}

	if m.cfg.RecentlyCompletedCap > 0 {
		var done []graphstore.State
		for _, t := range order {
			got, err := m.graph.QueryStates(ctx, graphstore.StateFilter{
				Namespace: m.sessionID, StateType: t, Status: graphstore.StatusCompleted, Limit: m.cfg.RecentlyCompletedCap,
			})
			if err == nil {
				done = append(done, got...)
			}
		}
		if len(done) > m.cfg.RecentlyCompletedCap {
			done = done[:m.cfg.RecentlyCompletedCap]
		}
		if len(done) > 0 {
			descs := make([]string, len(done))
			for i, s := range done {
				descs[i] = s.Description
			}
			lines = append(lines, fmt.Sprintf("Recently completed: %s", strings.Join(descs, "; ")))
		}
	}

	if len(lines) == 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString("[STATE MEMORY]\n")
	b.WriteString(strings.Join(lines, "\n"))
	for _, desc := range boredomWarnings {
		b.WriteString(fmt.Sprintf("\n⚠️ LOOP DETECTED: Repeated focus on %s. Consider concluding or exploring alternatives.", desc))
	}

	content := b.String()
	return &message.Message{
		Role:       message.RoleState,
		Content:    content,
		TokenCount: m.tok.Estimate(content),
	}, nil
}
