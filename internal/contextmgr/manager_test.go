package contextmgr

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"vicw/internal/graphstore"
	"vicw/internal/message"
	"vicw/internal/offloadqueue"
)

// fixedTokenizer assigns a caller-specified token count per rune-length
// bucket so tests can reproduce a worked pressure-relief example without
// depending on the heuristic's 4-chars-per-token rounding.
type fixedTokenizer struct{ perMessage int }

func (f fixedTokenizer) Estimate(s string) int {
	if s == "" {
		return 0
	}
	if len(s) <= 20 {
		return f.perMessage
	}
	// header and rag/state blocks: scale roughly with length
	return len(s) / 4
}

func newTestManager(tmax int) *Manager {
	cfg := Config{
		TMax: tmax, ThetaTrigger: 0.80, ThetaTarget: 0.60, ThetaResume: 0.70,
		StateCaps:            StateCaps{Goal: 2, Task: 3, Decision: 2, Fact: 3},
		RecentlyCompletedCap: 3, BoredomThreshold: 5, BoredomEnabled: true, StateTrackingEnabled: true,
	}
	tok := fixedTokenizer{perMessage: 20}
	q := offloadqueue.New(100)
	g := graphstore.NewMemory()
	// pinned header ~10 tokens via scaled estimate
	return New("s1", "0123456789012345678901234567890123456", cfg, tok, q, g)
}

func TestPressureReliefFiresExactlyOnce(t *testing.T) {
	m := newTestManager(100)

	var lastEvent *OffloadEvent
	for i := 0; i < 4; i++ {
		ev, err := m.AddMessage(message.RoleUser, "hi")
		require.NoError(t, err)
		if ev != nil {
			lastEvent = ev
		}
	}
	require.NotNil(t, lastEvent, "expected a shed to fire by the 4th message")
	require.LessOrEqual(t, m.Stats().CurrentTokens, 70, "expected shed to bring tokens down")
	require.True(t, m.suppressed, "expected suppression flag set after shed")

	// Next message alone shouldn't re-trigger while suppressed.
	ev, err := m.AddMessage(message.RoleUser, "yo")
	require.NoError(t, err)
	require.Nil(t, ev, "shed should not re-fire immediately due to hysteresis suppression")
}

func TestShedIsContiguousPrefixAndSkipsHeader(t *testing.T) {
	m := newTestManager(100)
	for i := 0; i < 6; i++ {
		m.AddMessage(message.RoleUser, fmt.Sprintf("m%d", i))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.Role == message.RoleSystem && msg.Content == m.pinnedHeader.Content {
			t.Fatal("pinned header should never appear in the mutable messages slice")
		}
	}
	// m0..m3 reach 89 tokens (header 9 + 4×20), so the shed removes the
	// prefix m0, m1; m4 and m5 arrive while suppressed and are kept.
	require.Len(t, m.messages, 5)
	require.True(t, strings.HasPrefix(m.messages[0].Content, "[ARCHIVED mem_id:"), "placeholder should replace the removed prefix")
	for i, want := range []string{"m2", "m3", "m4", "m5"} {
		require.Equal(t, want, m.messages[i+1].Content)
	}
}

func TestRollbackLastAssistant(t *testing.T) {
	m := newTestManager(1000)
	m.AddMessage(message.RoleUser, "question")
	m.AddMessage(message.RoleAssistant, "answer")
	before := m.Stats().MessageCount
	require.NoError(t, m.RollbackLastAssistant())
	require.Equal(t, before-1, m.Stats().MessageCount)
}

func TestGetPromptOrderAndStateInjection(t *testing.T) {
	m := newTestManager(10000)
	ctx := context.Background()
	m.graph.UpsertState(ctx, graphstore.State{Namespace: "s1", StateType: graphstore.StateGoal, Description: "ship the release", Status: graphstore.StatusActive})
	m.AddMessage(message.RoleUser, "hello")

	prompt, err := m.GetPrompt(ctx, "[CONTEXT FROM MEMORY]\n- some summary")
	require.NoError(t, err)
	require.Equal(t, message.RoleSystem, prompt[0].Role, "first message should be pinned header")

	foundState, foundRAG := false, false
	stateIdx, ragIdx := -1, -1
	for i, msg := range prompt {
		if msg.Role == message.RoleState {
			foundState = true
			stateIdx = i
		}
		if msg.Role == message.RoleRAG {
			foundRAG = true
			ragIdx = i
		}
	}
	require.True(t, foundState, "expected a state injection message")
	require.True(t, foundRAG, "expected a rag injection message")
	require.Less(t, stateIdx, ragIdx, "state injection must precede rag injection")
}
