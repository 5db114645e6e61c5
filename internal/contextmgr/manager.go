// Package contextmgr implements the context manager, the hot-path core
// of the system. It owns the pinned header, the live message window, and
// the pressure-control loop with hysteresis. Every mutation acquires
// a single per-session mutex, so one conversation's mutable state is
// always guarded by exactly one lock.
package contextmgr

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"vicw/internal/graphstore"
	"vicw/internal/message"
	"vicw/internal/offloadqueue"
	"vicw/internal/tokenizer"
)

// StateCaps bound how many active states of each type are injected per turn
// (defaults: goal 2, task 3, decision 2, fact 3).
type StateCaps struct {
	Goal, Task, Decision, Fact int
}

// Config holds the pressure-control thresholds and state-injection knobs
// that parameterize a Manager.
type Config struct {
	TMax                 int
	ThetaTrigger         float64
	ThetaTarget          float64
	ThetaResume          float64
	StateCaps            StateCaps
	RecentlyCompletedCap int
	BoredomThreshold     int
	BoredomEnabled       bool
	StateTrackingEnabled bool
}

// OffloadEvent reports a shed triggered by add_message.
type OffloadEvent struct {
	ChunkID      string
	TokensBefore int
	TokensAfter  int
	Duration     time.Duration
}

// Manager is the per-session hot-path core. All exported methods are safe
// for concurrent use; callers driving the same session serialize naturally
// through mu.
type Manager struct {
	mu sync.Mutex

	sessionID    string
	cfg          Config
	tok          tokenizer.Estimator
	queue        offloadqueue.Backend
	graph        graphstore.Graph // nil disables state injection even if StateTrackingEnabled
	pinnedHeader message.Message

	messages   []message.Message
	suppressed bool // set by a shed; cleared once AddMessage sees current/T_max <= theta_resume

	offloadCount int
}

// New constructs a Manager for one session. pinnedHeader is frozen for the
// lifetime of the session (never shed, never mutated).
func New(sessionID, pinnedHeader string, cfg Config, tok tokenizer.Estimator, queue offloadqueue.Backend, graph graphstore.Graph) *Manager {
	now := time.Now()
	return &Manager{
		sessionID: sessionID,
		cfg:       cfg,
		tok:       tok,
		queue:     queue,
		graph:     graph,
		pinnedHeader: message.Message{
			Role:       message.RoleSystem,
			Content:    pinnedHeader,
			Timestamp:  now,
			TokenCount: tok.Estimate(pinnedHeader),
		},
	}
}

// currentTokens sums token_count over pinned header + live messages. Caller
// must hold mu.
func (m *Manager) currentTokens() int {
	total := m.pinnedHeader.TokenCount
	for _, msg := range m.messages {
		total += msg.TokenCount
	}
	return total
}

// AddMessage appends a message, estimating its token cost, then evaluates
// pressure and performs a synchronous, non-blocking shed if required.
func (m *Manager) AddMessage(role message.Role, content string) (*OffloadEvent, error) {
	start := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := message.Message{
		Role:       role,
		Content:    content,
		Timestamp:  start,
		TokenCount: m.tok.Estimate(content),
	}
	m.messages = append(m.messages, msg)

	before := m.currentTokens()
	ratio := float64(before) / float64(m.cfg.TMax)

	if ratio < m.cfg.ThetaTrigger || m.suppressed {
		m.clearSuppressionIfBelowResume(before)
		return nil, nil
	}

	event, err := m.shed(start)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, nil
	}
	event.Duration = time.Since(start)
	return event, nil
}

func (m *Manager) clearSuppressionIfBelowResume(current int) {
	if m.suppressed && float64(current)/float64(m.cfg.TMax) <= m.cfg.ThetaResume {
		m.suppressed = false
	}
}

// shed removes a contiguous prefix of live messages (oldest first, excluding
// the pinned header) until current/T_max ≤ θ_target, forming exactly one
// Chunk and installing one placeholder message in its place. Caller must
// hold mu. Performs no I/O: the job is handed to the bounded queue, which
// never blocks.
func (m *Manager) shed(now time.Time) (*OffloadEvent, error) {
	before := m.currentTokens()
	targetTokens := int(m.cfg.ThetaTarget * float64(m.cfg.TMax))

	// Always keep at least the last user+assistant exchange (the last two
	// persistable messages) in the live window, even if that alone exceeds
	// theta_target — the overshoot is accepted in that case.
	keepFrom := len(m.messages)
	persistableSeen := 0
	for i := len(m.messages) - 1; i >= 0; i-- {
		keepFrom = i
		if m.messages[i].Persistable() {
			persistableSeen++
			if persistableSeen >= 2 {
				break
			}
		}
	}

	// Remove a contiguous prefix starting at index 0 (oldest first),
	// growing it only as far as needed to reach targetTokens and never past
	// the protected tail at keepFrom.
	needed := before - targetTokens
	removeEnd := 0
	removedSoFar := 0
	for removeEnd < keepFrom && removedSoFar < needed {
		removedSoFar += m.messages[removeEnd].TokenCount
		removeEnd++
	}

	if removeEnd == 0 {
		// Nothing removable without touching the protected tail: a shed
		// that would produce an empty chunk is a no-op.
		return nil, nil
	}

	removed := make([]message.Message, removeEnd)
	copy(removed, m.messages[:removeEnd])

	var persistable []message.Message
	var removedTokens int
	for _, msg := range removed {
		removedTokens += msg.TokenCount
		if msg.Persistable() {
			persistable = append(persistable, msg)
		}
	}
	if len(persistable) == 0 {
		return nil, nil
	}

	chunkID := uuid.NewString()
	placeholder := message.Message{
		Role:       message.RoleSystem,
		Content:    fmt.Sprintf("[ARCHIVED mem_id:%s]", chunkID),
		Timestamp:  now,
	}
	placeholder.TokenCount = m.tok.Estimate(placeholder.Content)

	rest := make([]message.Message, len(m.messages)-removeEnd)
	copy(rest, m.messages[removeEnd:])
	m.messages = append([]message.Message{placeholder}, rest...)

	pinnedSnapshot := m.pinnedHeader.Content
	dropped := m.queue.Enqueue(offloadqueue.Job{
		ChunkID:              chunkID,
		SessionID:            m.sessionID,
		Messages:             persistable,
		PinnedHeaderSnapshot: pinnedSnapshot,
		CreatedAt:            now,
	})
	_ = dropped // surfaced via queue.Stats().DroppedTotal for /stats; hot path continues regardless

	m.offloadCount++
	m.suppressed = true

	return &OffloadEvent{
		ChunkID:      chunkID,
		TokensBefore: before,
		TokensAfter:  m.currentTokens(),
	}, nil
}

// RollbackLastAssistant removes the most recently appended assistant turn
// and reverses its token-counter contribution, for use by the echo guard
// when a candidate response is rejected and must not remain in context.
func (m *Manager) RollbackLastAssistant() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].Role == message.RoleAssistant {
			m.messages = append(m.messages[:i], m.messages[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("no assistant message to roll back")
}

// Stats reports the fields GET /stats needs for the context section.
type Stats struct {
	CurrentTokens      int
	MaxTokens          int
	MessageCount       int
	OffloadCount       int
	PressurePercentage float64
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := m.currentTokens()
	return Stats{
		CurrentTokens:      current,
		MaxTokens:          m.cfg.TMax,
		MessageCount:       len(m.messages),
		OffloadCount:       m.offloadCount,
		PressurePercentage: 100 * float64(current) / float64(m.cfg.TMax),
	}
}

// Reset clears live messages (POST /reset semantics): persistent stores
// are untouched, only the in-memory window and suppression state clear.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
	m.suppressed = false
	m.offloadCount = 0
}

// SessionID returns the owning session's identifier.
func (m *Manager) SessionID() string { return m.sessionID }
