// Package session provides the process-wide session registry that replaces
// module-level singletons: a Map<session_id, Session>. Each entry owns one
// contextmgr.Manager plus the echo-guard ring for that conversation.
package session

import (
	"sync"

	"vicw/internal/contextmgr"
	"vicw/internal/echoguard"
	"vicw/internal/graphstore"
	"vicw/internal/offloadqueue"
	"vicw/internal/tokenizer"
)

// Session bundles the hot-path state that is scoped to one conversation.
type Session struct {
	ID      string
	Context *contextmgr.Manager
	Echo    *echoguard.Ring

	mu     sync.Mutex
	paused bool // pause latch: set while an LLM generation is in flight
}

// Pause signals the cold worker to yield for this session's in-flight
// generation.
func (s *Session) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume clears the pause latch.
func (s *Session) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

// Paused reports the current latch state; polled by the cold worker.
func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Factory builds the per-session dependencies the registry needs to create
// a brand new Session on first use.
type Factory struct {
	PinnedHeader string
	Config       contextmgr.Config
	Tokenizer    tokenizer.Estimator
	Queue        offloadqueue.Backend
	Graph        graphstore.Graph
	EchoRingSize int
}

// Registry is the process-wide Map<session_id, Session>, guarded by its own
// mutex; individual Sessions have their own locks for the hot path proper,
// so registry contention only happens on first-touch of a session id.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	factory  Factory
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{sessions: make(map[string]*Session), factory: factory}
}

// GetOrCreate returns the Session for id, creating it on first use.
func (r *Registry) GetOrCreate(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s
	}
	s := &Session{
		ID: id,
		Context: contextmgr.New(id, r.factory.PinnedHeader, r.factory.Config, r.factory.Tokenizer,
			r.factory.Queue, r.factory.Graph),
		Echo: echoguard.NewRing(r.factory.EchoRingSize),
	}
	r.sessions[id] = s
	return s
}

// Delete removes a session (e.g. on explicit session teardown). POST /reset
// does not call this — it clears the Manager's messages in place instead.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Len reports the number of known sessions, for diagnostics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// AnyPaused reports whether at least one known session currently holds the
// pause latch, giving the cold worker's PauseSignal a simple global view
// without requiring it to track sessions itself.
func (r *Registry) AnyPaused() bool {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()
	for _, s := range sessions {
		if s.Paused() {
			return true
		}
	}
	return false
}
