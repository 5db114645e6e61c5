// Package graphstore is a minimal property graph holding Chunk and Entity
// nodes plus first-class State nodes used by the loop-prevention state
// machine. The interface stays at six methods, splitting generic node/edge
// CRUD from store-specific querying.
package graphstore

import (
	"context"
	"time"
)

// StateType enumerates the four kinds of tracked conversational state.
type StateType string

const (
	StateGoal     StateType = "goal"
	StateTask     StateType = "task"
	StateDecision StateType = "decision"
	StateFact     StateType = "fact"
)

// StateStatus is the lifecycle of a State node.
type StateStatus string

const (
	StatusActive    StateStatus = "active"
	StatusCompleted StateStatus = "completed"
	StatusInvalid   StateStatus = "invalid"
)

// State is a first-class node tracking a goal/task/decision/fact across
// turns. Namespace scopes the node to a session: this implementation
// chooses per-session namespacing (see DESIGN.md) so two sessions never
// collide on a fuzzy-matched description.
type State struct {
	StateID       string
	Namespace     string // typically the session_id
	StateType     StateType
	Description   string // normalized form: lowercased, trimmed, articles stripped
	RawDescription string
	Status        StateStatus
	VisitCount    int
	LastVisited   time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Node is a minimal generic node, used for Chunk and Entity records that
// don't need the richer State query surface.
type Node struct {
	ID     string
	Labels []string
	Props  map[string]any
}

// Triple is a formatted relational-search hit, e.g. "(A)-[:MENTIONS]->(B)".
type Triple struct {
	Text      string
	CreatedAt time.Time
}

// StateFilter selects States for injection or lookup.
type StateFilter struct {
	Namespace string
	StateType StateType   // zero value matches any type
	Status    StateStatus // zero value matches any status
	Limit     int         // 0 = unbounded
}

// Graph is the interface the core depends on. Generic node/edge CRUD
// covers Chunk and Entity; UpsertState/QueryStates/IncrementVisit/
// RelationalSearch cover the state machine and retrieval coordinator,
// keeping the interface at six methods.
// GetNode is deliberately not part of this interface — nothing in the core
// needs single-node lookup by id; concrete backends may still expose it.
type Graph interface {
	// UpsertNode creates or replaces a generic node (Chunk, Entity, …).
	UpsertNode(ctx context.Context, id string, labels []string, props map[string]any) error
	// UpsertEdge creates an edge if absent; duplicate edges are no-ops.
	UpsertEdge(ctx context.Context, srcID, rel, dstID string, props map[string]any) error
	// UpsertState fuzzy-matches candidate against existing states of the
	// same type/namespace, then creates or transitions it. Implementations
	// own the fuzzy-match + status-transition bookkeeping so the invariant
	// (one node per fuzzy-equivalent description) holds atomically under
	// concurrent cold-path writers.
	UpsertState(ctx context.Context, candidate State) (State, error)
	// QueryStates returns states matching filter, most-recently-updated
	// first. Used both for hot-path injection and by tests asserting the
	// loop-prevention invariants.
	QueryStates(ctx context.Context, filter StateFilter) ([]State, error)
	// IncrementVisit bumps visit_count and last_visited for a state injected
	// into a prompt; resets only happen via UpsertState's status transition.
	IncrementVisit(ctx context.Context, stateID string) error
	// RelationalSearch performs a substring match over node name/summary
	// fields, returning up to limit formatted triples.
	RelationalSearch(ctx context.Context, query string, limit int) ([]Triple, error)
}
