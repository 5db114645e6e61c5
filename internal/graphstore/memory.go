package graphstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type edgeKey struct{ src, rel string }

// Memory is an in-process Graph used by tests and single-node deployments,
// extended with a dedicated State index so QueryStates doesn't need a full
// node scan per call.
type Memory struct {
	mu     sync.RWMutex
	nodes  map[string]Node
	edges  map[edgeKey]map[string]map[string]any
	states map[string]State // state_id -> State
	now    func() time.Time
}

// NewMemory returns an empty in-memory graph. now defaults to time.Now and
// is overridable for deterministic tests of visit-count/status timestamps.
func NewMemory() *Memory {
	return &Memory{
		nodes:  make(map[string]Node),
		edges:  make(map[edgeKey]map[string]map[string]any),
		states: make(map[string]State),
		now:    time.Now,
	}
}

func (m *Memory) UpsertNode(_ context.Context, id string, labels []string, props map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]any, len(props))
	for k, v := range props {
		cp[k] = v
	}
	m.nodes[id] = Node{ID: id, Labels: append([]string{}, labels...), Props: cp}
	return nil
}

func (m *Memory) UpsertEdge(_ context.Context, srcID, rel, dstID string, props map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := edgeKey{src: srcID, rel: rel}
	if m.edges[key] == nil {
		m.edges[key] = make(map[string]map[string]any)
	}
	cp := make(map[string]any, len(props))
	for k, v := range props {
		cp[k] = v
	}
	m.edges[key][dstID] = cp
	return nil
}

func (m *Memory) GetNode(_ context.Context, id string) (Node, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	return n, ok, nil
}

// UpsertState fuzzy-matches candidate against the in-memory index and
// either creates a new State or transitions an existing one.
func (m *Memory) UpsertState(_ context.Context, candidate State) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	norm := Normalize(candidate.Description)
	now := m.now()

	for id, existing := range m.states {
		if existing.Namespace != candidate.Namespace || existing.StateType != candidate.StateType {
			continue
		}
		if !FuzzyEqual(existing.Description, norm) {
			continue
		}
		if existing.Status == StatusActive && (candidate.Status == StatusCompleted || candidate.Status == StatusInvalid) {
			existing.Status = candidate.Status
			existing.VisitCount = 0
			existing.UpdatedAt = now
			m.states[id] = existing
			return existing, nil
		}
		// Statuses already agree (or a completed/invalid state saw another
		// mention): no-op transition, but record evidence of the mention.
		existing.UpdatedAt = now
		m.states[id] = existing
		return existing, nil
	}

	if candidate.StateID == "" {
		candidate.StateID = uuid.NewString()
	}
	candidate.Description = norm
	candidate.VisitCount = 0
	candidate.CreatedAt = now
	candidate.UpdatedAt = now
	m.states[candidate.StateID] = candidate
	return candidate, nil
}

func (m *Memory) QueryStates(_ context.Context, filter StateFilter) ([]State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []State
	for _, s := range m.states {
		if filter.Namespace != "" && s.Namespace != filter.Namespace {
			continue
		}
		if filter.StateType != "" && s.StateType != filter.StateType {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// IncrementVisit bumps visit_count and last_visited for a state injected
// into a prompt. It is part of the Graph interface; the context manager's
// state injection calls it through its Graph.
func (m *Memory) IncrementVisit(_ context.Context, stateID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[stateID]
	if !ok {
		return fmt.Errorf("state %s not found", stateID)
	}
	s.VisitCount++
	s.LastVisited = m.now()
	m.states[stateID] = s
	return nil
}

func (m *Memory) RelationalSearch(_ context.Context, query string, limit int) ([]Triple, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(query)
	var hits []Triple
	for key, dsts := range m.edges {
		if !strings.Contains(strings.ToLower(key.src), q) && !strings.Contains(strings.ToLower(key.rel), q) {
			matchAny := false
			for dst := range dsts {
				if strings.Contains(strings.ToLower(dst), q) {
					matchAny = true
					break
				}
			}
			if !matchAny {
				continue
			}
		}
		for dst := range dsts {
			hits = append(hits, Triple{
				Text:      fmt.Sprintf("(%s)-[:%s]->(%s)", key.src, key.rel, dst),
				CreatedAt: m.nodeCreatedAt(key.src),
			})
		}
	}
	for id, n := range m.nodes {
		if strings.Contains(strings.ToLower(id), q) || containsProp(n.Props, q) {
			hits = append(hits, Triple{Text: fmt.Sprintf("(%s)", id), CreatedAt: m.nodeCreatedAt(id)})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].CreatedAt.After(hits[j].CreatedAt) })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *Memory) nodeCreatedAt(id string) time.Time {
	if n, ok := m.nodes[id]; ok {
		if ts, ok := n.Props["created_at"].(time.Time); ok {
			return ts
		}
	}
	return time.Time{}
}

func containsProp(props map[string]any, q string) bool {
	for _, v := range props {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}
