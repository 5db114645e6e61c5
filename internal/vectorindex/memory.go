package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"
)

type entry struct {
	vector   []float32
	metadata map[string]string
}

// Memory is an in-process Store used by tests and single-node deployments.
type Memory struct {
	mu        sync.RWMutex
	points    map[string]entry
	dimension int
}

// NewMemory returns an empty in-memory vector index pinned to dimension d.
func NewMemory(dimension int) *Memory {
	return &Memory{points: make(map[string]entry), dimension: dimension}
}

func (m *Memory) Upsert(_ context.Context, id string, vector []float32, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]float32, len(vector))
	copy(cp, vector)
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	m.points[id] = entry{vector: cp, metadata: md}
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.points, id)
	return nil
}

func (m *Memory) SimilaritySearch(_ context.Context, vector []float32, k int, filter map[string]string) ([]Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 {
		k = 10
	}
	qnorm := norm(vector)
	results := make([]Result, 0, len(m.points))
	for id, e := range m.points {
		if !matchesFilter(e.metadata, filter) {
			continue
		}
		md := make(map[string]string, len(e.metadata))
		for k, v := range e.metadata {
			md[k] = v
		}
		results = append(results, Result{ID: id, Score: cosine(vector, e.vector, qnorm), Metadata: md})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (m *Memory) Dimension() int { return m.dimension }

func matchesFilter(md, filter map[string]string) bool {
	for k, v := range filter {
		if md[k] != v {
			return false
		}
	}
	return true
}

func norm(a []float32) float64 {
	var s float64
	for _, x := range a {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var s float64
	for i := 0; i < n; i++ {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func cosine(a, b []float32, anorm float64) float64 {
	if anorm == 0 {
		anorm = norm(a)
	}
	bnorm := norm(b)
	if anorm == 0 || bnorm == 0 {
		return 0
	}
	return dot(a, b) / (anorm * bnorm)
}
