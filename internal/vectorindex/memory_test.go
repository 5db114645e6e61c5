package vectorindex

import (
	"context"
	"testing"
)

func TestSimilaritySearchRanksByCosine(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(3)
	_ = m.Upsert(ctx, "a", []float32{1, 0, 0}, nil)
	_ = m.Upsert(ctx, "b", []float32{0, 1, 0}, nil)
	_ = m.Upsert(ctx, "c", []float32{0.9, 0.1, 0}, nil)

	results, err := m.SimilaritySearch(ctx, []float32{1, 0, 0}, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].ID != "a" || results[1].ID != "c" {
		t.Fatalf("unexpected ranking: %+v", results)
	}
}

func TestSimilaritySearchFiltersMetadata(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2)
	_ = m.Upsert(ctx, "a", []float32{1, 0}, map[string]string{"session_id": "s1"})
	_ = m.Upsert(ctx, "b", []float32{1, 0}, map[string]string{"session_id": "s2"})

	results, err := m.SimilaritySearch(ctx, []float32{1, 0}, 10, map[string]string{"session_id": "s1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "a" {
		t.Fatalf("filter did not restrict results: %+v", results)
	}
}
