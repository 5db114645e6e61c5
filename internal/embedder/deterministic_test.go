package embedder

import (
	"context"
	"testing"
)

func TestDeterministicIsDeterministic(t *testing.T) {
	d := NewDeterministic(32, true, 7)
	ctx := context.Background()
	a, err := d.EmbedBatch(ctx, []string{"hello world"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := d.EmbedBatch(ctx, []string{"hello world"})
	if err != nil {
		t.Fatal(err)
	}
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("embedding not deterministic at index %d: %v vs %v", i, a[0][i], b[0][i])
		}
	}
}

func TestDeterministicDimensionMatchesConfig(t *testing.T) {
	d := NewDeterministic(16, false, 0)
	out, err := d.EmbedBatch(context.Background(), []string{"x"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out[0]) != 16 {
		t.Fatalf("dimension = %d, want 16", len(out[0]))
	}
}
