package tokenizer

import "testing"

func TestHeuristicEstimateMonotone(t *testing.T) {
	h := Heuristic{}
	prev := h.Estimate("")
	s := ""
	for i := 0; i < 50; i++ {
		s += "x"
		cur := h.Estimate(s)
		if cur < prev {
			t.Fatalf("estimate not monotone at len %d: prev=%d cur=%d", i, prev, cur)
		}
		prev = cur
	}
}

func TestHeuristicEstimateDeterministic(t *testing.T) {
	h := Heuristic{}
	const text = "the quick brown fox jumps over the lazy dog"
	a := h.Estimate(text)
	b := h.Estimate(text)
	if a != b {
		t.Fatalf("estimate not deterministic: %d != %d", a, b)
	}
}

func TestHeuristicEmpty(t *testing.T) {
	if got := (Heuristic{}).Estimate(""); got != 0 {
		t.Fatalf("expected 0 tokens for empty string, got %d", got)
	}
}
