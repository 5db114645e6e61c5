package echoguard

import "testing"

func TestRingEvictsOldestBeyondCapacity(t *testing.T) {
	r := NewRing(3)
	r.Push(Entry{Embedding: []float32{1, 0}})
	r.Push(Entry{Embedding: []float32{0, 1}})
	r.Push(Entry{Embedding: []float32{1, 1}})
	if r.Len() != 3 {
		t.Fatalf("len = %d, want 3", r.Len())
	}
	r.Push(Entry{Embedding: []float32{0, 0.5}})
	if r.Len() != 3 {
		t.Fatalf("len after overflow = %d, want 3", r.Len())
	}
}

func TestEvaluateRejectsNearDuplicate(t *testing.T) {
	r := NewRing(10)
	r.Push(Entry{Embedding: []float32{1, 0, 0}})
	v := r.Evaluate([]float32{1, 0, 0}, 0.95)
	if v.Accept {
		t.Fatal("identical embedding should be rejected as an echo")
	}
	v2 := r.Evaluate([]float32{0, 1, 0}, 0.95)
	if !v2.Accept {
		t.Fatal("orthogonal embedding should be accepted")
	}
}

func TestTierEscalation(t *testing.T) {
	if TierForAttempt(2) != TierPolite {
		t.Fatal("attempt 2 should be polite tier")
	}
	if TierForAttempt(3) != TierForceful {
		t.Fatal("attempt 3 should be forceful tier")
	}
	if TierForAttempt(4) != TierEmergency {
		t.Fatal("attempt 4 should be emergency tier")
	}
	_, override := Warning(TierEmergency)
	if !override {
		t.Fatal("emergency tier must request a prompt override")
	}
}
