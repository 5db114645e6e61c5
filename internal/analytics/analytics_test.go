package analytics

import "testing"

func TestRingRecentReturnsNewestLast(t *testing.T) {
	r := NewRing(3)
	r.Record(Event{SessionID: "a"})
	r.Record(Event{SessionID: "b"})
	r.Record(Event{SessionID: "c"})
	r.Record(Event{SessionID: "d"}) // overwrites "a"

	recent := r.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("len(recent) = %d, want 3", len(recent))
	}
	if recent[0].SessionID != "b" || recent[1].SessionID != "c" || recent[2].SessionID != "d" {
		t.Fatalf("unexpected order: %+v", recent)
	}
}

func TestRingRecentCapsAtAvailableSamples(t *testing.T) {
	r := NewRing(10)
	r.Record(Event{SessionID: "a"})
	r.Record(Event{SessionID: "b"})

	if got := r.Recent(100); len(got) != 2 {
		t.Fatalf("len(Recent(100)) = %d, want 2", len(got))
	}
}

func TestSummarizeAggregatesEvents(t *testing.T) {
	r := NewRing(10)
	r.Record(Event{PressureRatio: 0.5, QueueDepth: 1, RAGItemsInjected: 2})
	r.Record(Event{PressureRatio: 0.9, QueueDepth: 4, EchoRegenerated: true})
	r.Record(Event{PressureRatio: 0.7, QueueDepth: 2, EchoExhausted: true, RAGItemsInjected: 1})

	s := r.Summarize()
	if s.SampleCount != 3 {
		t.Fatalf("SampleCount = %d, want 3", s.SampleCount)
	}
	if s.MaxPressure != 0.9 {
		t.Fatalf("MaxPressure = %v, want 0.9", s.MaxPressure)
	}
	if s.MaxQueueDepth != 4 {
		t.Fatalf("MaxQueueDepth = %d, want 4", s.MaxQueueDepth)
	}
	if s.EchoRegenerated != 1 || s.EchoExhausted != 1 {
		t.Fatalf("echo counters = %+v", s)
	}
	if s.RAGItemsInjected != 3 {
		t.Fatalf("RAGItemsInjected = %d, want 3", s.RAGItemsInjected)
	}
	wantAvg := (0.5 + 0.9 + 0.7) / 3
	if s.AvgPressure != wantAvg {
		t.Fatalf("AvgPressure = %v, want %v", s.AvgPressure, wantAvg)
	}
}

func TestMultiSinkFansOutToEverySink(t *testing.T) {
	a := NewRing(5)
	b := NewRing(5)
	m := NewMultiSink(a, b, nil) // nil sink must be skipped without panicking

	m.Record(Event{SessionID: "x"})

	if a.Summarize().SampleCount != 1 || b.Summarize().SampleCount != 1 {
		t.Fatal("expected both rings to receive the event")
	}
}

func TestSanitizeIdentifierRejectsInvalidInput(t *testing.T) {
	if _, err := sanitizeIdentifier(""); err == nil {
		t.Fatal("expected error for empty identifier")
	}
	if _, err := sanitizeIdentifier("events; DROP TABLE x"); err == nil {
		t.Fatal("expected error for identifier with invalid characters")
	}
	got, err := sanitizeIdentifier(" vicw_events ")
	if err != nil || got != "vicw_events" {
		t.Fatalf("sanitizeIdentifier = %q, %v", got, err)
	}
}
