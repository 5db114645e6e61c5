package coldworker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vicw/internal/chunkstore"
	"vicw/internal/embedder"
	"vicw/internal/graphstore"
	"vicw/internal/message"
	"vicw/internal/offloadqueue"
	"vicw/internal/semantic"
	"vicw/internal/vectorindex"
)

func newTestManager() *semantic.Manager {
	estimate := func(s string) int {
		n := len(s) / 4
		if n < 1 {
			n = 1
		}
		return n
	}
	return semantic.NewManager(
		semantic.Config{LeadSentences: 2, TailSentences: 1, MaxSummaryTokens: 64, StateTrackingEnabled: true},
		chunkstore.NewMemory(), vectorindex.NewMemory(8), graphstore.NewMemory(),
		embedder.NewDeterministic(8, true, 3), estimate,
	)
}

func TestWorkerProcessesDrainedJobs(t *testing.T) {
	q := offloadqueue.New(10)
	for i := 0; i < 3; i++ {
		q.Enqueue(offloadqueue.Job{
			ChunkID:   "chunk-" + string(rune('a'+i)),
			SessionID: "s1",
			Messages:  []message.Message{{Role: message.RoleUser, Content: "hello there", TokenCount: 2}},
			CreatedAt: time.Now(),
		})
	}

	w := New(q, newTestManager(), nil, 5*time.Millisecond, 8, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go w.Run(ctx)

	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		if w.Stats(true).ProcessedCount >= 3 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	stats := w.Stats(true)
	if stats.ProcessedCount < 3 {
		t.Fatalf("expected all 3 jobs processed, got %d", stats.ProcessedCount)
	}
}

func TestWorkerDoesNotDrainWhilePaused(t *testing.T) {
	q := offloadqueue.New(10)
	q.Enqueue(offloadqueue.Job{ChunkID: "chunk-x", SessionID: "s1", Messages: []message.Message{{Role: message.RoleUser, Content: "hi", TokenCount: 1}}, CreatedAt: time.Now()})

	var paused int32 = 1
	w := New(q, newTestManager(), func() bool { return atomic.LoadInt32(&paused) == 1 }, 5*time.Millisecond, 8, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	go w.Run(ctx)

	time.Sleep(40 * time.Millisecond)
	if w.Stats(true).ProcessedCount != 0 {
		t.Fatalf("expected no jobs processed while paused, got %d", w.Stats(true).ProcessedCount)
	}
	if q.Stats().CurrentSize != 1 {
		t.Fatalf("expected job to remain queued while paused, got size %d", q.Stats().CurrentSize)
	}
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	q := offloadqueue.New(10)
	w := New(q, newTestManager(), nil, 5*time.Millisecond, 8, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}
