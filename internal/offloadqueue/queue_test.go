package offloadqueue

import (
	"sync"
	"testing"
)

var (
	_ Backend = (*Queue)(nil)
	_ Backend = (*Redis)(nil)
	_ Backend = (*Kafka)(nil)
)

func TestEnqueueDropsWhenFull(t *testing.T) {
	q := New(2)
	if dropped := q.Enqueue(Job{ChunkID: "a"}); dropped {
		t.Fatal("first enqueue should not drop")
	}
	if dropped := q.Enqueue(Job{ChunkID: "b"}); dropped {
		t.Fatal("second enqueue should not drop")
	}
	if dropped := q.Enqueue(Job{ChunkID: "c"}); !dropped {
		t.Fatal("third enqueue should drop at capacity")
	}
	if got := q.Stats().DroppedTotal; got != 1 {
		t.Fatalf("dropped_total = %d, want 1", got)
	}
}

func TestDrainBatchFIFO(t *testing.T) {
	q := New(10)
	q.Enqueue(Job{ChunkID: "a"})
	q.Enqueue(Job{ChunkID: "b"})
	q.Enqueue(Job{ChunkID: "c"})

	batch := q.DrainBatch(2)
	if len(batch) != 2 || batch[0].ChunkID != "a" || batch[1].ChunkID != "b" {
		t.Fatalf("unexpected batch: %+v", batch)
	}
	rest := q.DrainBatch(10)
	if len(rest) != 1 || rest[0].ChunkID != "c" {
		t.Fatalf("unexpected rest: %+v", rest)
	}
}

func TestEnqueueConcurrentNeverExceedsCapacity(t *testing.T) {
	q := New(5)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q.Enqueue(Job{ChunkID: "x"})
		}(i)
	}
	wg.Wait()
	stats := q.Stats()
	if stats.CurrentSize > stats.MaxSize {
		t.Fatalf("current size %d exceeds capacity %d", stats.CurrentSize, stats.MaxSize)
	}
	if stats.CurrentSize+int(stats.DroppedTotal) != 50 {
		t.Fatalf("accepted+dropped = %d, want 50", stats.CurrentSize+int(stats.DroppedTotal))
	}
}
