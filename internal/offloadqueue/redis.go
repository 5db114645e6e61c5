package offloadqueue

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a Redis-list-backed Backend, grounded on the
// teacher's redis.UniversalClient wiring in internal/skills/redis_cache.go.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	ListKey  string // Redis key holding the job list, default "vicw:offload"
	Capacity int    // Q_max, enforced with an LLEN check before LPUSH
}

// Redis is a Backend over a single Redis list: producers LPUSH (never
// BLPOP, so Enqueue always returns immediately) after checking LLEN against
// capacity; the cold worker RPOPs in FIFO order. This makes the queue
// durable across process restarts and shareable by multiple producer
// processes, unlike the in-memory Queue.
type Redis struct {
	client   redis.UniversalClient
	listKey  string
	capacity int

	processedTotal uint64
	droppedTotal   uint64
}

func NewRedis(cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	listKey := cfg.ListKey
	if listKey == "" {
		listKey = "vicw:offload"
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = 100
	}
	return &Redis{client: client, listKey: listKey, capacity: capacity}, nil
}

// Enqueue never blocks: it checks LLEN first and drops rather than pushing
// past capacity, preserving I6 even though Redis itself has no bounded-list
// primitive.
func (r *Redis) Enqueue(job Job) (dropped bool) {
	ctx := context.Background()
	n, err := r.client.LLen(ctx, r.listKey).Result()
	if err != nil || int(n) >= r.capacity {
		atomic.AddUint64(&r.droppedTotal, 1)
		return true
	}
	payload, err := json.Marshal(job)
	if err != nil {
		atomic.AddUint64(&r.droppedTotal, 1)
		return true
	}
	if err := r.client.LPush(ctx, r.listKey, payload).Err(); err != nil {
		atomic.AddUint64(&r.droppedTotal, 1)
		return true
	}
	return false
}

// DrainBatch pops up to n jobs from the tail (RPOP), preserving FIFO order
// relative to LPUSH producers.
func (r *Redis) DrainBatch(n int) []Job {
	if n <= 0 {
		return nil
	}
	ctx := context.Background()
	out := make([]Job, 0, n)
	for i := 0; i < n; i++ {
		raw, err := r.client.RPop(ctx, r.listKey).Bytes()
		if err != nil {
			break // redis.Nil (empty list) or a transient error: stop draining
		}
		var job Job
		if err := json.Unmarshal(raw, &job); err != nil {
			continue
		}
		out = append(out, job)
	}
	if len(out) > 0 {
		atomic.AddUint64(&r.processedTotal, uint64(len(out)))
	}
	return out
}

func (r *Redis) Stats() Stats {
	n, _ := r.client.LLen(context.Background(), r.listKey).Result()
	return Stats{
		CurrentSize:    int(n),
		MaxSize:        r.capacity,
		ProcessedTotal: atomic.LoadUint64(&r.processedTotal),
		DroppedTotal:   atomic.LoadUint64(&r.droppedTotal),
	}
}

// Close releases the underlying client connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
