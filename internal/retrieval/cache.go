package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// EmbeddingCache avoids re-embedding the same RAG query repeatedly within a
// session (e.g. a user re-asking a near-identical question). A nil cache is
// a valid no-op: Coordinator always checks before using one.
type EmbeddingCache interface {
	Get(ctx context.Context, query string) ([]float32, bool)
	Set(ctx context.Context, query string, vector []float32)
}

// RedisEmbeddingCache is a Redis-backed EmbeddingCache, grounded on the
// teacher's RedisSkillsCache (nil-safe methods, get-or-miss, a TTL per
// entry) generalized from caching rendered prompts to caching query vectors.
type RedisEmbeddingCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisEmbeddingCache builds a cache against addr. Returns nil when addr
// is empty so callers can unconditionally wire the result as an optional
// EmbeddingCache.
func NewRedisEmbeddingCache(addr, password string, db int, ttl time.Duration) (*RedisEmbeddingCache, error) {
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis embedding cache ping: %w", err)
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisEmbeddingCache{client: client, ttl: ttl}, nil
}

func (c *RedisEmbeddingCache) key(query string) string {
	sum := sha256.Sum256([]byte(query))
	return "vicw:embedcache:" + hex.EncodeToString(sum[:])
}

// Get returns the cached vector for query, if present and not expired.
func (c *RedisEmbeddingCache) Get(ctx context.Context, query string) ([]float32, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, c.key(query)).Bytes()
	if err != nil {
		return nil, false
	}
	return decodeFloat32s(raw), true
}

// Set caches the vector for query under the configured TTL.
func (c *RedisEmbeddingCache) Set(ctx context.Context, query string, vector []float32) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Set(ctx, c.key(query), encodeFloat32s(vector), c.ttl).Err()
}

func encodeFloat32s(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeFloat32s(raw []byte) []float32 {
	n := len(raw) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}
