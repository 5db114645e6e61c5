package retrieval

import "testing"

func TestEncodeDecodeFloat32sRoundTrips(t *testing.T) {
	vec := []float32{0.1, -2.5, 3.75, 0}
	raw := encodeFloat32s(vec)
	got := decodeFloat32s(raw)
	if len(got) != len(vec) {
		t.Fatalf("len = %d, want %d", len(got), len(vec))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Fatalf("got[%d] = %v, want %v", i, got[i], vec[i])
		}
	}
}

func TestNilRedisEmbeddingCacheIsNoOp(t *testing.T) {
	var c *RedisEmbeddingCache
	if _, ok := c.Get(nil, "q"); ok {
		t.Fatal("expected miss on nil cache")
	}
	c.Set(nil, "q", []float32{1}) // must not panic
}
