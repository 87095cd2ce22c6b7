// Package verdictcache stores recent guardrail decisions in Redis, keyed by
// a content hash. Scoring is deterministic per model version, so replaying a
// cached verdict for identical input is sound and avoids repeated model
// spend.
package verdictcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/af-corp/foodguard-gateway/internal/types"
)

const keyPrefix = "foodguard:verdict:"

type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a cache. A nil client disables caching entirely; every lookup
// misses and every store is a no-op.
func New(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

// Key derives the cache key for a request: a hash over the prompt and the
// image bytes. Identical content always maps to the same key.
func Key(req *types.GuardRequest) string {
	h := sha256.New()
	h.Write([]byte(req.Prompt))
	h.Write([]byte{0})
	if len(req.ImageBytes) > 0 {
		imgSum := sha256.Sum256(req.ImageBytes)
		h.Write(imgSum[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cache) Get(ctx context.Context, key string) (*types.Verdict, bool) {
	if c.rdb == nil {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	var v types.Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false
	}
	return &v, true
}

func (c *Cache) Put(ctx context.Context, key string, v *types.Verdict) {
	if c.rdb == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, keyPrefix+key, data, c.ttl)
}
