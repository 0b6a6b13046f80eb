package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"spitbox/core/waveform"
	"spitbox/logger"
)

const waveKeyPrefix = "spitbox:wave:"

// WaveCache stores computed waveform peaks keyed by source URL. With a
// redis client it shares entries across runs; without one it degrades to
// the in-process TTL cache. Cache problems are logged and treated as
// misses, never as errors.
type WaveCache struct {
	rdb *redis.Client // may be nil
	mem *MemoryCache
	ttl time.Duration
}

// NewWaveCache builds a cache over the optional redis client.
func NewWaveCache(rdb *redis.Client, ttl time.Duration) *WaveCache {
	return &WaveCache{
		rdb: rdb,
		mem: NewMemoryCache(ttl),
		ttl: ttl,
	}
}

// GetWave implements waveform.PeaksCache.
func (c *WaveCache) GetWave(ctx context.Context, key string) (*waveform.Wave, bool) {
	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, waveKeyPrefix+key).Bytes()
		if err == nil {
			var w waveform.Wave
			if err := json.Unmarshal(data, &w); err == nil {
				return &w, true
			}
			logger.Warn("discarding corrupt cached wave", logger.String("key", key))
			c.rdb.Del(ctx, waveKeyPrefix+key)
		} else if err != redis.Nil {
			logger.Warn("wave cache read failed", logger.String("key", key), logger.ErrorField(err))
		}
		return nil, false
	}

	v, ok := c.mem.Get(key)
	if !ok {
		return nil, false
	}
	w, ok := v.(*waveform.Wave)
	return w, ok
}

// SetWave implements waveform.PeaksCache.
func (c *WaveCache) SetWave(ctx context.Context, key string, w *waveform.Wave) {
	if c.rdb != nil {
		data, err := json.Marshal(w)
		if err != nil {
			logger.Error("failed to marshal wave for cache", logger.ErrorField(err))
			return
		}
		if err := c.rdb.Set(ctx, waveKeyPrefix+key, data, c.ttl).Err(); err != nil {
			logger.Warn("wave cache write failed", logger.String("key", key), logger.ErrorField(err))
		}
		return
	}
	c.mem.Set(key, w)
}
