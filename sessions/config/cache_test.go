// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package config

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfigCache_DefaultTTL(t *testing.T) {
	c := NewConfigCache(0)
	assert.NotNil(t, c.cache)
	assert.Equal(t, CacheStats{}, c.GetStats())
}

func TestConfigCache_GetSet(t *testing.T) {
	c := NewConfigCache(time.Minute)

	_, ok := c.Get("a")
	assert.False(t, ok)

	cfg := &Config{Version: "1"}
	cfg.ApplyDefaults()
	c.Set("a", cfg)

	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", got.Version)

	// Cached values are copies.
	got.Version = "2"
	again, _ := c.Get("a")
	assert.Equal(t, "1", again.Version)

	stats := c.GetStats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestConfigCache_Expiry(t *testing.T) {
	c := NewConfigCache(20 * time.Millisecond)
	c.Set("a", &Config{})

	time.Sleep(50 * time.Millisecond)
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestConfigCache_Invalidate(t *testing.T) {
	c := NewConfigCache(time.Minute)
	c.Set("a", &Config{})
	c.Set("b", &Config{})

	c.Invalidate("a")
	c.Invalidate("missing")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.GetStats().Evictions)

	c.InvalidateAll()
	_, ok = c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, int64(2), c.GetStats().Evictions)
	assert.Equal(t, 0, c.GetStats().Entries)
}

func TestConfigCache_HitRate(t *testing.T) {
	c := NewConfigCache(time.Minute)
	assert.Equal(t, 0.0, c.HitRate())

	c.Set("a", &Config{})
	c.Get("a")
	c.Get("a")
	c.Get("a")
	c.Get("missing")
	assert.InDelta(t, 75.0, c.HitRate(), 0.001)
}

func TestConfigCache_ConcurrentAccess(t *testing.T) {
	c := NewConfigCache(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				c.Set("shared", &Config{})
			} else {
				c.Get("shared")
			}
			c.GetStats()
		}(i)
	}
	wg.Wait()
}
