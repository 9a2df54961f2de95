// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultCacheTTL is how long a parsed configuration is reused.
const DefaultCacheTTL = 30 * time.Second

// ConfigCache provides thread-safe caching of parsed configurations keyed
// by source location, with a TTL.
type ConfigCache struct {
	cache *gocache.Cache
	stats cacheCounters
}

type cacheCounters struct {
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// CacheStats tracks cache performance metrics
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
}

// NewConfigCache creates a new configuration cache with the specified TTL
func NewConfigCache(ttl time.Duration) *ConfigCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ConfigCache{
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Get returns a copy of the cached config for key.
func (c *ConfigCache) Get(key string) (*Config, bool) {
	v, found := c.cache.Get(key)
	if !found {
		c.stats.misses.Add(1)
		return nil, false
	}
	cfg, ok := v.(*Config)
	if !ok {
		c.stats.misses.Add(1)
		return nil, false
	}
	c.stats.hits.Add(1)
	return cfg.Clone(), true
}

// Set caches cfg under key with the default TTL.
func (c *ConfigCache) Set(key string, cfg *Config) {
	c.cache.SetDefault(key, cfg.Clone())
}

// Invalidate drops the entry for key.
func (c *ConfigCache) Invalidate(key string) {
	if _, found := c.cache.Get(key); found {
		c.stats.evictions.Add(1)
	}
	c.cache.Delete(key)
}

// InvalidateAll drops every entry.
func (c *ConfigCache) InvalidateAll() {
	c.stats.evictions.Add(int64(c.cache.ItemCount()))
	c.cache.Flush()
}

// GetStats returns a copy of the current statistics.
func (c *ConfigCache) GetStats() CacheStats {
	return CacheStats{
		Hits:      c.stats.hits.Load(),
		Misses:    c.stats.misses.Load(),
		Evictions: c.stats.evictions.Load(),
		Entries:   c.cache.ItemCount(),
	}
}

// HitRate returns the cache hit rate as a percentage
func (c *ConfigCache) HitRate() float64 {
	hits := c.stats.hits.Load()
	total := hits + c.stats.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}
