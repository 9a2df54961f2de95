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

package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/deephaven/deephaven-mcp-sub000/controllers/store"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/config"
	"github.com/deephaven/deephaven-mcp-sub000/shared/logger"
)

// DefaultKeyPrefix namespaces the catalog keys when no key_prefix option is set.
const DefaultKeyPrefix = "controller"

// Store reads the persistent-query catalog from Redis. The layout is a set
// "<prefix>:queries" of names and one hash "<prefix>:query:<name>" per
// query with the fields host, port and state.
type Store struct {
	source string
	prefix string
	client *redis.Client
	logger *logger.Logger
}

// Open connects to the Redis controller of an enterprise system.
// connection_url is a redis:// URL; a password credential overrides the
// one in the URL.
func Open(ctx context.Context, source string, cfg config.EnterpriseSystemConfig, log *logger.Logger) (*Store, error) {
	opts, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis connection_url: %w", err)
	}
	if pw, ok := cfg.Credentials["password"]; ok && pw != "" {
		opts.Password = pw
	}
	if user, ok := cfg.Credentials["username"]; ok && user != "" {
		opts.Username = user
	}
	timeout := cfg.Timeout()
	opts.DialTimeout = timeout
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolSize = 10

	s := New(source, redis.NewClient(opts), cfg.StringOption("key_prefix", DefaultKeyPrefix), log)
	if err := s.Ping(ctx); err != nil {
		_ = s.client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	s.logger.Info("Connected to Redis controller", map[string]interface{}{
		"source": source,
		"addr":   opts.Addr,
		"db":     opts.DB,
	})
	return s, nil
}

// New wraps an existing client.
func New(source string, client *redis.Client, prefix string, log *logger.Logger) *Store {
	if log == nil {
		log = logger.New("redis_controller")
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{source: source, prefix: prefix, client: client, logger: log}
}

func (s *Store) setKey() string {
	return s.prefix + ":queries"
}

func (s *Store) queryKey(name string) string {
	return s.prefix + ":query:" + name
}

// Ping verifies the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// ListQueries returns every catalog entry. Names in the set without a hash
// are skipped.
func (s *Store) ListQueries(ctx context.Context) ([]store.QueryInfo, error) {
	names, err := s.client.SMembers(ctx, s.setKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.setKey(), err)
	}
	sort.Strings(names)

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringStringMapCmd, len(names))
	for i, name := range names {
		cmds[i] = pipe.HGetAll(ctx, s.queryKey(name))
	}
	if len(names) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to read query hashes: %w", err)
		}
	}

	out := make([]store.QueryInfo, 0, len(names))
	for i, name := range names {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			s.logger.Debug("Catalog entry has no hash", map[string]interface{}{"source": s.source, "query": name})
			continue
		}
		out = append(out, parseQuery(name, fields))
	}
	return out, nil
}

// GetQuery returns one catalog entry.
func (s *Store) GetQuery(ctx context.Context, name string) (*store.QueryInfo, error) {
	fields, err := s.client.HGetAll(ctx, s.queryKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.queryKey(name), err)
	}
	if len(fields) == 0 {
		return nil, store.ErrQueryNotFound
	}
	q := parseQuery(name, fields)
	return &q, nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func parseQuery(name string, fields map[string]string) store.QueryInfo {
	port, _ := strconv.Atoi(fields["port"])
	return store.QueryInfo{
		Name:  name,
		Host:  fields["host"],
		Port:  port,
		State: fields["state"],
	}
}

var _ store.Store = (*Store)(nil)
