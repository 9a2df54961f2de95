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

package cassandra

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/gocql/gocql"

	"github.com/deephaven/deephaven-mcp-sub000/controllers/store"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/config"
	"github.com/deephaven/deephaven-mcp-sub000/shared/logger"
)

// DefaultTable is the catalog table when no table option is set.
const DefaultTable = "persistent_queries"

var tablePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store reads the persistent-query catalog from a Cassandra table with the
// columns name (partition key), host, port and state.
type Store struct {
	source  string
	table   string
	session *gocql.Session
	logger  *logger.Logger
}

// Open connects to the Cassandra controller of an enterprise system.
// connection_url has the form cassandra://host1,host2:9042/keyspace.
func Open(ctx context.Context, source string, cfg config.EnterpriseSystemConfig, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.New("cassandra_controller")
	}
	cluster, err := clusterConfig(cfg)
	if err != nil {
		return nil, err
	}
	table := cfg.StringOption("table", DefaultTable)
	if !tablePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name '%s'", table)
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create cassandra session: %w", err)
	}
	s := &Store{source: source, table: table, session: session, logger: log}
	if err := s.Ping(ctx); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to ping cassandra: %w", err)
	}

	log.Info("Connected to Cassandra controller", map[string]interface{}{
		"source":      source,
		"keyspace":    cluster.Keyspace,
		"consistency": cluster.Consistency.String(),
	})
	return s, nil
}

func clusterConfig(cfg config.EnterpriseSystemConfig) (*gocql.ClusterConfig, error) {
	hosts, keyspace, err := parseConnectionURL(cfg.ConnectionURL)
	if err != nil {
		return nil, err
	}

	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = keyspace
	cluster.Timeout = cfg.Timeout()
	cluster.ConnectTimeout = cfg.Timeout()
	cluster.NumConns = 1
	cluster.Consistency = parseConsistency(cfg.StringOption("consistency", "LOCAL_QUORUM"))

	if user, ok := cfg.Credentials["username"]; ok && user != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: user,
			Password: cfg.Credentials["password"],
		}
	}
	return cluster, nil
}

// parseConnectionURL splits cassandra://host1,host2:port/keyspace.
func parseConnectionURL(raw string) ([]string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, "", fmt.Errorf("invalid cassandra connection_url: %w", err)
	}
	if u.Scheme != "cassandra" {
		return nil, "", fmt.Errorf("invalid cassandra connection_url scheme '%s'", u.Scheme)
	}

	var hosts []string
	for _, h := range strings.Split(u.Host, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	keyspace := strings.Trim(u.Path, "/")
	if len(hosts) == 0 || keyspace == "" || strings.Contains(keyspace, "/") {
		return nil, "", fmt.Errorf("invalid cassandra connection_url (expected cassandra://host:port/keyspace)")
	}
	return hosts, keyspace, nil
}

func parseConsistency(level string) gocql.Consistency {
	c, err := gocql.ParseConsistencyWrapper(strings.ToUpper(level))
	if err != nil {
		return gocql.LocalQuorum
	}
	return c
}

// Ping runs a trivial query against system.local.
func (s *Store) Ping(ctx context.Context) error {
	return s.session.Query("SELECT release_version FROM system.local").WithContext(ctx).Exec()
}

// ListQueries returns every catalog entry ordered by name.
func (s *Store) ListQueries(ctx context.Context) ([]store.QueryInfo, error) {
	iter := s.session.Query(fmt.Sprintf("SELECT name, host, port, state FROM %s", s.table)).WithContext(ctx).Iter()

	var out []store.QueryInfo
	var q store.QueryInfo
	for iter.Scan(&q.Name, &q.Host, &q.Port, &q.State) {
		out = append(out, q)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.table, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetQuery returns one catalog entry.
func (s *Store) GetQuery(ctx context.Context, name string) (*store.QueryInfo, error) {
	var q store.QueryInfo
	err := s.session.Query(fmt.Sprintf("SELECT name, host, port, state FROM %s WHERE name = ?", s.table), name).
		WithContext(ctx).
		Scan(&q.Name, &q.Host, &q.Port, &q.State)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, store.ErrQueryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up '%s': %w", name, err)
	}
	return &q, nil
}

// Close closes the session.
func (s *Store) Close() error {
	s.session.Close()
	return nil
}

var _ store.Store = (*Store)(nil)
