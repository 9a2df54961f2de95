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

package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/deephaven/deephaven-mcp-sub000/controllers/store"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/config"
	"github.com/deephaven/deephaven-mcp-sub000/shared/logger"
)

// Dialect selects the driver and placeholder syntax.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// DefaultTable is the catalog table when no table option is set.
const DefaultTable = "persistent_queries"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Store reads the persistent-query catalog from a SQL table with the
// columns name, host, port and state.
type Store struct {
	source  string
	dialect Dialect
	table   string
	db      *sql.DB
	logger  *logger.Logger
}

// DialectFor maps a controller type to its dialect.
func DialectFor(controllerType string) (Dialect, error) {
	switch controllerType {
	case config.ControllerPostgres:
		return Postgres, nil
	case config.ControllerMySQL:
		return MySQL, nil
	}
	return "", fmt.Errorf("no SQL dialect for controller type '%s'", controllerType)
}

// Open connects to the SQL controller of an enterprise system.
// connection_url is a driver DSN.
func Open(ctx context.Context, source string, dialect Dialect, cfg config.EnterpriseSystemConfig, log *logger.Logger) (*Store, error) {
	db, err := sql.Open(string(dialect), cfg.ConnectionURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", dialect, err)
	}

	maxOpenConns := 5
	if val, ok := cfg.Options["max_open_conns"].(int); ok && val > 0 {
		maxOpenConns = val
	}
	connMaxLifetime := 5 * time.Minute
	if val, ok := cfg.Options["conn_max_lifetime"].(string); ok {
		if d, err := time.ParseDuration(val); err == nil {
			connMaxLifetime = d
		}
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(connMaxLifetime)

	s, err := New(source, dialect, db, cfg.StringOption("table", DefaultTable), log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()
	if err := s.Ping(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", dialect, err)
	}

	s.logger.Info("Connected to SQL controller", map[string]interface{}{
		"source":  source,
		"dialect": string(dialect),
		"table":   s.table,
	})
	return s, nil
}

// New wraps an open database handle. table must be a plain or
// schema-qualified identifier.
func New(source string, dialect Dialect, db *sql.DB, table string, log *logger.Logger) (*Store, error) {
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name '%s'", table)
	}
	if log == nil {
		log = logger.New("sql_controller")
	}
	return &Store{source: source, dialect: dialect, table: table, db: db, logger: log}, nil
}

func (s *Store) placeholder(n int) string {
	if s.dialect == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Ping verifies the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListQueries returns every catalog entry ordered by name.
func (s *Store) ListQueries(ctx context.Context) ([]store.QueryInfo, error) {
	query := fmt.Sprintf("SELECT name, host, port, state FROM %s ORDER BY name", s.table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.table, err)
	}
	defer rows.Close()

	var out []store.QueryInfo
	for rows.Next() {
		var q store.QueryInfo
		if err := rows.Scan(&q.Name, &q.Host, &q.Port, &q.State); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", s.table, err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.table, err)
	}
	return out, nil
}

// GetQuery returns one catalog entry.
func (s *Store) GetQuery(ctx context.Context, name string) (*store.QueryInfo, error) {
	query := fmt.Sprintf("SELECT name, host, port, state FROM %s WHERE name = %s", s.table, s.placeholder(1))
	var q store.QueryInfo
	err := s.db.QueryRowContext(ctx, query, name).Scan(&q.Name, &q.Host, &q.Port, &q.State)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrQueryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up '%s': %w", name, err)
	}
	return &q, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ store.Store = (*Store)(nil)
