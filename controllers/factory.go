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

package controllers

import (
	"context"
	"fmt"
	"time"

	"github.com/deephaven/deephaven-mcp-sub000/controllers/cassandra"
	"github.com/deephaven/deephaven-mcp-sub000/controllers/mongodb"
	redisctl "github.com/deephaven/deephaven-mcp-sub000/controllers/redis"
	"github.com/deephaven/deephaven-mcp-sub000/controllers/sqlstore"
	"github.com/deephaven/deephaven-mcp-sub000/controllers/store"
	"github.com/deephaven/deephaven-mcp-sub000/controllers/worker"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/base"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/config"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/sdk"
	"github.com/deephaven/deephaven-mcp-sub000/shared/logger"
)

// Builder creates enterprise factories from system configuration.
type Builder struct {
	// Retry governs the control connection. Nil uses sdk.DefaultRetryConfig.
	Retry *sdk.RetryConfig

	// Dial overrides how worker reachability is probed.
	Dial worker.DialContextFunc

	// Openers overrides the backend per controller type. Tests use it to
	// inject in-memory stores.
	Openers map[string]OpenerFunc

	Logger *logger.Logger
}

// OpenerFunc opens a backend connection for one enterprise system.
type OpenerFunc func(ctx context.Context, source string, cfg config.EnterpriseSystemConfig, log *logger.Logger) (store.Store, error)

// DefaultOpeners maps every supported controller type to its backend.
func DefaultOpeners() map[string]OpenerFunc {
	openSQL := func(ctx context.Context, source string, cfg config.EnterpriseSystemConfig, log *logger.Logger) (store.Store, error) {
		dialect, err := sqlstore.DialectFor(cfg.Type)
		if err != nil {
			return nil, err
		}
		return sqlstore.Open(ctx, source, dialect, cfg, log)
	}
	return map[string]OpenerFunc{
		config.ControllerRedis: func(ctx context.Context, source string, cfg config.EnterpriseSystemConfig, log *logger.Logger) (store.Store, error) {
			return redisctl.Open(ctx, source, cfg, log)
		},
		config.ControllerPostgres: openSQL,
		config.ControllerMySQL:    openSQL,
		config.ControllerMongoDB: func(ctx context.Context, source string, cfg config.EnterpriseSystemConfig, log *logger.Logger) (store.Store, error) {
			return mongodb.Open(ctx, source, cfg, log)
		},
		config.ControllerCassandra: func(ctx context.Context, source string, cfg config.EnterpriseSystemConfig, log *logger.Logger) (store.Store, error) {
			return cassandra.Open(ctx, source, cfg, log)
		},
	}
}

// NewBuilder creates a Builder with the default backends.
func NewBuilder(log *logger.Logger) *Builder {
	if log == nil {
		log = logger.New("controllers")
	}
	return &Builder{Openers: DefaultOpeners(), Logger: log}
}

// Build creates the factory of source. The control connection is retried
// with backoff on transient errors. Its signature matches
// registry.FactoryBuilder.
func (b *Builder) Build(ctx context.Context, source string, cfg config.EnterpriseSystemConfig) (base.Factory, error) {
	opener, ok := b.Openers[cfg.Type]
	if !ok {
		return nil, base.NewSessionError(source, "CreateFactory", fmt.Sprintf("unsupported controller type '%s'", cfg.Type), nil)
	}

	open := func(ctx context.Context) (store.Store, error) {
		return opener(ctx, source, cfg, b.Logger)
	}

	start := time.Now()
	control, err := sdk.RetryWithBackoff(ctx, b.Retry, sdk.RetryFunc[store.Store](open))
	if err != nil {
		return nil, base.NewSessionError(source, "CreateFactory", "failed to connect to controller", err)
	}

	b.Logger.InfoWithDuration("Created controller factory", float64(time.Since(start).Milliseconds()), map[string]interface{}{
		"source": source,
		"type":   cfg.Type,
	})
	return store.NewFactory(source, control, open, b.dialer(cfg), b.Logger), nil
}

// dialer connects discovered sessions to the worker serving their query.
func (b *Builder) dialer(cfg config.EnterpriseSystemConfig) store.SessionDialer {
	return func(ctx context.Context, source string, q store.QueryInfo) (base.Session, error) {
		return worker.Dial(ctx, q.Name, q.Host, q.Port, worker.Options{
			Timeout: cfg.Timeout(),
			Dial:    b.Dial,
		})
	}
}

// NewFactory builds a factory with the default backends. Its signature
// matches registry.FactoryBuilder.
func NewFactory(ctx context.Context, source string, cfg config.EnterpriseSystemConfig) (base.Factory, error) {
	return NewBuilder(nil).Build(ctx, source, cfg)
}
