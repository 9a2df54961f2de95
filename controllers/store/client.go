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

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/deephaven/deephaven-mcp-sub000/sessions/base"
	"github.com/deephaven/deephaven-mcp-sub000/shared/logger"
)

// SessionDialer connects to the worker serving a running query.
type SessionDialer func(ctx context.Context, source string, q QueryInfo) (base.Session, error)

// Client is a base.ControllerClient over one Store connection.
type Client struct {
	source string
	store  Store
	dial   SessionDialer
	logger *logger.Logger

	mu     sync.Mutex
	closed bool
}

// NewClient wraps store. The client owns store and closes it on Close.
func NewClient(source string, store Store, dial SessionDialer, log *logger.Logger) *Client {
	if log == nil {
		log = logger.New("controller_client")
	}
	return &Client{source: source, store: store, dial: dial, logger: log}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Ping reports whether the client is open and its backend reachable.
func (c *Client) Ping(ctx context.Context) (bool, error) {
	if c.isClosed() {
		return false, nil
	}
	if err := c.store.Ping(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// ListSessions returns the names of running queries, sorted. Entries that
// cannot be connected to are skipped.
func (c *Client) ListSessions(ctx context.Context) ([]string, error) {
	if c.isClosed() {
		return nil, base.NewSessionError(c.source, "ListSessions", "client closed", nil)
	}
	queries, err := c.store.ListQueries(ctx)
	if err != nil {
		return nil, base.NewSessionError(c.source, "ListSessions", "failed to list persistent queries", err)
	}

	names := make([]string, 0, len(queries))
	for _, q := range queries {
		if !q.Running() {
			continue
		}
		if err := q.Validate(); err != nil {
			c.logger.Warn("Skipping invalid persistent query", map[string]interface{}{
				"source": c.source,
				"error":  err.Error(),
			})
			continue
		}
		names = append(names, q.Name)
	}
	sort.Strings(names)
	return names, nil
}

// ConnectSession connects to the running query name.
func (c *Client) ConnectSession(ctx context.Context, name string) (base.Session, error) {
	if c.isClosed() {
		return nil, base.NewSessionError(c.source, "ConnectSession", "client closed", nil)
	}
	q, err := c.store.GetQuery(ctx, name)
	if err != nil {
		if errors.Is(err, ErrQueryNotFound) {
			return nil, base.NewSessionError(c.source, "ConnectSession", fmt.Sprintf("persistent query '%s' not found", name), base.ErrNotFound)
		}
		return nil, base.NewSessionError(c.source, "ConnectSession", "failed to look up persistent query", err)
	}
	if !q.Running() {
		return nil, base.NewSessionError(c.source, "ConnectSession", fmt.Sprintf("persistent query '%s' is %s", name, q.State), nil)
	}
	if err := q.Validate(); err != nil {
		return nil, base.NewSessionError(c.source, "ConnectSession", "invalid catalog entry", err)
	}
	return c.dial(ctx, c.source, *q)
}

// Close releases the backend connection. Closing twice is a no-op.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if err := c.store.Close(); err != nil {
		return base.NewSessionError(c.source, "Close", "failed to close controller connection", err)
	}
	return nil
}

var _ base.ControllerClient = (*Client)(nil)
