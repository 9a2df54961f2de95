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
	"strings"
)

// Query states reported by controllers. Only running queries are exposed
// as sessions.
const (
	StateRunning  = "Running"
	StateStopped  = "Stopped"
	StateFailed   = "Failed"
	StateStarting = "Starting"
)

// ErrQueryNotFound is returned when a persistent query is not in the catalog.
var ErrQueryNotFound = errors.New("persistent query not found")

// QueryInfo is one catalog entry: a named persistent query and the worker
// endpoint serving it.
type QueryInfo struct {
	Name  string
	Host  string
	Port  int
	State string
}

// Running reports whether the query is in the running state.
func (q QueryInfo) Running() bool {
	return strings.EqualFold(q.State, StateRunning)
}

// Validate checks that the entry can be connected to.
func (q QueryInfo) Validate() error {
	if q.Name == "" {
		return fmt.Errorf("persistent query has no name")
	}
	if q.Host == "" {
		return fmt.Errorf("persistent query '%s' has no host", q.Name)
	}
	if q.Port <= 0 || q.Port > 65535 {
		return fmt.Errorf("persistent query '%s' has invalid port %d", q.Name, q.Port)
	}
	return nil
}

// Store is the persistent-query catalog of one controller backend.
type Store interface {
	// Ping verifies the backend connection.
	Ping(ctx context.Context) error

	// ListQueries returns every catalog entry.
	ListQueries(ctx context.Context) ([]QueryInfo, error)

	// GetQuery returns the entry name or ErrQueryNotFound.
	GetQuery(ctx context.Context, name string) (*QueryInfo, error)

	// Close releases the backend connection.
	Close() error
}

// Opener opens a new connection to a backend.
type Opener func(ctx context.Context) (Store, error)
