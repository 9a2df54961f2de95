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

package worker

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/deephaven/deephaven-mcp-sub000/sessions/base"
)

const defaultProbeTimeout = 5 * time.Second

// DialContextFunc opens a network connection. It matches net.Dialer.DialContext.
type DialContextFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Options configures a worker session.
type Options struct {
	// Timeout bounds every reachability probe. Defaults to 5s.
	Timeout time.Duration

	// Dial overrides how probes connect. Defaults to a net.Dialer.
	Dial DialContextFunc
}

// Session is a handle to one worker endpoint. The query protocol itself is
// spoken by the caller; the handle only tracks reachability.
type Session struct {
	name    string
	address string
	timeout time.Duration
	dial    DialContextFunc

	mu     sync.Mutex
	closed bool
}

// Dial probes host:port once and returns a session for it. An unreachable
// worker is an error.
func Dial(ctx context.Context, name, host string, port int, opts Options) (*Session, error) {
	if host == "" {
		return nil, fmt.Errorf("worker '%s' has no host", name)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	dial := opts.Dial
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}

	s := &Session{
		name:    name,
		address: net.JoinHostPort(host, strconv.Itoa(port)),
		timeout: timeout,
		dial:    dial,
	}
	if err := s.probe(ctx); err != nil {
		return nil, base.NewSessionError(name, "Connect", fmt.Sprintf("worker %s unreachable", s.address), err)
	}
	return s, nil
}

// Name returns the session name.
func (s *Session) Name() string {
	return s.name
}

// Address returns the worker endpoint as host:port.
func (s *Session) Address() string {
	return s.address
}

// IsAlive reports whether the session is open and its worker reachable.
func (s *Session) IsAlive(ctx context.Context) bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false
	}
	return s.probe(ctx) == nil
}

// Close releases the session. Closing twice is a no-op.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Session) probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	conn, err := s.dial(probeCtx, "tcp", s.address)
	if err != nil {
		return err
	}
	return conn.Close()
}

var _ base.Session = (*Session)(nil)
