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

package sdk

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/deephaven/deephaven-mcp-sub000/sessions/base"
)

// MockSession provides a mock base.Session for testing
type MockSession struct {
	name string

	alive      bool
	closeError error
	closeCalls int

	mu sync.Mutex
}

// NewMockSession creates a live mock session
func NewMockSession(name string) *MockSession {
	return &MockSession{name: name, alive: true}
}

// Name returns the session name
func (m *MockSession) Name() string {
	return m.name
}

// IsAlive implements base.Session
func (m *MockSession) IsAlive(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alive
}

// Close implements base.Closer
func (m *MockSession) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
	if m.closeError != nil {
		return m.closeError
	}
	m.alive = false
	return nil
}

// SetAlive sets the liveness reported by IsAlive
func (m *MockSession) SetAlive(alive bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alive = alive
}

// SetCloseError makes Close fail with err
func (m *MockSession) SetCloseError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeError = err
}

// CloseCalls returns how many times Close was called
func (m *MockSession) CloseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalls
}

// MockFactory provides a mock base.Factory whose controller clients report
// a configurable set of remote sessions.
type MockFactory struct {
	source string

	remote       map[string]struct{}
	pingOK       bool
	pingError    error
	clientError  error
	listError    error
	connectError error
	closeError   error
	onList       func(ctx context.Context) error

	clients    []*MockControllerClient
	sessions   []*MockSession
	closeCalls int

	mu sync.Mutex
}

// NewMockFactory creates a mock factory reporting the given remote sessions
func NewMockFactory(source string, remote ...string) *MockFactory {
	f := &MockFactory{source: source, pingOK: true}
	f.SetRemoteSessions(remote...)
	return f
}

// Source returns the enterprise source name
func (f *MockFactory) Source() string {
	return f.source
}

// Ping implements base.Factory
func (f *MockFactory) Ping(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingOK, f.pingError
}

// ControllerClient implements base.Factory
func (f *MockFactory) ControllerClient(ctx context.Context) (base.ControllerClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clientError != nil {
		return nil, f.clientError
	}
	c := &MockControllerClient{factory: f, alive: true}
	f.clients = append(f.clients, c)
	return c, nil
}

// Close implements base.Closer
func (f *MockFactory) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return f.closeError
}

// SetRemoteSessions replaces the set of persistent queries the controller reports
func (f *MockFactory) SetRemoteSessions(names ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remote = make(map[string]struct{}, len(names))
	for _, n := range names {
		f.remote[n] = struct{}{}
	}
}

// SetPing sets the result of Ping
func (f *MockFactory) SetPing(ok bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingOK = ok
	f.pingError = err
}

// SetClientError makes ControllerClient fail with err
func (f *MockFactory) SetClientError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clientError = err
}

// SetListError makes ListSessions fail with err on every client
func (f *MockFactory) SetListError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listError = err
}

// SetConnectError makes ConnectSession fail with err on every client
func (f *MockFactory) SetConnectError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectError = err
}

// SetCloseError makes Close fail with err
func (f *MockFactory) SetCloseError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeError = err
}

// SetOnList installs a hook run at the start of every ListSessions call,
// outside the mock's lock. Tests use it to block or slow a query.
func (f *MockFactory) SetOnList(fn func(ctx context.Context) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onList = fn
}

// Clients returns every controller client created so far
func (f *MockFactory) Clients() []*MockControllerClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*MockControllerClient, len(f.clients))
	copy(out, f.clients)
	return out
}

// Sessions returns every session connected so far
func (f *MockFactory) Sessions() []*MockSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*MockSession, len(f.sessions))
	copy(out, f.sessions)
	return out
}

// CloseCalls returns how many times Close was called
func (f *MockFactory) CloseCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

// MockControllerClient is the controller client handed out by MockFactory
type MockControllerClient struct {
	factory *MockFactory

	alive        bool
	listCalls    int
	connectCalls int
	closeCalls   int

	mu sync.Mutex
}

// Ping implements base.ControllerClient
func (c *MockControllerClient) Ping(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive, nil
}

// ListSessions implements base.ControllerClient
func (c *MockControllerClient) ListSessions(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	c.listCalls++
	alive := c.alive
	c.mu.Unlock()

	if !alive {
		return nil, fmt.Errorf("controller client for %s is closed", c.factory.source)
	}

	c.factory.mu.Lock()
	hook := c.factory.onList
	c.factory.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}

	c.factory.mu.Lock()
	defer c.factory.mu.Unlock()
	if c.factory.listError != nil {
		return nil, c.factory.listError
	}
	names := make([]string, 0, len(c.factory.remote))
	for n := range c.factory.remote {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// ConnectSession implements base.ControllerClient
func (c *MockControllerClient) ConnectSession(ctx context.Context, name string) (base.Session, error) {
	c.mu.Lock()
	c.connectCalls++
	c.mu.Unlock()

	c.factory.mu.Lock()
	defer c.factory.mu.Unlock()
	if c.factory.connectError != nil {
		return nil, c.factory.connectError
	}
	if _, ok := c.factory.remote[name]; !ok {
		return nil, fmt.Errorf("persistent query %q not found on %s", name, c.factory.source)
	}
	s := NewMockSession(name)
	c.factory.sessions = append(c.factory.sessions, s)
	return s, nil
}

// Close implements base.Closer
func (c *MockControllerClient) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCalls++
	c.alive = false
	return nil
}

// SetAlive sets the liveness reported by Ping
func (c *MockControllerClient) SetAlive(alive bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alive = alive
}

// ListCalls returns how many times ListSessions was called
func (c *MockControllerClient) ListCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listCalls
}

// CloseCalls returns how many times Close was called
func (c *MockControllerClient) CloseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}

var (
	_ base.Session          = (*MockSession)(nil)
	_ base.Factory          = (*MockFactory)(nil)
	_ base.ControllerClient = (*MockControllerClient)(nil)
)
