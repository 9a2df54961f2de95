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
	"sync"

	"github.com/deephaven/deephaven-mcp-sub000/sessions/base"
	"github.com/deephaven/deephaven-mcp-sub000/shared/logger"
)

// Factory is a base.Factory for one enterprise system. It keeps a control
// connection for Ping and opens a fresh connection per controller client.
type Factory struct {
	source  string
	control Store
	open    Opener
	dial    SessionDialer
	logger  *logger.Logger

	mu     sync.Mutex
	closed bool
}

// NewFactory creates a factory around an already open control connection.
func NewFactory(source string, control Store, open Opener, dial SessionDialer, log *logger.Logger) *Factory {
	if log == nil {
		log = logger.New("controller_factory")
	}
	return &Factory{source: source, control: control, open: open, dial: dial, logger: log}
}

// Source returns the enterprise system name.
func (f *Factory) Source() string {
	return f.source
}

// Ping reports whether the control connection is usable.
func (f *Factory) Ping(ctx context.Context) (bool, error) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return false, nil
	}
	if err := f.control.Ping(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// ControllerClient opens a new connection and wraps it in a Client.
func (f *Factory) ControllerClient(ctx context.Context) (base.ControllerClient, error) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return nil, base.NewSessionError(f.source, "ControllerClient", "factory closed", nil)
	}

	st, err := f.open(ctx)
	if err != nil {
		return nil, base.NewSessionError(f.source, "ControllerClient", "failed to connect to controller", err)
	}
	f.logger.Debug("Opened controller client", map[string]interface{}{"source": f.source})
	return NewClient(f.source, st, f.dial, f.logger), nil
}

// Close releases the control connection. Clients already handed out stay
// open until closed by their owner.
func (f *Factory) Close(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	if err := f.control.Close(); err != nil {
		return base.NewSessionError(f.source, "Close", "failed to close control connection", err)
	}
	f.logger.Info("Closed controller factory", map[string]interface{}{"source": f.source})
	return nil
}

var _ base.Factory = (*Factory)(nil)
