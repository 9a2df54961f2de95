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

// Package community connects to statically configured community workers.
package community

import (
	"context"
	"time"

	"github.com/deephaven/deephaven-mcp-sub000/controllers/worker"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/base"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/config"
	"github.com/deephaven/deephaven-mcp-sub000/shared/logger"
)

// Connector opens community sessions.
type Connector struct {
	dial   worker.DialContextFunc
	logger *logger.Logger
}

// NewConnector creates a Connector. dial may be nil.
func NewConnector(dial worker.DialContextFunc, log *logger.Logger) *Connector {
	if log == nil {
		log = logger.New("community_connector")
	}
	return &Connector{dial: dial, logger: log}
}

// Connect opens the community session name. Its signature matches
// manager.CommunityConnectFunc.
func (c *Connector) Connect(ctx context.Context, name string, cfg config.CommunitySessionConfig) (base.Session, error) {
	start := time.Now()
	s, err := worker.Dial(ctx, name, cfg.Host, cfg.Port, worker.Options{
		Timeout: cfg.Timeout(),
		Dial:    c.dial,
	})
	if err != nil {
		c.logger.WarnWithErr("Failed to connect community session", err, map[string]interface{}{
			"session": name,
			"host":    cfg.Host,
			"port":    cfg.Port,
		})
		return nil, err
	}

	c.logger.InfoWithDuration("Connected community session", float64(time.Since(start).Milliseconds()), map[string]interface{}{
		"session":      name,
		"address":      s.Address(),
		"session_type": cfg.SessionType,
		"tls":          cfg.UseTLS,
	})
	return s, nil
}
