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

package registry

import (
	"context"

	"github.com/deephaven/deephaven-mcp-sub000/sessions/base"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/config"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/manager"
	"github.com/deephaven/deephaven-mcp-sub000/shared/logger"
)

// CommunityRegistry holds the statically configured community sessions,
// keyed by full name.
type CommunityRegistry = Registry[*manager.SessionManager]

// NewCommunityRegistry creates a registry that builds one session manager
// per configured community session. Sessions connect on first use.
func NewCommunityRegistry(connect manager.CommunityConnectFunc, log *logger.Logger) *CommunityRegistry {
	if log == nil {
		log = logger.New("community_registry")
	}
	load := func(ctx context.Context, cfg *config.Config) (map[string]*manager.SessionManager, error) {
		items := make(map[string]*manager.SessionManager, len(cfg.Community.Sessions))
		for name, sessCfg := range cfg.Community.Sessions {
			if _, err := base.NewFullName(base.SystemTypeCommunity, manager.CommunitySource, name); err != nil {
				return nil, err
			}
			m := manager.NewCommunitySessionManager(name, sessCfg, connect, log)
			items[m.FullName().String()] = m
		}
		return items, nil
	}
	return NewRegistry("community", load, log)
}
