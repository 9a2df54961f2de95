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

package manager

import (
	"context"

	"github.com/deephaven/deephaven-mcp-sub000/sessions/base"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/config"
	"github.com/deephaven/deephaven-mcp-sub000/shared/logger"
)

// SessionManager manages one community or enterprise session.
type SessionManager = ItemManager[base.Session]

// FactoryManager manages the factory of one enterprise system.
type FactoryManager = ItemManager[base.Factory]

// CommunityConnectFunc opens a session to a statically configured worker.
type CommunityConnectFunc func(ctx context.Context, name string, cfg config.CommunitySessionConfig) (base.Session, error)

// EnterpriseConnectFunc connects to the persistent query name on the
// enterprise system source.
type EnterpriseConnectFunc func(ctx context.Context, source, name string) (base.Session, error)

// FactoryCreateFunc creates the factory for one enterprise system.
type FactoryCreateFunc func(ctx context.Context, source string) (base.Factory, error)

func sessionProbe(ctx context.Context, s base.Session) (bool, error) {
	return s.IsAlive(ctx), nil
}

func factoryProbe(ctx context.Context, f base.Factory) (bool, error) {
	return f.Ping(ctx)
}

// CommunitySource is the source part of every community full name.
const CommunitySource = "community"

// NewCommunitySessionManager creates a manager for the community session
// name, built from its static configuration.
func NewCommunitySessionManager(name string, cfg config.CommunitySessionConfig, connect CommunityConnectFunc, log *logger.Logger) *SessionManager {
	fn := base.MustFullName(base.SystemTypeCommunity, CommunitySource, name)
	return New(fn, func(ctx context.Context) (base.Session, error) {
		return connect(ctx, name, cfg)
	}, sessionProbe, log)
}

// NewEnterpriseSessionManager creates a manager for the persistent query
// name on source. connect is only called on first Get.
func NewEnterpriseSessionManager(source, name string, connect EnterpriseConnectFunc, log *logger.Logger) *SessionManager {
	fn := base.MustFullName(base.SystemTypeEnterprise, source, name)
	return New(fn, func(ctx context.Context) (base.Session, error) {
		return connect(ctx, source, name)
	}, sessionProbe, log)
}

// NewFactoryManager creates a manager for the factory of source. Liveness
// is the factory's Ping.
func NewFactoryManager(source string, create FactoryCreateFunc, log *logger.Logger) *FactoryManager {
	fn := base.MustFullName(base.SystemTypeEnterprise, source, source)
	return New(fn, func(ctx context.Context) (base.Factory, error) {
		return create(ctx, source)
	}, factoryProbe, log)
}
