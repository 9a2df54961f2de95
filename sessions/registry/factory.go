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

// FactoryBuilder creates the factory of one enterprise system from its
// configuration.
type FactoryBuilder func(ctx context.Context, source string, cfg config.EnterpriseSystemConfig) (base.Factory, error)

// FactoryRegistry holds one lazily connected factory per enterprise
// system, keyed by source name.
type FactoryRegistry = Registry[*manager.FactoryManager]

// NewFactoryRegistry creates a registry of factory managers, one per
// configured enterprise system.
func NewFactoryRegistry(build FactoryBuilder, log *logger.Logger) *FactoryRegistry {
	if log == nil {
		log = logger.New("factory_registry")
	}
	load := func(ctx context.Context, cfg *config.Config) (map[string]*manager.FactoryManager, error) {
		items := make(map[string]*manager.FactoryManager, len(cfg.Enterprise.Systems))
		for source, sysCfg := range cfg.Enterprise.Systems {
			if _, err := base.NewFullName(base.SystemTypeEnterprise, source, source); err != nil {
				return nil, err
			}
			sysCfg := sysCfg
			items[source] = manager.NewFactoryManager(source, func(ctx context.Context, source string) (base.Factory, error) {
				return build(ctx, source, sysCfg)
			}, log)
		}
		return items, nil
	}
	return NewRegistry("factory", load, log)
}
