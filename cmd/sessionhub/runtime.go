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

package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"

	"github.com/deephaven/deephaven-mcp-sub000/controllers"
	"github.com/deephaven/deephaven-mcp-sub000/controllers/community"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/config"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/registry"
	"github.com/deephaven/deephaven-mcp-sub000/shared/logger"
)

func initLogging(v *viper.Viper) error {
	if err := logger.SetLevel(logger.LogLevel(v.GetString("log-level"))); err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	return nil
}

// openSource opens the configuration named by --config.
func openSource(ctx context.Context, v *viper.Viper, watch bool, log *logger.Logger) (config.ClosableSource, error) {
	opts := config.OpenOptions{
		FileSourceOptions: config.FileSourceOptions{
			CacheTTL: v.GetDuration("config-cache-ttl"),
			Watch:    watch,
			Logger:   log,
		},
		Region:             v.GetString("aws-region"),
		Endpoint:           v.GetString("s3-endpoint"),
		ForcePathStyle:     v.GetBool("s3-path-style"),
		GCSCredentialsFile: v.GetString("gcs-credentials"),
	}

	if v.GetBool("secrets-manager") {
		sm, err := config.NewAWSSecretsManager(ctx, config.AWSSecretsManagerOptions{
			Region: v.GetString("aws-region"),
			Logger: log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create secrets manager: %w", err)
		}
		opts.SecretsManager = sm
	}

	uri := v.GetString("config")
	src, err := config.OpenSource(ctx, uri, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open config %s: %w", uri, err)
	}
	return src, nil
}

// newRegistry wires the registry to the real controller backends.
func newRegistry(reg prometheus.Registerer, tracer trace.Tracer, log *logger.Logger) *registry.CombinedRegistry {
	return registry.NewCombinedRegistry(registry.CombinedOptions{
		CommunityConnect: community.NewConnector(nil, log).Connect,
		FactoryBuilder:   controllers.NewBuilder(log).Build,
		Logger:           log,
		Metrics:          registry.NewMetrics(reg),
		Tracer:           tracer,
	})
}
