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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of a CombinedRegistry.
type Metrics struct {
	reconcileTotal    *prometheus.CounterVec
	reconcileDuration *prometheus.HistogramVec
	sourceQueries     *prometheus.CounterVec
	items             *prometheus.GaugeVec
	addedSessions     prometheus.Gauge
	phase             prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which tests use to avoid duplicate
// registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		reconcileTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionhub_reconcile_passes_total",
				Help: "Total number of enterprise session reconciliation passes",
			},
			[]string{"mode", "status"},
		),
		reconcileDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessionhub_reconcile_duration_seconds",
				Help:    "Duration of enterprise session reconciliation passes",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		sourceQueries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionhub_source_queries_total",
				Help: "Per-source controller queries by result",
			},
			[]string{"source", "result"},
		),
		items: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sessionhub_sessions",
				Help: "Number of registered sessions by system type",
			},
			[]string{"system_type"},
		),
		addedSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sessionhub_added_sessions",
				Help: "Number of sessions inserted through the mutation API",
			},
		),
		phase: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sessionhub_initialization_phase",
				Help: "Initialization phase of the combined registry (1=not_started 2=partial 3=loading 4=completed 5=failed)",
			},
		),
	}
}
