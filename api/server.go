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

package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/deephaven/deephaven-mcp-sub000/sessions/manager"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/registry"
	"github.com/deephaven/deephaven-mcp-sub000/shared/logger"
)

// Registry is the part of *registry.CombinedRegistry the API serves.
type Registry interface {
	Phase() registry.InitializationPhase
	Get(ctx context.Context, name string) (*manager.SessionManager, error)
	GetAll(ctx context.Context) (registry.Snapshot[*manager.SessionManager], error)
	SyncSources(ctx context.Context, sources ...string) error
	AddSessionWithinQuota(m *manager.SessionManager, quota int) error
	RemoveSession(name string) (*manager.SessionManager, error)
	IsAddedSession(name string) (bool, error)
	AddedSessionQuota(source string) (int, bool)
	ConnectEnterprise() manager.EnterpriseConnectFunc
}

// Options configures a Server.
type Options struct {
	Logger *logger.Logger

	// Registerer receives the API collectors; nil leaves them unregistered.
	Registerer prometheus.Registerer

	// Gatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// AllowedOrigins for CORS. Defaults to "*".
	AllowedOrigins []string
}

// Server is the admin HTTP API over a session registry.
type Server struct {
	registry Registry
	logger   *logger.Logger
	router   *mux.Router
	handler  http.Handler

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewServer creates the API and registers its routes:
//
//   - GET    /health
//   - GET    /metrics
//   - GET    /api/v1/sessions
//   - POST   /api/v1/sessions
//   - POST   /api/v1/sessions/refresh
//   - GET    /api/v1/sessions/{full_name}
//   - DELETE /api/v1/sessions/{full_name}
func NewServer(reg Registry, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.New("api")
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	factory := promauto.With(opts.Registerer)
	s := &Server{
		registry: reg,
		logger:   log,
		router:   mux.NewRouter(),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionhub_api_requests_total",
				Help: "Total number of admin API requests",
			},
			[]string{"route", "method", "code"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessionhub_api_request_duration_seconds",
				Help:    "Duration of admin API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	s.router.Use(s.requestMiddleware)
	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")

	s.router.HandleFunc("/api/v1/sessions", s.listSessionsHandler).Methods("GET")
	s.router.HandleFunc("/api/v1/sessions", s.addSessionHandler).Methods("POST")
	s.router.HandleFunc("/api/v1/sessions/refresh", s.refreshHandler).Methods("POST")
	s.router.HandleFunc("/api/v1/sessions/{full_name}", s.getSessionHandler).Methods("GET")
	s.router.HandleFunc("/api/v1/sessions/{full_name}", s.removeSessionHandler).Methods("DELETE")

	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})
	s.handler = c.Handler(s.router)
	return s
}

// Handler returns the root handler with CORS applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}
