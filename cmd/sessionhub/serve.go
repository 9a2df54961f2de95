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
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/deephaven/deephaven-mcp-sub000/api"
	"github.com/deephaven/deephaven-mcp-sub000/shared/logger"
	"github.com/deephaven/deephaven-mcp-sub000/shared/tracing"
)

func serveCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the session registry HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, v)
		},
	}

	defaults := tracing.DefaultConfig()
	flags := cmd.Flags()
	flags.String("listen", ":8080", "HTTP listen address")
	flags.StringSlice("cors-origins", nil, "allowed CORS origins")
	flags.Bool("watch-config", true, "reload a local config file when it changes")
	flags.Duration("shutdown-timeout", 30*time.Second, "grace period for in-flight requests and discovery")
	flags.Bool("tracing", defaults.Enabled, "enable OpenTelemetry tracing")
	flags.String("tracing-exporter", defaults.Exporter, "trace exporter (none, stdout, otlp)")
	flags.String("otlp-endpoint", defaults.OTLPEndpoint, "OTLP collector address")
	flags.Float64("trace-sample-rate", defaults.SampleRate, "fraction of traces sampled")
	bindFlags(v, cmd)
	return cmd
}

func runServe(ctx context.Context, v *viper.Viper) error {
	log := logger.New("sessionhub")
	defer func() { _ = log.Sync() }()

	src, err := openSource(ctx, v, v.GetBool("watch-config"), log)
	if err != nil {
		return err
	}
	defer src.Close()

	provider, err := tracing.NewProvider(ctx, tracing.Config{
		Enabled:      v.GetBool("tracing"),
		Exporter:     v.GetString("tracing-exporter"),
		OTLPEndpoint: v.GetString("otlp-endpoint"),
		SampleRate:   v.GetFloat64("trace-sample-rate"),
		ServiceName:  tracing.DefaultServiceName,
	})
	if err != nil {
		return fmt.Errorf("failed to start tracing: %w", err)
	}

	reg := newRegistry(prometheus.DefaultRegisterer, provider.Tracer(), log)
	if err := reg.Initialize(ctx, src); err != nil {
		_ = provider.Shutdown(context.Background())
		return fmt.Errorf("failed to initialize registry: %w", err)
	}

	server := api.NewServer(reg, api.Options{
		Logger:         log,
		Registerer:     prometheus.DefaultRegisterer,
		Gatherer:       prometheus.DefaultGatherer,
		AllowedOrigins: v.GetStringSlice("cors-origins"),
	})
	srv := &http.Server{
		Addr:              v.GetString("listen"),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received", nil)
	case err = <-serveErr:
		if err != nil {
			log.ErrorWithErr("HTTP server failed", err, nil)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), v.GetDuration("shutdown-timeout"))
	defer cancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		log.WarnWithErr("HTTP server shutdown incomplete", shutdownErr, nil)
	}
	if closeErr := reg.Close(shutdownCtx); closeErr != nil {
		log.WarnWithErr("Registry closed with errors", closeErr, nil)
	}
	if traceErr := provider.Shutdown(shutdownCtx); traceErr != nil {
		log.WarnWithErr("Tracing shutdown failed", traceErr, nil)
	}
	return err
}
