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
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace/noop"
	"gopkg.in/yaml.v3"

	"github.com/deephaven/deephaven-mcp-sub000/sessions/registry"
	"github.com/deephaven/deephaven-mcp-sub000/shared/logger"
)

// sessionRow is one line of `sessionhub sessions` output.
type sessionRow struct {
	FullName   string `json:"full_name" yaml:"full_name"`
	SystemType string `json:"system_type" yaml:"system_type"`
	Source     string `json:"source" yaml:"source"`
	Name       string `json:"name" yaml:"name"`
}

type sessionsReport struct {
	Phase    string            `json:"phase" yaml:"phase"`
	Sessions []sessionRow      `json:"sessions" yaml:"sessions"`
	Errors   map[string]string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func sessionsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Discover and list every session once, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			format := v.GetString("output")
			switch format {
			case "json", "yaml", "table":
			default:
				return fmt.Errorf("unsupported --output %q (json, yaml, table)", format)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), v.GetDuration("wait"))
			defer cancel()

			report, err := listSessions(ctx, v)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), format, report)
		},
	}

	flags := cmd.Flags()
	flags.StringP("output", "o", "table", "output format (json, yaml, table)")
	flags.Duration("wait", time.Minute, "how long to wait for discovery to finish")
	bindFlags(v, cmd)
	return cmd
}

// listSessions runs one full discovery pass against a private registry.
func listSessions(ctx context.Context, v *viper.Viper) (*sessionsReport, error) {
	log := logger.New("sessionhub")

	src, err := openSource(ctx, v, false, log)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	reg := newRegistry(prometheus.NewRegistry(), noop.NewTracerProvider().Tracer("noop"), log)
	defer func() { _ = reg.Close(context.Background()) }()

	if err := reg.Initialize(ctx, src); err != nil {
		return nil, fmt.Errorf("failed to initialize registry: %w", err)
	}
	if _, err := reg.WaitForPhase(ctx, registry.PhaseCompleted, registry.PhaseFailed); err != nil {
		return nil, fmt.Errorf("discovery did not finish: %w", err)
	}

	snap, err := reg.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &sessionsReport{
		Phase:    snap.Phase().String(),
		Sessions: make([]sessionRow, 0, snap.Len()),
		Errors:   snap.Errors(),
	}
	for _, name := range snap.Names() {
		m, _ := snap.Get(name)
		report.Sessions = append(report.Sessions, sessionRow{
			FullName:   name,
			SystemType: string(m.SystemType()),
			Source:     m.Source(),
			Name:       m.Name(),
		})
	}
	return report, nil
}

func writeReport(w io.Writer, format string, report *sessionsReport) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "FULL NAME\tTYPE\tSOURCE\tNAME\n")
	for _, s := range report.Sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.FullName, s.SystemType, s.Source, s.Name)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	sources := make([]string, 0, len(report.Errors))
	for source := range report.Errors {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	for _, source := range sources {
		fmt.Fprintf(w, "source %s: %s\n", source, report.Errors[source])
	}
	fmt.Fprintf(w, "phase: %s\n", report.Phase)
	return nil
}
