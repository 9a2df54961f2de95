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

import "fmt"

// InitializationPhase tracks how far a CombinedRegistry has progressed in
// loading its items.
type InitializationPhase int

const (
	// PhaseSimple marks snapshots of plain registries, which have no
	// loading lifecycle.
	PhaseSimple InitializationPhase = iota
	// PhaseNotStarted: Initialize has not run.
	PhaseNotStarted
	// PhasePartial: static items are ready, discovery has not started.
	PhasePartial
	// PhaseLoading: discovery is running and items may change at any moment.
	PhaseLoading
	// PhaseCompleted: the first discovery pass finished, possibly with
	// per-source errors. Reads refresh on demand from here on.
	PhaseCompleted
	// PhaseFailed: discovery was cancelled mid-flight during shutdown.
	PhaseFailed
)

var phaseNames = map[InitializationPhase]string{
	PhaseSimple:     "simple",
	PhaseNotStarted: "not_started",
	PhasePartial:    "partial",
	PhaseLoading:    "loading",
	PhaseCompleted:  "completed",
	PhaseFailed:     "failed",
}

func (p InitializationPhase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// MarshalText renders the phase by name in JSON and YAML output.
func (p InitializationPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ParsePhase parses a phase name as produced by String.
func ParsePhase(s string) (InitializationPhase, error) {
	for p, name := range phaseNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown initialization phase %q", s)
}

// UnmarshalText parses a phase name.
func (p *InitializationPhase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
