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
	"fmt"

	"github.com/deephaven/deephaven-mcp-sub000/sessions/base"
)

// LookupError is returned by CombinedRegistry.Get for an unknown name. It
// carries the phase and, for enterprise names, the last discovery error of
// the source, so a caller can tell "still loading" and "source is down"
// apart from a plain miss. It matches base.ErrNotFound with errors.Is.
type LookupError struct {
	Name        string
	Phase       InitializationPhase
	SourceError string
}

func (e *LookupError) Error() string {
	msg := fmt.Sprintf("session '%s' not found (phase: %s", e.Name, e.Phase)
	if e.SourceError != "" {
		msg += "; source error: " + e.SourceError
	}
	return msg + ")"
}

func (e *LookupError) Unwrap() error {
	return base.ErrNotFound
}
