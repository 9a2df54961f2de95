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
	"time"

	"github.com/deephaven/deephaven-mcp-sub000/sessions/sdk"
)

// sourceBackoff tracks consecutive discovery failures per source. After n
// failures, on-demand refresh skips the source for initial·2^(n-1), capped
// at max. Guarded by the CombinedRegistry main lock.
type sourceBackoff struct {
	initial time.Duration
	max     time.Duration
	state   map[string]backoffState
}

type backoffState struct {
	failures int
	until    time.Time
}

func newSourceBackoff(initial, max time.Duration) *sourceBackoff {
	return &sourceBackoff{initial: initial, max: max, state: make(map[string]backoffState)}
}

// skip reports whether source is still backing off at now.
func (b *sourceBackoff) skip(source string, now time.Time) bool {
	st, ok := b.state[source]
	return ok && now.Before(st.until)
}

// failure records a failed query and returns the new backoff delay.
func (b *sourceBackoff) failure(source string, now time.Time) time.Duration {
	st := b.state[source]
	st.failures++
	delay := sdk.BackoffDelay(b.initial, b.max, 2, st.failures-1)
	st.until = now.Add(delay)
	b.state[source] = st
	return delay
}

func (b *sourceBackoff) success(source string) {
	delete(b.state, source)
}

func (b *sourceBackoff) failures(source string) int {
	return b.state[source].failures
}

func (b *sourceBackoff) reset() {
	b.state = make(map[string]backoffState)
}
