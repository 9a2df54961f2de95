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
	"sort"

	"github.com/deephaven/deephaven-mcp-sub000/sessions/base"
)

// Snapshot is an immutable point-in-time copy of a registry's items. It is
// always built from state observed under one lock acquisition.
type Snapshot[T any] struct {
	items  map[string]T
	phase  InitializationPhase
	errors map[string]string
}

// NewSimpleSnapshot builds the snapshot of a plain registry: phase
// PhaseSimple and no errors.
func NewSimpleSnapshot[T any](items map[string]T) Snapshot[T] {
	return Snapshot[T]{
		items:  copyMap(items),
		phase:  PhaseSimple,
		errors: map[string]string{},
	}
}

// NewPhasedSnapshot builds the snapshot of a registry with a loading
// lifecycle. errors maps source names to their last discovery failure.
// Passing PhaseSimple is a programming error and panics.
func NewPhasedSnapshot[T any](items map[string]T, phase InitializationPhase, errors map[string]string) Snapshot[T] {
	if phase == PhaseSimple {
		panic(base.NewInvariantError("phased snapshot built with PhaseSimple", nil))
	}
	return Snapshot[T]{
		items:  copyMap(items),
		phase:  phase,
		errors: copyMap(errors),
	}
}

// Items returns a copy of the items keyed by name.
func (s Snapshot[T]) Items() map[string]T {
	return copyMap(s.items)
}

// Get returns the item called name.
func (s Snapshot[T]) Get(name string) (T, bool) {
	item, ok := s.items[name]
	return item, ok
}

// Len returns the number of items.
func (s Snapshot[T]) Len() int {
	return len(s.items)
}

// Names returns the item names in sorted order.
func (s Snapshot[T]) Names() []string {
	names := make([]string, 0, len(s.items))
	for name := range s.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Phase returns the initialization phase at the time of the snapshot.
func (s Snapshot[T]) Phase() InitializationPhase {
	return s.phase
}

// Errors returns a copy of the per-source discovery errors.
func (s Snapshot[T]) Errors() map[string]string {
	return copyMap(s.errors)
}

// IsSimple reports whether the snapshot came from a plain registry.
func (s Snapshot[T]) IsSimple() bool {
	return s.phase == PhaseSimple
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
