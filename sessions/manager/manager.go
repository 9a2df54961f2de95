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

package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deephaven/deephaven-mcp-sub000/sessions/base"
	"github.com/deephaven/deephaven-mcp-sub000/shared/logger"
)

// CreateFunc creates the managed item on first use.
type CreateFunc[T base.Closer] func(ctx context.Context) (T, error)

// ProbeFunc reports whether a cached item is still usable.
type ProbeFunc[T base.Closer] func(ctx context.Context, item T) (bool, error)

// ItemManager owns exactly one lazily created item.
// Thread-safe for concurrent access
type ItemManager[T base.Closer] struct {
	fullName base.FullName
	create   CreateFunc[T]
	probe    ProbeFunc[T]

	item    T
	hasItem bool
	mu      sync.RWMutex

	logger *logger.Logger
}

// New creates a manager for fullName. Nothing is created until Get.
func New[T base.Closer](fullName base.FullName, create CreateFunc[T], probe ProbeFunc[T], log *logger.Logger) *ItemManager[T] {
	if log == nil {
		log = logger.New("session_manager")
	}
	return &ItemManager[T]{
		fullName: fullName,
		create:   create,
		probe:    probe,
		logger:   log.With(map[string]interface{}{"full_name": fullName.String()}),
	}
}

// FullName returns the identifier of the managed item.
func (m *ItemManager[T]) FullName() base.FullName { return m.fullName }

// SystemType returns the system type of the managed item.
func (m *ItemManager[T]) SystemType() base.SystemType { return m.fullName.SystemType }

// Source returns the source the managed item belongs to.
func (m *ItemManager[T]) Source() string { return m.fullName.Source }

// Name returns the item name within its source.
func (m *ItemManager[T]) Name() string { return m.fullName.Name }

// IsCached reports whether an item has been created and not yet closed.
func (m *ItemManager[T]) IsCached() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasItem
}

// Get returns the cached item, creating it on first call. Concurrent
// callers on a cold manager wait for a single creation.
func (m *ItemManager[T]) Get(ctx context.Context) (T, error) {
	m.mu.RLock()
	if m.hasItem {
		item := m.item
		m.mu.RUnlock()
		return item, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check if the item was created by another goroutine
	if m.hasItem {
		return m.item, nil
	}

	start := time.Now()
	item, err := m.create(ctx)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to create %s: %w", m.fullName, err)
	}

	m.item = item
	m.hasItem = true
	m.logger.InfoWithDuration("Created item", float64(time.Since(start).Milliseconds()), nil)
	return item, nil
}

// IsAlive reports whether the cached item passes its liveness probe. It is
// false when nothing is cached; probe errors are logged and read as false.
func (m *ItemManager[T]) IsAlive(ctx context.Context) bool {
	m.mu.RLock()
	item, ok := m.item, m.hasItem
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return m.alive(ctx, item)
}

func (m *ItemManager[T]) alive(ctx context.Context, item T) bool {
	ok, err := m.probe(ctx, item)
	if err != nil {
		m.logger.WarnWithErr("Liveness check failed", err, nil)
		return false
	}
	return ok
}

// Close releases the cached item. It is a no-op when nothing is cached. An
// item that already fails its liveness probe is dropped without calling its
// Close. The cache is cleared even when Close fails; the failure is
// returned for the caller to log or propagate.
func (m *ItemManager[T]) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasItem {
		return nil
	}

	item := m.item
	var zero T
	m.item = zero
	m.hasItem = false

	if !m.alive(ctx, item) {
		m.logger.Debug("Dropped dead item without closing", nil)
		return nil
	}

	if err := item.Close(ctx); err != nil {
		return base.NewSessionError(m.fullName.String(), "Close", "failed to close item", err)
	}
	m.logger.Debug("Closed item", nil)
	return nil
}
