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
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/deephaven/deephaven-mcp-sub000/sessions/base"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/config"
	"github.com/deephaven/deephaven-mcp-sub000/shared/logger"
)

// LoadFunc builds the items of a registry from the configuration.
type LoadFunc[T base.Closer] func(ctx context.Context, cfg *config.Config) (map[string]T, error)

// Registry manages a name → item map that is populated once by Initialize.
// Thread-safe for concurrent access
type Registry[T base.Closer] struct {
	kind        string
	load        LoadFunc[T]
	items       map[string]T
	initialized bool
	mu          sync.Mutex
	logger      *logger.Logger
}

// NewRegistry creates an empty registry. kind names the registry in logs
// and errors.
func NewRegistry[T base.Closer](kind string, load LoadFunc[T], log *logger.Logger) *Registry[T] {
	if log == nil {
		log = logger.New("registry")
	}
	return &Registry[T]{
		kind:   kind,
		load:   load,
		items:  make(map[string]T),
		logger: log.With(map[string]interface{}{"registry": kind}),
	}
}

// Initialize loads the items from src. Calling it on an initialized
// registry is a no-op.
func (r *Registry[T]) Initialize(ctx context.Context, src config.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return nil
	}

	cfg, err := src.Config(ctx)
	if err != nil {
		return fmt.Errorf("%s registry: failed to load configuration: %w", r.kind, err)
	}

	items, err := r.load(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%s registry: %w", r.kind, err)
	}

	r.items = items
	r.initialized = true
	r.logger.Info("Registry initialized", map[string]interface{}{"items": len(items)})
	return nil
}

// Get returns the item called name.
func (r *Registry[T]) Get(name string) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if !r.initialized {
		return zero, fmt.Errorf("%s registry: %w", r.kind, base.ErrNotInitialized)
	}
	item, ok := r.items[name]
	if !ok {
		return zero, fmt.Errorf("%s registry: item '%s': %w", r.kind, name, base.ErrNotFound)
	}
	return item, nil
}

// GetAll returns a snapshot of every item.
func (r *Registry[T]) GetAll() (Snapshot[T], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return Snapshot[T]{}, fmt.Errorf("%s registry: %w", r.kind, base.ErrNotInitialized)
	}
	return NewSimpleSnapshot(r.items), nil
}

// Close closes every item, empties the registry and marks it
// uninitialized so it can be initialized again. Item close failures do
// not stop the others; they are logged and returned together.
func (r *Registry[T]) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.initialized {
		r.mu.Unlock()
		return nil
	}
	items := r.items
	r.items = make(map[string]T)
	r.initialized = false
	r.mu.Unlock()

	var errs error
	for name, item := range items {
		if err := item.Close(ctx); err != nil {
			r.logger.ErrorWithErr("Failed to close item", err, map[string]interface{}{"item": name})
			errs = multierr.Append(errs, err)
		}
	}

	r.logger.Info("Registry closed", map[string]interface{}{
		"items":  len(items),
		"errors": len(multierr.Errors(errs)),
	})
	return errs
}
