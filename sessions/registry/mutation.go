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
	"errors"
	"fmt"

	"github.com/deephaven/deephaven-mcp-sub000/sessions/base"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/manager"
)

// ErrQuotaExceeded is returned by AddSessionWithinQuota when the source
// already has max_added_sessions added sessions.
var ErrQuotaExceeded = errors.New("added session quota exceeded")

// AddSession inserts a session created outside discovery and marks it as
// added. It fails with base.ErrAlreadyExists when the name is taken.
//
// Reconciliation keeps an added session that its controller does not list
// until the controller has listed it once; after that it is treated like a
// discovered session and removed when the controller drops it.
func (r *CombinedRegistry) AddSession(m *manager.SessionManager) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLocked(m, -1)
}

// AddSessionWithinQuota is AddSession that also fails with ErrQuotaExceeded
// when the source of m already holds quota added sessions. The count and
// the insert happen under one acquisition of the main lock.
func (r *CombinedRegistry) AddSessionWithinQuota(m *manager.SessionManager, quota int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLocked(m, quota)
}

// addLocked must be called with the main lock held. A negative quota is
// unlimited.
func (r *CombinedRegistry) addLocked(m *manager.SessionManager, quota int) error {
	key := m.FullName().String()

	if !r.initialized {
		return base.ErrNotInitialized
	}
	if _, exists := r.items[key]; exists {
		return fmt.Errorf("session '%s': %w", key, base.ErrAlreadyExists)
	}
	if quota >= 0 {
		if n := r.countAddedLocked(m.SystemType(), m.Source()); n >= quota {
			return fmt.Errorf("source '%s' has %d of %d added sessions: %w", m.Source(), n, quota, ErrQuotaExceeded)
		}
	}

	r.items[key] = m
	r.added[key] = false
	r.updateItemGauges()
	r.logger.Info("Added session", map[string]interface{}{"full_name": key})
	return nil
}

// RemoveSession removes the session name and returns its manager, or nil
// when it is absent. The caller owns closing the returned manager.
func (r *CombinedRegistry) RemoveSession(name string) (*manager.SessionManager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return nil, base.ErrNotInitialized
	}
	m, ok := r.items[name]
	if !ok {
		return nil, nil
	}
	delete(r.items, name)
	delete(r.added, name)
	r.updateItemGauges()
	r.logger.Info("Removed session", map[string]interface{}{"full_name": name})
	return m, nil
}

// CountAddedSessions counts the added sessions of systemType and source that
// are still registered. Used for quota enforcement.
func (r *CombinedRegistry) CountAddedSessions(systemType base.SystemType, source string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return 0, base.ErrNotInitialized
	}
	return r.countAddedLocked(systemType, source), nil
}

func (r *CombinedRegistry) countAddedLocked(systemType base.SystemType, source string) int {
	count := 0
	for key := range r.added {
		if _, ok := r.items[key]; !ok {
			continue
		}
		fn := base.MustParseFullName(key)
		if fn.SystemType == systemType && fn.Source == source {
			count++
		}
	}
	return count
}

// IsAddedSession reports whether name was inserted with AddSession.
func (r *CombinedRegistry) IsAddedSession(name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return false, base.ErrNotInitialized
	}
	_, ok := r.added[name]
	return ok, nil
}

// AddedSessionQuota returns the max_added_sessions of an enterprise source.
func (r *CombinedRegistry) AddedSessionQuota(source string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotas[source]
	return q, ok
}

// ConnectEnterprise connects to the persistent query name on source the
// same way discovered sessions do. Callers use it to build managers for
// AddSession.
func (r *CombinedRegistry) ConnectEnterprise() manager.EnterpriseConnectFunc {
	return r.connectEnterprise
}
