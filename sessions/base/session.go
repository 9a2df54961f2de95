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

package base

import "context"

// Closer is the capability every managed item has: it can be released.
// Close may fail; callers log the failure rather than treat it as fatal.
type Closer interface {
	Close(ctx context.Context) error
}

// Session is a handle to a running remote data-processing worker.
type Session interface {
	Closer

	// IsAlive reports whether the session is still usable. It never fails;
	// implementations fold probe errors into false.
	IsAlive(ctx context.Context) bool
}

// Factory authenticates against an enterprise system and hands out
// controller clients for it.
type Factory interface {
	Closer

	// Ping is the factory's liveness probe.
	Ping(ctx context.Context) (bool, error)

	// ControllerClient creates a new client for the system's controller.
	ControllerClient(ctx context.Context) (ControllerClient, error)
}

// ControllerClient talks to the remote controller that tracks persistent
// queries (named remote jobs) for one enterprise system.
type ControllerClient interface {
	Closer

	// Ping is the client's liveness probe.
	Ping(ctx context.Context) (bool, error)

	// ListSessions returns the names of every persistent query the
	// controller currently knows about.
	ListSessions(ctx context.Context) ([]string, error)

	// ConnectSession connects to the persistent query with the given name.
	ConnectSession(ctx context.Context, name string) (Session, error)
}
