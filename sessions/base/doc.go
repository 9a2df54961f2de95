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

/*
Package base defines the capability interfaces and identifiers shared by the
session registry and every controller backend.

# Capabilities

Managed items are modeled as narrow interfaces rather than a class
hierarchy:

	Closer            Close(ctx) error
	Session           Closer + IsAlive(ctx) bool
	Factory           Closer + Ping(ctx) + ControllerClient(ctx)
	ControllerClient  Closer + Ping(ctx) + ListSessions(ctx) + ConnectSession(ctx, name)

# Full Names

Every item is addressed by a FullName, serialized as "type:source:name":

	fn, err := base.ParseFullName("enterprise:prod:analytics")
	fn.String() // "enterprise:prod:analytics"

The type is "community" or "enterprise"; source and name are non-empty and
may not contain ':'.

# Errors

Lookup and validation failures are reported with the sentinels ErrNotFound,
ErrNotInitialized, ErrInvalidName and ErrAlreadyExists, matched with
errors.Is. Backend failures use *SessionError. Internal invariant violations
panic with *InvariantError.
*/
package base
