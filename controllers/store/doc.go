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
Package store adapts persistent-query catalogs to the session capability
interfaces.

A controller backend (Redis, SQL, MongoDB, Cassandra) implements Store: it
lists the persistent queries it knows about and the worker endpoint of
each. Factory and Client turn a Store into a base.Factory and a
base.ControllerClient:

	factory := store.NewFactory(source, control, open, dial, log)
	client, err := factory.ControllerClient(ctx)
	names, err := client.ListSessions(ctx) // running queries only

Each controller client owns its own backend connection so a reconciliation
pass can replace a dead client without disturbing the factory.
*/
package store
