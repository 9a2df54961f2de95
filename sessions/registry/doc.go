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
Package registry implements the session registries.

Registry is a generic name → item map populated once from configuration.
CommunityRegistry and FactoryRegistry are its two concrete forms: static
community sessions keyed by full name, and lazily connected enterprise
factories keyed by source.

CombinedRegistry composes both. Initialize loads the community sessions
synchronously (PhasePartial) and starts a background goroutine that asks
every enterprise controller for its persistent queries (PhaseLoading).
When that pass finishes the registry is PhaseCompleted and every Get or
GetAll refreshes the relevant sources first, so reads heal themselves.

	reg := registry.NewCombinedRegistry(registry.CombinedOptions{
		CommunityConnect: community.Connect,
		FactoryBuilder:   controllers.NewFactory,
	})
	if err := reg.Initialize(ctx, src); err != nil {
		return err
	}
	defer reg.Close(ctx)

	snap, err := reg.GetAll(ctx)

# Reconciliation

A pass snapshots each source's cached controller client under the main
lock, queries all sources concurrently with no lock held, applies the diff
for every source under one acquisition of the main lock, then closes the
removed managers with no lock held. A failing source loses all its items
and gets an entry in the snapshot's Errors; other sources are unaffected.
Sources that keep failing are skipped by on-demand refreshes with bounded
exponential backoff.

# Mutation

AddSession and RemoveSession manage sessions created outside discovery.
CountAddedSessions supports per-source quotas.
*/
package registry
