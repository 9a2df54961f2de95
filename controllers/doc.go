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
Package controllers builds enterprise factories for every supported
controller backend.

An enterprise system's controller keeps a catalog of persistent queries.
The catalog lives in one of the backends below, selected by the system's
type:

	redis      controllers/redis     set + hash per query
	postgres   controllers/sqlstore  persistent_queries table
	mysql      controllers/sqlstore  persistent_queries table
	mongodb    controllers/mongodb   persistent_queries collection
	cassandra  controllers/cassandra persistent_queries table

Builder.Build is wired into the registry as its FactoryBuilder:

	b := controllers.NewBuilder(log)
	reg := registry.NewCombinedRegistry(registry.CombinedOptions{
		FactoryBuilder:   b.Build,
		CommunityConnect: community.NewConnector(nil, log).Connect,
	})

Discovered sessions are connected by probing the worker endpoint recorded
in the catalog.
*/
package controllers
