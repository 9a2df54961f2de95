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
Package config loads the session registry configuration.

A configuration document lists statically configured community sessions,
the enterprise systems whose controllers are queried for persistent
queries, and discovery tuning:

	community:
	  sessions:
	    local:
	      host: localhost
	      port: 10000
	enterprise:
	  systems:
	    prod:
	      type: redis
	      connection_url: redis://controller:6379/0
	discovery:
	  max_concurrency: 4

# Sources

Every loader implements Source. FileSource reads a YAML file and can watch
it with fsnotify; ObjectSource reads the same document from S3, GCS or
Azure Blob Storage. OpenSource picks one from a URI:

	src, err := config.OpenSource(ctx, "s3://bucket/sessions.yaml", config.OpenOptions{})

Parsed documents are cached (see ConfigCache). ${VAR} and ${VAR:-default}
references are expanded before parsing.

# Secrets

Enterprise systems may set credentials_secret_arn instead of inline
credentials. The referenced secret is fetched through a SecretsManager
at load time and merged into Credentials.
*/
package config
