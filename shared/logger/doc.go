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
Package logger provides component-scoped structured JSON logging for the
session registry and its collaborators.

# Overview

Entries are written as single-line JSON to stdout through zap. Each entry
includes:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (registry, api, controller.redis, ...)
  - Instance ID and container name
  - Custom fields

# Usage

	log := logger.New("registry")

	log.Info("Discovery pass finished", map[string]interface{}{
	    "sources": 3,
	    "errors":  1,
	})

	log.ErrorWithErr("Failed to close session", err, map[string]interface{}{
	    "session": "enterprise:prod:analytics",
	})

# Output Format

	{"level":"INFO","timestamp":"2025-01-15T10:30:00.123456789Z",
	 "message":"Discovery pass finished","component":"registry",
	 "instance_id":"i-abc123","container":"sessionhub-xyz","errors":1,"sources":3}

# Environment Variables

  - INSTANCE_ID: Deployment instance identifier

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
