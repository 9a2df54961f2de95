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

package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanReconcile   = "sessions.reconcile"
	SpanQuerySource = "sessions.query_source"
	SpanShutdown    = "sessions.shutdown"
)

// Attribute keys.
const (
	AttrPassID     = attribute.Key("sessions.pass_id")
	AttrMode       = attribute.Key("sessions.mode")
	AttrSource     = attribute.Key("sessions.source")
	AttrSources    = attribute.Key("sessions.sources")
	AttrRemote     = attribute.Key("sessions.remote_count")
	AttrAdded      = attribute.Key("sessions.added")
	AttrRemoved    = attribute.Key("sessions.removed")
	AttrFailures   = attribute.Key("sessions.failures")
	AttrReusedConn = attribute.Key("sessions.reused_client")
)

// RecordError marks span as failed with err. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
