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

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a name is absent from a registry.
	ErrNotFound = errors.New("not found")

	// ErrNotInitialized is returned by registry calls made before Initialize
	// or after Close.
	ErrNotInitialized = errors.New("registry not initialized")

	// ErrInvalidName is returned when a full name or one of its parts fails
	// validation.
	ErrInvalidName = errors.New("invalid name")

	// ErrAlreadyExists is returned when inserting a full name that is already
	// registered.
	ErrAlreadyExists = errors.New("already exists")
)

// SessionError represents a failure of an operation on a session, factory
// or controller client.
type SessionError struct {
	Source    string
	Operation string
	Message   string
	Cause     error
}

func (e *SessionError) Error() string {
	if e.Cause != nil {
		return e.Source + "." + e.Operation + ": " + e.Message + " (cause: " + e.Cause.Error() + ")"
	}
	return e.Source + "." + e.Operation + ": " + e.Message
}

func (e *SessionError) Unwrap() error {
	return e.Cause
}

// NewSessionError creates a new SessionError
func NewSessionError(source, operation, message string, cause error) *SessionError {
	return &SessionError{
		Source:    source,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// InvariantError is the panic value for internal invariant violations:
// malformed internal keys, unexpected sub-registry snapshots, unknown
// reconciliation records. It signals a bug, never an environmental failure.
type InvariantError struct {
	What  string
	Cause error
}

func (e *InvariantError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("internal invariant violated: %s: %v", e.What, e.Cause)
	}
	return "internal invariant violated: " + e.What
}

func (e *InvariantError) Unwrap() error {
	return e.Cause
}

// NewInvariantError creates a new InvariantError
func NewInvariantError(what string, cause error) *InvariantError {
	return &InvariantError{What: what, Cause: cause}
}
