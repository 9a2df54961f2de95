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
	"fmt"
	"strings"
)

// SystemType identifies which kind of system a session belongs to.
type SystemType string

const (
	SystemTypeCommunity  SystemType = "community"
	SystemTypeEnterprise SystemType = "enterprise"
)

// ValidSystemTypes lists the system types accepted in full names.
var ValidSystemTypes = []SystemType{SystemTypeCommunity, SystemTypeEnterprise}

// ParseSystemType validates s as a system type.
func ParseSystemType(s string) (SystemType, error) {
	for _, st := range ValidSystemTypes {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown system type %q", ErrInvalidName, s)
}

// FullName is the canonical identifier of a managed item,
// serialized as "type:source:name".
type FullName struct {
	SystemType SystemType
	Source     string
	Name       string
}

// NewFullName builds and validates a FullName.
func NewFullName(systemType SystemType, source, name string) (FullName, error) {
	fn := FullName{SystemType: systemType, Source: source, Name: name}
	if err := fn.Validate(); err != nil {
		return FullName{}, err
	}
	return fn, nil
}

// MustFullName is NewFullName for values the caller already validated.
// A failure is a programming bug and panics with an *InvariantError.
func MustFullName(systemType SystemType, source, name string) FullName {
	fn, err := NewFullName(systemType, source, name)
	if err != nil {
		panic(NewInvariantError("build full name", err))
	}
	return fn
}

// Validate checks the system type and that source and name are non-empty
// and colon-free.
func (f FullName) Validate() error {
	if _, err := ParseSystemType(string(f.SystemType)); err != nil {
		return err
	}
	if err := validatePart("source", f.Source); err != nil {
		return err
	}
	return validatePart("name", f.Name)
}

func validatePart(label, v string) error {
	if v == "" {
		return fmt.Errorf("%w: empty %s", ErrInvalidName, label)
	}
	if strings.Contains(v, ":") {
		return fmt.Errorf("%w: %s %q contains ':'", ErrInvalidName, label, v)
	}
	return nil
}

// String formats the full name as "type:source:name".
func (f FullName) String() string {
	return string(f.SystemType) + ":" + f.Source + ":" + f.Name
}

// ParseFullName parses a "type:source:name" string.
func ParseFullName(s string) (FullName, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return FullName{}, fmt.Errorf("%w: %q must have exactly three ':'-separated parts", ErrInvalidName, s)
	}
	st, err := ParseSystemType(parts[0])
	if err != nil {
		return FullName{}, err
	}
	return NewFullName(st, parts[1], parts[2])
}

// MustParseFullName parses a key taken from internal state. Internal keys
// are always built with FullName.String, so a parse failure panics.
func MustParseFullName(s string) FullName {
	fn, err := ParseFullName(s)
	if err != nil {
		panic(NewInvariantError("parse internal key", err))
	}
	return fn
}
