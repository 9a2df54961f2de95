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

package logger

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	DEBUG LogLevel = "DEBUG"
	INFO  LogLevel = "INFO"
	WARN  LogLevel = "WARN"
	ERROR LogLevel = "ERROR"
)

// atomicLevel is shared by every logger created with New so the verbosity
// can be changed at runtime (for example from the --log-level flag).
var atomicLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// Logger provides structured logging scoped to a component
type Logger struct {
	Component  string
	InstanceID string
	Container  string

	zl *zap.Logger
}

// New creates a new Logger for the specified component that writes JSON
// lines to stdout.
func New(component string) *Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.MessageKey = "message"
	encCfg.LevelKey = "level"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(os.Stdout), atomicLevel)
	return NewWithCore(component, core)
}

// NewWithCore creates a Logger on top of an existing zap core. Tests use it
// with zaptest/observer to assert on emitted entries.
func NewWithCore(component string, core zapcore.Core) *Logger {
	// Get instance ID from environment (set during deployment)
	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = "unknown"
	}

	container, err := os.Hostname()
	if err != nil {
		container = "unknown"
	}

	zl := zap.New(core).With(
		zap.String("component", component),
		zap.String("instance_id", instanceID),
		zap.String("container", container),
	)

	return &Logger{
		Component:  component,
		InstanceID: instanceID,
		Container:  container,
		zl:         zl,
	}
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return &Logger{Component: "nop", InstanceID: "unknown", Container: "unknown", zl: zap.NewNop()}
}

// SetLevel changes the minimum level of every logger created with New.
func SetLevel(level LogLevel) error {
	switch LogLevel(strings.ToUpper(string(level))) {
	case DEBUG:
		atomicLevel.SetLevel(zapcore.DebugLevel)
	case INFO:
		atomicLevel.SetLevel(zapcore.InfoLevel)
	case WARN:
		atomicLevel.SetLevel(zapcore.WarnLevel)
	case ERROR:
		atomicLevel.SetLevel(zapcore.ErrorLevel)
	default:
		return fmt.Errorf("unknown log level %q", level)
	}
	return nil
}

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields map[string]interface{}) *Logger {
	child := *l
	child.zl = l.zl.With(toZapFields(fields)...)
	return &child
}

// Log writes a structured entry at the given level
func (l *Logger) Log(level LogLevel, message string, fields map[string]interface{}) {
	zf := toZapFields(fields)
	switch level {
	case DEBUG:
		l.zl.Debug(message, zf...)
	case WARN:
		l.zl.Warn(message, zf...)
	case ERROR:
		l.zl.Error(message, zf...)
	default:
		l.zl.Info(message, zf...)
	}
}

// Info logs an informational message
func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.Log(INFO, message, fields)
}

// Error logs an error message
func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.Log(ERROR, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.Log(WARN, message, fields)
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.Log(DEBUG, message, fields)
}

// InfoWithDuration logs an info message with duration field
func (l *Logger) InfoWithDuration(message string, durationMS float64, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["duration_ms"] = durationMS
	l.Info(message, fields)
}

// ErrorWithErr logs an error message carrying err under the "error" key
func (l *Logger) ErrorWithErr(message string, err error, fields map[string]interface{}) {
	l.withErr(ERROR, message, err, fields)
}

// WarnWithErr logs a warning carrying err under the "error" key
func (l *Logger) WarnWithErr(message string, err error, fields map[string]interface{}) {
	l.withErr(WARN, message, err, fields)
}

func (l *Logger) withErr(level LogLevel, message string, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Log(level, message, fields)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zl.Sync()
}

// toZapFields converts a field map into zap fields in key order so output is stable.
func toZapFields(fields map[string]interface{}) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}
